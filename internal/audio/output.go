package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
)

// WAVRecorder writes every clip it is asked to play as a WAV file under a
// directory, numbered in play order.
type WAVRecorder struct {
	dir string
	seq atomic.Int64
}

// NewWAVRecorder creates dir if needed.
func NewWAVRecorder(dir string) (*WAVRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio dir: %w", err)
	}
	return &WAVRecorder{dir: dir}, nil
}

func (w *WAVRecorder) Play(ctx context.Context, clip Clip) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := w.seq.Add(1)
	path := filepath.Join(w.dir, fmt.Sprintf("%04d-%s.wav", n, clip.Name))
	if err := os.WriteFile(path, EncodeWAV(clip), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// EncodeWAV renders clip as a 16-bit PCM mono RIFF file.
func EncodeWAV(clip Clip) []byte {
	pcm := EncodePCM16(clip.Samples)

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, struct {
		Size          uint32
		Format        uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}{16, 1, 1, uint32(clip.Rate), uint32(clip.Rate * 2), 2, 16})
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// EncodePCM16 converts samples to little-endian signed 16-bit PCM,
// clipping to [-1,1].
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(math.Round(v*math.MaxInt16))))
	}
	return out
}

// DecodePCM16 converts little-endian signed 16-bit PCM to samples. A
// trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(data[2*i:]))
		out[i] = float32(v) / 32768
	}
	return out
}
