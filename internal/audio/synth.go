// Package audio synthesizes the match sound cues and schedules streamed
// voice audio on an output.
package audio

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tactix/internal/metrics"
	"github.com/tactix/pkg/logger"
)

// DefaultSampleRate is used for synthesized cues.
const DefaultSampleRate = 24000

// Clip is a mono buffer of samples in [-1,1].
type Clip struct {
	Name    string
	Samples []float32
	Rate    int
}

// Duration returns the playing time of the clip.
func (c Clip) Duration() time.Duration {
	if c.Rate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.Rate)
}

// Output plays clips. Play should return once the clip finished or ctx
// was cancelled.
type Output interface {
	Play(ctx context.Context, clip Clip) error
}

// expRamp returns the value of an exponential ramp from v0 to v1 over
// span seconds, evaluated at t seconds, holding v1 afterwards.
func expRamp(v0, v1, span, t float64) float64 {
	if t <= 0 {
		return v0
	}
	if t >= span {
		return v1
	}
	return v0 * math.Pow(v1/v0, t/span)
}

func triangle(phase float64) float64 {
	return 4*math.Abs(phase-math.Floor(phase+0.5)) - 1
}

// blast renders one whistle blast: a triangle tone gliding 1500Hz to 800Hz
// over glide seconds under a 0.5 to 0.01 gain decay lasting 0.5s.
func blast(dst []float32, rate int, glide float64) {
	const length = 0.5
	n := min(len(dst), int(length*float64(rate)))
	phase := 0.0
	for i := 0; i < n; i++ {
		t := float64(i) / float64(rate)
		freq := expRamp(1500, 800, glide, t)
		gain := expRamp(0.5, 0.01, length, t)
		dst[i] += float32(gain * triangle(phase))
		phase += freq / float64(rate)
		phase -= math.Floor(phase)
	}
}

// WhistleSamples renders the referee whistle: two blasts, the second one
// starting 0.6s after the first with a slower glide.
func WhistleSamples(rate int) []float32 {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	out := make([]float32, int(1.1*float64(rate)))
	blast(out, rate, 0.1)
	blast(out[int(0.6*float64(rate)):], rate, 0.2)
	return out
}

// CrowdSwellSamples renders two seconds of low-passed noise that swells
// from 0.1 to 0.5 over half a second and fades to 0.01 at two seconds.
func CrowdSwellSamples(rng *rand.Rand, rate int) []float32 {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	const cutoff = 800.0
	alpha := 1 - math.Exp(-2*math.Pi*cutoff/float64(rate))

	out := make([]float32, 2*rate)
	y := 0.0
	for i := range out {
		t := float64(i) / float64(rate)
		x := rng.Float64()*2 - 1
		y += alpha * (x - y)

		var gain float64
		if t < 0.5 {
			gain = expRamp(0.1, 0.5, 0.5, t)
		} else {
			gain = expRamp(0.5, 0.01, 1.5, t-0.5)
		}
		out[i] = float32(gain * y)
	}
	return out
}

// Synth plays the match cues. A Synth without an output has no audio
// capability and every cue is a no-op.
type Synth struct {
	out  Output
	rate int
	wg   sync.WaitGroup
}

// NewSynth creates a synth playing on out at rate. out may be nil.
func NewSynth(out Output, rate int) *Synth {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	return &Synth{out: out, rate: rate}
}

// Whistle plays the referee whistle without blocking.
func (s *Synth) Whistle() {
	if s == nil || s.out == nil {
		return
	}
	s.play(Clip{Name: "whistle", Samples: WhistleSamples(s.rate), Rate: s.rate})
}

// CrowdSwell plays the goal roar without blocking.
func (s *Synth) CrowdSwell() {
	if s == nil || s.out == nil {
		return
	}
	s.play(Clip{Name: "crowd", Samples: CrowdSwellSamples(nil, s.rate), Rate: s.rate})
}

// Wait blocks until every cue started so far has been played.
func (s *Synth) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

func (s *Synth) play(clip Clip) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				logger.Log.Debugf("Audio cue %s panicked: %v", clip.Name, rec)
				metrics.RecordAudioCueFailure(clip.Name)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), clip.Duration()+5*time.Second)
		defer cancel()

		if err := s.out.Play(ctx, clip); err != nil {
			logger.Log.Debugf("Audio cue %s failed: %v", clip.Name, err)
			metrics.RecordAudioCueFailure(clip.Name)
		}
	}()
}
