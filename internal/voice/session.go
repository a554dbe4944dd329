// Package voice connects the live voice assistant over a websocket and
// plays its streamed answers.
package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tactix/internal/audio"
	"github.com/tactix/pkg/logger"
)

// ErrNotConfigured is returned by Connect when no live endpoint is set.
var ErrNotConfigured = errors.New("voice endpoint not configured")

// OutputSampleRate is the rate of the audio streamed by the server.
const OutputSampleRate = 24000

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024 * 1024
)

// setupMessage opens the conversation.
type setupMessage struct {
	Setup struct {
		SystemInstruction string `json:"systemInstruction"`
		Language          string `json:"language"`
		Voice             string `json:"voice"`
	} `json:"setup"`
}

// clientMessage carries a typed question.
type clientMessage struct {
	Text string `json:"text"`
}

// serverMessage is one frame from the server. Audio is base64 PCM16LE at
// OutputSampleRate.
type serverMessage struct {
	Audio       string `json:"audio,omitempty"`
	Interrupted bool   `json:"interrupted,omitempty"`
}

// Options configure a voice session.
type Options struct {
	URL         string
	APIKey      string
	Language    string
	Instruction string
	Output      audio.Output
	// OnActive is called with true once connected and false once the
	// session ended, whatever the reason. It must not call Close.
	OnActive func(active bool)
}

// Session is a live voice conversation.
type Session struct {
	conn     *websocket.Conn
	sched    *audio.Scheduler
	onActive func(bool)
	log      *logrus.Entry

	writeMu   sync.Mutex
	closeOnce sync.Once
	endOnce   sync.Once
	done      chan struct{}
}

// Connect dials the live endpoint and sends the setup message.
func Connect(ctx context.Context, opts Options) (*Session, error) {
	if opts.URL == "" {
		return nil, ErrNotConfigured
	}

	header := http.Header{}
	if opts.APIKey != "" {
		header.Set("Authorization", "Bearer "+opts.APIKey)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, header)
	if err != nil {
		return nil, fmt.Errorf("voice dial: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	s := &Session{
		conn:     conn,
		sched:    audio.NewScheduler(opts.Output),
		onActive: opts.OnActive,
		log:      logger.With("voice"),
		done:     make(chan struct{}),
	}

	var setup setupMessage
	setup.Setup.SystemInstruction = opts.Instruction
	setup.Setup.Language = opts.Language
	setup.Setup.Voice = "Fenrir"
	if err := s.writeJSON(setup); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("voice setup: %w", err)
	}

	s.setActive(true)
	go s.readLoop()
	return s, nil
}

// Ask sends a typed question to the assistant.
func (s *Session) Ask(text string) error {
	select {
	case <-s.done:
		return net.ErrClosed
	default:
	}
	return s.writeJSON(clientMessage{Text: text})
}

// Done is closed once the session ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close ends the session, stops queued audio and waits for the reader.
// Calling it again is a no-op.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		s.writeMu.Unlock()

		err = s.conn.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
		<-s.done
	})
	return err
}

func (s *Session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *Session) readLoop() {
	defer s.end()

	for {
		var msg serverMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				s.log.Warnf("Session error: %v", err)
			}
			return
		}
		s.handle(msg)
	}
}

func (s *Session) handle(msg serverMessage) {
	if msg.Audio != "" {
		pcm, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			s.log.Debugf("Audio undecodable: %v", err)
		} else {
			s.sched.Enqueue(audio.DecodePCM16(pcm), OutputSampleRate)
		}
	}
	if msg.Interrupted {
		s.sched.Interrupt()
	}
	s.sched.Reap()
}

func (s *Session) end() {
	s.endOnce.Do(func() {
		s.sched.Interrupt()
		_ = s.conn.Close()
		s.setActive(false)
		close(s.done)
	})
}

func (s *Session) setActive(active bool) {
	if s.onActive == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Errorf("State callback panicked: %v", rec)
		}
	}()
	s.onActive(active)
}
