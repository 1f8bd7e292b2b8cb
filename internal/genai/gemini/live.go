package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"github.com/JakeFAU/bangla-scribe/internal/studio"
)

// OpenLiveSession connects a streaming session that transcribes the user's
// audio input. Only input transcriptions are surfaced; model audio replies
// are ignored.
func (c *Client) OpenLiveSession(ctx context.Context) (studio.LiveSession, error) {
	session, err := c.client.Live.Connect(ctx, c.cfg.LiveModel, &genai.LiveConnectConfig{
		ResponseModalities:      []genai.Modality{genai.ModalityAudio},
		InputAudioTranscription: &genai.AudioTranscriptionConfig{},
		SystemInstruction:       genai.NewContentFromText(c.cfg.LiveInstruction, genai.RoleUser),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini live connect: %w", err)
	}
	ls := &liveSession{
		session: session,
		events:  make(chan studio.LiveEvent, 16),
		closed:  make(chan struct{}),
	}
	go ls.receive()
	return ls, nil
}

type liveSession struct {
	session *genai.Session
	events  chan studio.LiveEvent
	closed  chan struct{}

	sendMu    sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (s *liveSession) SendAudio(ctx context.Context, chunk studio.AudioPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(chunk.Data)
	if err != nil {
		return fmt.Errorf("decode audio chunk: %w", err)
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: data, MIMEType: chunk.MIMEType},
	}); err != nil {
		return fmt.Errorf("gemini live send: %w", err)
	}
	return nil
}

func (s *liveSession) Events() <-chan studio.LiveEvent {
	return s.events
}

func (s *liveSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.closeErr = s.session.Close()
	})
	return s.closeErr
}

func (s *liveSession) receive() {
	defer close(s.events)
	for {
		msg, err := s.session.Receive()
		if err != nil {
			select {
			case <-s.closed:
			default:
				s.deliver(studio.LiveEvent{Err: err})
			}
			return
		}
		if text := inputTranscription(msg); text != "" {
			if !s.deliver(studio.LiveEvent{Text: text}) {
				return
			}
		}
	}
}

func (s *liveSession) deliver(evt studio.LiveEvent) bool {
	select {
	case s.events <- evt:
		return true
	case <-s.closed:
		return false
	}
}

func inputTranscription(msg *genai.LiveServerMessage) string {
	if msg == nil || msg.ServerContent == nil || msg.ServerContent.InputTranscription == nil {
		return ""
	}
	return msg.ServerContent.InputTranscription.Text
}
