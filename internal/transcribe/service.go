// Package transcribe runs batch transcription of uploaded files and stored
// objects and holds the resulting transcript.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bangla-scribe/internal/audio"
	"github.com/JakeFAU/bangla-scribe/internal/progress"
	"github.com/JakeFAU/bangla-scribe/internal/studio"
)

// Defaults applied when Config fields are zero.
const (
	DefaultResetDelay  = time.Second
	DefaultCallTimeout = 120 * time.Second
)

// ErrNoObjectStore is returned for object transcriptions when no object
// store is configured.
var ErrNoObjectStore = errors.New("object storage is not configured")

// Config controls Service behavior.
//   - ResetDelay: how long the 100% indicator stays before returning to 0.
//   - CallTimeout: bound on each remote transcription call.
//   - BaseContext: parent for runs started with Submit (defaults to context.Background()).
type Config struct {
	ResetDelay  time.Duration
	CallTimeout time.Duration
	BaseContext context.Context
}

// Service drives the Idle → Transcribing → Idle state machine.
type Service struct {
	store       *Store
	transcriber studio.Transcriber
	objects     studio.ObjectReader
	events      progress.Emitter
	clock       studio.Clock
	cfg         Config
	logger      *zap.Logger

	wg sync.WaitGroup
}

// NewService constructs a Service. objects may be nil when object storage is
// not configured.
func NewService(
	store *Store,
	transcriber studio.Transcriber,
	objects studio.ObjectReader,
	events progress.Emitter,
	clock studio.Clock,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = progress.Discard
	}
	if cfg.ResetDelay <= 0 {
		cfg.ResetDelay = DefaultResetDelay
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	return &Service{
		store:       store,
		transcriber: transcriber,
		objects:     objects,
		events:      events,
		clock:       clock,
		cfg:         cfg,
		logger:      logger,
	}
}

// Store returns the transcript store the service writes to.
func (s *Service) Store() *Store {
	return s.store
}

type loader func(ctx context.Context) ([]byte, string, error)

// TranscribeFile transcribes data and replaces the transcript with the
// result. It blocks until the remote call settles.
func (s *Service) TranscribeFile(ctx context.Context, data []byte, mimeType string) (string, error) {
	epoch, err := s.begin()
	if err != nil {
		return "", err
	}
	return s.run(ctx, epoch, bytesLoader(data, mimeType))
}

// TranscribeObject loads uri from object storage and transcribes it.
func (s *Service) TranscribeObject(ctx context.Context, uri string) (string, error) {
	loader, err := s.objectLoader(uri)
	if err != nil {
		return "", err
	}
	epoch, err := s.begin()
	if err != nil {
		return "", err
	}
	return s.run(ctx, epoch, loader)
}

// SubmitFile starts TranscribeFile in the background. Conflicts are reported
// synchronously; the outcome is observable through State and events.
func (s *Service) SubmitFile(data []byte, mimeType string) error {
	return s.submit(bytesLoader(data, mimeType))
}

// SubmitObject starts TranscribeObject in the background.
func (s *Service) SubmitObject(uri string) error {
	loader, err := s.objectLoader(uri)
	if err != nil {
		return err
	}
	return s.submit(loader)
}

// Wait blocks until background runs started by Submit have settled.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) submit(load loader) error {
	epoch, err := s.begin()
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Failures are already settled into the store and event stream.
		_, _ = s.run(s.cfg.BaseContext, epoch, load)
	}()
	return nil
}

func (s *Service) objectLoader(uri string) (loader, error) {
	if s.objects == nil {
		return nil, ErrNoObjectStore
	}
	return func(ctx context.Context) ([]byte, string, error) {
		data, contentType, err := s.objects.ReadObject(ctx, uri)
		if err != nil {
			return nil, "", fmt.Errorf("read object %s: %w", uri, err)
		}
		return data, contentType, nil
	}, nil
}

func bytesLoader(data []byte, mimeType string) loader {
	return func(context.Context) ([]byte, string, error) {
		return data, mimeType, nil
	}
}

func (s *Service) begin() (uint64, error) {
	epoch, err := s.store.begin()
	if err != nil {
		return 0, err
	}
	s.emit(progress.StageTranscribeStart, ProgressStarted, 0, "")
	return epoch, nil
}

func (s *Service) run(ctx context.Context, epoch uint64, load loader) (string, error) {
	start := s.clock.Now()
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	data, mimeType, err := load(callCtx)
	if err != nil {
		return "", s.fail(epoch, start, err)
	}
	payload, err := audio.Encode(data, mimeType)
	if err != nil {
		return "", s.fail(epoch, start, fmt.Errorf("prepare audio: %w", err))
	}
	s.store.advance(epoch, ProgressPrepared)

	text, err := s.transcriber.Transcribe(callCtx, payload)
	if err != nil {
		return "", s.fail(epoch, start, fmt.Errorf("transcribe: %w", err))
	}
	dur := s.clock.Now().Sub(start)
	if !s.store.finish(epoch, text) {
		s.logger.Info("discarding transcript of abandoned run")
		return "", studio.ErrStaleRun
	}
	s.emit(progress.StageTranscribeDone, ProgressDone, dur, "")
	s.logger.Info("transcription complete",
		zap.String("mime_type", payload.MIMEType),
		zap.Int("bytes", len(data)),
		zap.Duration("dur", dur),
	)
	time.AfterFunc(s.cfg.ResetDelay, func() { s.store.settle(epoch) })
	return text, nil
}

func (s *Service) fail(epoch uint64, start time.Time, cause error) error {
	dur := s.clock.Now().Sub(start)
	if !s.store.abort(epoch) {
		return studio.ErrStaleRun
	}
	s.logger.Warn("transcription failed", zap.Error(cause), zap.Duration("dur", dur))
	s.emit(progress.StageTranscribeError, 0, dur, cause.Error())
	return cause
}

func (s *Service) emit(stage progress.Stage, pct int, dur time.Duration, note string) {
	s.events.Emit(progress.Event{
		TS:       s.clock.Now(),
		Stage:    stage,
		Progress: pct,
		Dur:      dur,
		Note:     note,
	})
}
