package transcribe

import (
	"sync"

	"github.com/JakeFAU/bangla-scribe/internal/studio"
)

// Transcription checkpoints.
const (
	ProgressStarted  = 10
	ProgressPrepared = 40
	ProgressDone     = 100
)

// Store owns the transcript text and the transcription progress. Every
// transcription run holds an epoch; Clear and new runs advance it so late
// updates from abandoned runs are ignored.
type Store struct {
	mu    sync.RWMutex
	state studio.TranscriptState
	epoch uint64
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Text returns the current transcript.
func (s *Store) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Text
}

// State returns a copy of the transcript state.
func (s *Store) State() studio.TranscriptState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Replace overwrites the transcript text, as a manual edit does.
func (s *Store) Replace(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Text = text
}

// Append adds a live fragment as text + " " + fragment. An empty transcript
// therefore gains a leading space, which clients have always received.
func (s *Store) Append(fragment string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Text = s.state.Text + " " + fragment
	return s.state.Text
}

// Clear empties the transcript and abandons any transcription in flight.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.state = studio.TranscriptState{}
}

func (s *Store) begin() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsTranscribing {
		return 0, studio.ErrTranscriptionRunning
	}
	s.epoch++
	s.state.IsTranscribing = true
	s.state.Progress = ProgressStarted
	return s.epoch, nil
}

func (s *Store) advance(epoch uint64, progress int) bool {
	return s.update(epoch, func(st *studio.TranscriptState) {
		if st.IsTranscribing && progress > st.Progress {
			st.Progress = progress
		}
	})
}

func (s *Store) finish(epoch uint64, text string) bool {
	return s.update(epoch, func(st *studio.TranscriptState) {
		st.Text = text
		st.IsTranscribing = false
		st.Progress = ProgressDone
	})
}

func (s *Store) abort(epoch uint64) bool {
	return s.update(epoch, func(st *studio.TranscriptState) {
		st.IsTranscribing = false
		st.Progress = 0
	})
}

// settle drops the finished indicator once clients have had time to see it.
func (s *Store) settle(epoch uint64) bool {
	return s.update(epoch, func(st *studio.TranscriptState) {
		if !st.IsTranscribing {
			st.Progress = 0
		}
	})
}

func (s *Store) update(epoch uint64, fn func(*studio.TranscriptState)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return false
	}
	fn(&s.state)
	return true
}
