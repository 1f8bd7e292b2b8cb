// Package jobs holds the authoritative per-content-type job entries.
package jobs

import (
	"fmt"
	"sync"

	"github.com/JakeFAU/bangla-scribe/internal/studio"
)

// DefaultSeed is the progress a job shows as soon as it starts.
const DefaultSeed = 5

// Registry keeps exactly one ContentJob per content type. Entries are only
// ever replaced whole under the lock, so readers always see a consistent copy.
type Registry struct {
	mu   sync.RWMutex
	jobs map[studio.ContentType]studio.ContentJob
	seed int
}

// NewRegistry constructs a Registry with every job idle. A non-positive seed
// falls back to DefaultSeed.
func NewRegistry(seed int) *Registry {
	if seed <= 0 || seed >= 100 {
		seed = DefaultSeed
	}
	r := &Registry{
		jobs: make(map[studio.ContentType]studio.ContentJob, len(studio.ContentTypes())),
		seed: seed,
	}
	r.Reset()
	return r
}

// Begin marks key running under runID with the seed progress.
func (r *Registry) Begin(key studio.ContentType, runID string) (studio.ContentJob, error) {
	if runID == "" {
		return studio.ContentJob{}, fmt.Errorf("run id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[key]
	if !ok {
		return studio.ContentJob{}, fmt.Errorf("%w: %q", studio.ErrUnknownContentType, key)
	}
	if job.IsRunning {
		return studio.ContentJob{}, fmt.Errorf("%w: %s", studio.ErrJobRunning, key)
	}
	next := studio.ContentJob{
		Key:       key,
		IsRunning: true,
		Progress:  r.seed,
		Result:    job.Result,
		RunID:     runID,
	}
	r.jobs[key] = next
	return next, nil
}

// Advance raises the displayed progress. Lower values are ignored so progress
// never regresses, and values at or above 100 are reserved for Complete.
func (r *Registry) Advance(key studio.ContentType, runID string, progress int) error {
	return r.update(key, runID, func(job studio.ContentJob) studio.ContentJob {
		if progress > 99 {
			progress = 99
		}
		if progress > job.Progress {
			job.Progress = progress
		}
		return job
	})
}

// Complete snaps progress to 100 while the result is held for display.
func (r *Registry) Complete(key studio.ContentType, runID string) error {
	return r.update(key, runID, func(job studio.ContentJob) studio.ContentJob {
		job.Progress = 100
		return job
	})
}

// Commit stores result and returns the job to idle.
func (r *Registry) Commit(key studio.ContentType, runID string, result string) error {
	return r.update(key, runID, func(job studio.ContentJob) studio.ContentJob {
		return studio.ContentJob{Key: job.Key, Result: result}
	})
}

// Fail returns the job to idle and keeps the previous result.
func (r *Registry) Fail(key studio.ContentType, runID string) error {
	return r.update(key, runID, func(job studio.ContentJob) studio.ContentJob {
		return studio.ContentJob{Key: job.Key, Result: job.Result}
	})
}

// Get returns a copy of the entry for key.
func (r *Registry) Get(key studio.ContentType) (studio.ContentJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[key]
	if !ok {
		return studio.ContentJob{}, fmt.Errorf("%w: %q", studio.ErrUnknownContentType, key)
	}
	return job, nil
}

// Snapshot returns all entries in display order.
func (r *Registry) Snapshot() []studio.ContentJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := studio.ContentTypes()
	out := make([]studio.ContentJob, 0, len(keys))
	for _, key := range keys {
		out = append(out, r.jobs[key])
	}
	return out
}

// Reset clears every result and returns every job to idle. Runs still in
// flight lose ownership and their later mutations fail with ErrStaleRun.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range studio.ContentTypes() {
		r.jobs[key] = studio.ContentJob{Key: key}
	}
}

func (r *Registry) update(
	key studio.ContentType,
	runID string,
	fn func(studio.ContentJob) studio.ContentJob,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[key]
	if !ok {
		return fmt.Errorf("%w: %q", studio.ErrUnknownContentType, key)
	}
	if !job.IsRunning || job.RunID != runID {
		return fmt.Errorf("%w: %s run %s", studio.ErrStaleRun, key, runID)
	}
	r.jobs[key] = fn(job)
	return nil
}
