package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/bangla-scribe/internal/clock/system"
	"github.com/JakeFAU/bangla-scribe/internal/jobs"
	"github.com/JakeFAU/bangla-scribe/internal/progress"
	"github.com/JakeFAU/bangla-scribe/internal/queue/memory"
	"github.com/JakeFAU/bangla-scribe/internal/studio"
)

const transcript = "আজকে আমরা বাংলা ভাষার ইতিহাস নিয়ে কথা বলব"

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	result  string
	err     error
	release chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	release := g.release
	g.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.result, g.err
}

func (g *fakeGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) Stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Stage, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Stage)
	}
	return out
}

func (r *recordingEmitter) Events() []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progress.Event(nil), r.events...)
}

func newTestWorker(gen studio.Generator, reg *jobs.Registry, events progress.Emitter, cfg Config) *Worker {
	sim := progress.NewSimulator(progress.SimulatorConfig{Interval: time.Millisecond})
	if cfg.HoldDelay == 0 {
		cfg.HoldDelay = time.Millisecond
	}
	return New(memory.NewQueue(4), reg, gen, sim, events, system.New(), cfg, zap.NewNop())
}

func begin(t *testing.T, reg *jobs.Registry, key studio.ContentType, runID string) studio.WorkItem {
	t.Helper()
	_, err := reg.Begin(key, runID)
	require.NoError(t, err)
	return studio.WorkItem{Key: key, RunID: runID, Transcript: transcript, Submitted: time.Now()}
}

func TestProcessSuccessCommitsResult(t *testing.T) {
	t.Parallel()

	reg := jobs.NewRegistry(0)
	gen := &fakeGenerator{result: "1. শিরোনাম এক\n2. শিরোনাম দুই", release: make(chan struct{})}
	events := &recordingEmitter{}
	w := newTestWorker(gen, reg, events, Config{})

	item := begin(t, reg, studio.ContentTitle, "run-1")
	done := make(chan error, 1)
	go func() { done <- w.Process(context.Background(), item) }()

	// Let the simulator advance while the call is outstanding.
	require.Eventually(t, func() bool {
		job, err := reg.Get(studio.ContentTitle)
		return err == nil && job.Progress > jobs.DefaultSeed
	}, time.Second, time.Millisecond)
	close(gen.release)
	require.NoError(t, <-done)

	job, err := reg.Get(studio.ContentTitle)
	require.NoError(t, err)
	require.False(t, job.IsRunning)
	require.Zero(t, job.Progress)
	require.Equal(t, []string{"শিরোনাম এক", "শিরোনাম দুই"}, job.Items())

	prompts := gen.Prompts()
	require.Len(t, prompts, 1)
	require.Contains(t, prompts[0], transcript)

	stages := events.Stages()
	require.Equal(t, progress.StageJobStart, stages[0])
	require.Equal(t, progress.StageJobDone, stages[len(stages)-1])

	last := 0
	for _, evt := range events.Events() {
		if evt.Stage != progress.StageJobProgress {
			continue
		}
		require.GreaterOrEqual(t, evt.Progress, last)
		if evt.Progress != 100 {
			require.LessOrEqual(t, evt.Progress, progress.DefaultCeiling)
		}
		last = evt.Progress
	}
	require.Equal(t, 100, last)
}

func TestProcessHoldsAtHundredBeforeIdle(t *testing.T) {
	t.Parallel()

	reg := jobs.NewRegistry(0)
	w := newTestWorker(&fakeGenerator{result: "ok"}, reg, progress.Discard, Config{HoldDelay: 200 * time.Millisecond})
	item := begin(t, reg, studio.ContentYouTube, "run-1")

	done := make(chan error, 1)
	go func() { done <- w.Process(context.Background(), item) }()
	require.Eventually(t, func() bool {
		job, _ := reg.Get(studio.ContentYouTube)
		return job.IsRunning && job.Progress == 100 && job.Result == ""
	}, time.Second, time.Millisecond)
	require.NoError(t, <-done)

	job, _ := reg.Get(studio.ContentYouTube)
	require.Equal(t, studio.ContentJob{Key: studio.ContentYouTube, Result: "ok"}, job)
}

func TestProcessFailureKeepsPreviousResult(t *testing.T) {
	t.Parallel()

	reg := jobs.NewRegistry(0)
	events := &recordingEmitter{}
	ok := newTestWorker(&fakeGenerator{result: "পুরনো ক্যাপশন"}, reg, events, Config{})
	require.NoError(t, ok.Process(context.Background(), begin(t, reg, studio.ContentFacebook, "run-1")))

	boom := errors.New("quota exceeded")
	failing := newTestWorker(&fakeGenerator{err: boom}, reg, events, Config{})
	err := failing.Process(context.Background(), begin(t, reg, studio.ContentFacebook, "run-2"))
	require.ErrorIs(t, err, boom)

	job, _ := reg.Get(studio.ContentFacebook)
	require.False(t, job.IsRunning)
	require.Zero(t, job.Progress)
	require.Equal(t, "পুরনো ক্যাপশন", job.Result)

	evts := events.Events()
	last := evts[len(evts)-1]
	require.Equal(t, progress.StageJobError, last.Stage)
	require.Equal(t, "run-2", last.RunID)
	require.Equal(t, "quota exceeded", last.Note)
}

func TestProcessTimeoutFollowsFailurePath(t *testing.T) {
	t.Parallel()

	reg := jobs.NewRegistry(0)
	gen := &fakeGenerator{release: make(chan struct{})}
	w := newTestWorker(gen, reg, progress.Discard, Config{CallTimeout: 20 * time.Millisecond})
	err := w.Process(context.Background(), begin(t, reg, studio.ContentThumbnail, "run-1"))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	job, _ := reg.Get(studio.ContentThumbnail)
	require.Equal(t, studio.ContentJob{Key: studio.ContentThumbnail}, job)
}

// TestProcessDiscardsSupersededRun covers a reset arriving mid-call.
func TestProcessDiscardsSupersededRun(t *testing.T) {
	t.Parallel()

	reg := jobs.NewRegistry(0)
	gen := &fakeGenerator{result: "late", release: make(chan struct{})}
	events := &recordingEmitter{}
	w := newTestWorker(gen, reg, events, Config{})

	item := begin(t, reg, studio.ContentTitle, "run-1")
	done := make(chan error, 1)
	go func() { done <- w.Process(context.Background(), item) }()
	require.Eventually(t, func() bool { return len(gen.Prompts()) == 1 }, time.Second, time.Millisecond)

	reg.Reset()
	close(gen.release)
	require.ErrorIs(t, <-done, studio.ErrStaleRun)

	job, _ := reg.Get(studio.ContentTitle)
	require.Equal(t, studio.ContentJob{Key: studio.ContentTitle}, job)
	require.NotContains(t, events.Stages(), progress.StageJobDone)
}

func TestRunConsumesQueue(t *testing.T) {
	t.Parallel()

	reg := jobs.NewRegistry(0)
	queue := memory.NewQueue(2)
	sim := progress.NewSimulator(progress.SimulatorConfig{Interval: time.Millisecond})
	w := New(queue, reg, &fakeGenerator{result: "বিবরণ"}, sim, nil, system.New(),
		Config{HoldDelay: time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(stopped)
	}()

	require.NoError(t, queue.Enqueue(ctx, begin(t, reg, studio.ContentYouTube, "run-1")))
	require.Eventually(t, func() bool {
		job, _ := reg.Get(studio.ContentYouTube)
		return job.Result == "বিবরণ" && !job.IsRunning
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRunStopsWhenQueueCloses(t *testing.T) {
	t.Parallel()

	queue := memory.NewQueue(1)
	w := New(queue, jobs.NewRegistry(0), &fakeGenerator{}, nil, nil, system.New(), Config{}, nil)
	stopped := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(stopped)
	}()
	queue.Close()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after queue close")
	}
}
