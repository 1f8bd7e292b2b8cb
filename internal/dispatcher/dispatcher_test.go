package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/bangla-scribe/internal/clock/system"
	"github.com/JakeFAU/bangla-scribe/internal/id/uuid"
	"github.com/JakeFAU/bangla-scribe/internal/jobs"
	"github.com/JakeFAU/bangla-scribe/internal/progress"
	"github.com/JakeFAU/bangla-scribe/internal/queue/memory"
	"github.com/JakeFAU/bangla-scribe/internal/studio"
	"github.com/JakeFAU/bangla-scribe/internal/worker"
)

type staticTranscript string

func (s staticTranscript) Text() string { return string(s) }

type echoGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *echoGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return "ফলাফল", nil
}

func (g *echoGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type errorQueue struct {
	err error
}

func (q *errorQueue) Enqueue(context.Context, studio.WorkItem) error { return q.err }

func (q *errorQueue) Dequeue(ctx context.Context) (studio.WorkItem, error) {
	<-ctx.Done()
	return studio.WorkItem{}, ctx.Err()
}

func newDispatcher(t *testing.T, transcript string, workers int) (*Dispatcher, *jobs.Registry, *echoGenerator) {
	t.Helper()
	reg := jobs.NewRegistry(0)
	queue := memory.NewQueue(8)
	gen := &echoGenerator{}
	sim := progress.NewSimulator(progress.SimulatorConfig{Interval: time.Millisecond})
	pool := make([]*worker.Worker, 0, workers)
	for i := 0; i < workers; i++ {
		pool = append(pool, worker.New(queue, reg, gen, sim, nil, system.New(),
			worker.Config{HoldDelay: time.Millisecond}, zap.NewNop()))
	}
	return New(queue, pool, reg, staticTranscript(transcript), uuid.New(), system.New(), zap.NewNop()), reg, gen
}

func runDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("dispatcher did not stop after context cancel")
		}
	})
}

func TestGenerateRequiresTranscript(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "   \n\t"} {
		d, reg, gen := newDispatcher(t, text, 1)
		_, err := d.Generate(context.Background(), studio.ContentTitle)
		require.ErrorIs(t, err, studio.ErrNoInput)
		for _, job := range reg.Snapshot() {
			require.False(t, job.IsRunning)
		}
		require.Zero(t, gen.Calls())
	}
}

func TestGenerateRejectsUnknownKey(t *testing.T) {
	t.Parallel()

	d, _, _ := newDispatcher(t, "কথা", 1)
	_, err := d.Generate(context.Background(), "tiktok")
	require.ErrorIs(t, err, studio.ErrUnknownContentType)
}

func TestGenerateStartsAndSettlesOneJob(t *testing.T) {
	t.Parallel()

	d, reg, _ := newDispatcher(t, "আমি বাংলায় গান গাই", 1)
	job, err := d.Generate(context.Background(), studio.ContentFacebook)
	require.NoError(t, err)
	require.True(t, job.IsRunning)
	require.Equal(t, jobs.DefaultSeed, job.Progress)
	require.NotEmpty(t, job.RunID)

	runDispatcher(t, d)
	require.Eventually(t, func() bool {
		got, _ := reg.Get(studio.ContentFacebook)
		return !got.IsRunning && got.Result == "ফলাফল"
	}, time.Second, time.Millisecond)

	for _, other := range reg.Snapshot() {
		if other.Key != studio.ContentFacebook {
			require.Equal(t, studio.ContentJob{Key: other.Key}, other)
		}
	}
}

func TestGenerateRejectsOverlap(t *testing.T) {
	t.Parallel()

	d, _, _ := newDispatcher(t, "কথা", 1)
	_, err := d.Generate(context.Background(), studio.ContentTitle)
	require.NoError(t, err)
	_, err = d.Generate(context.Background(), studio.ContentTitle)
	require.ErrorIs(t, err, studio.ErrJobRunning)
}

func TestGenerateSelectedFansOut(t *testing.T) {
	t.Parallel()

	d, reg, gen := newDispatcher(t, "কথা", 4)
	started, err := d.GenerateSelected(context.Background(), []studio.ContentType{
		studio.ContentYouTube, studio.ContentTitle, studio.ContentYouTube,
	})
	require.NoError(t, err)
	require.Len(t, started, 2)
	require.Equal(t, studio.ContentTitle, started[0].Key)
	require.Equal(t, studio.ContentYouTube, started[1].Key)

	runDispatcher(t, d)
	require.Eventually(t, func() bool {
		title, _ := reg.Get(studio.ContentTitle)
		yt, _ := reg.Get(studio.ContentYouTube)
		return title.Result != "" && yt.Result != "" && !title.IsRunning && !yt.IsRunning
	}, time.Second, time.Millisecond)
	require.Equal(t, 2, gen.Calls())

	fb, _ := reg.Get(studio.ContentFacebook)
	require.Empty(t, fb.Result)
}

func TestGenerateSelectedInputErrors(t *testing.T) {
	t.Parallel()

	d, reg, _ := newDispatcher(t, "কথা", 1)
	_, err := d.GenerateSelected(context.Background(), nil)
	require.ErrorIs(t, err, studio.ErrNoSelection)
	_, err = d.GenerateSelected(context.Background(), []studio.ContentType{studio.ContentTitle, "bogus"})
	require.ErrorIs(t, err, studio.ErrUnknownContentType)
	for _, job := range reg.Snapshot() {
		require.False(t, job.IsRunning)
	}

	empty, _, _ := newDispatcher(t, "", 1)
	_, err = empty.GenerateSelected(context.Background(), studio.ContentTypes())
	require.ErrorIs(t, err, studio.ErrNoInput)
}

// TestGenerateSelectedPartialConflict starts the free keys when one is busy.
func TestGenerateSelectedPartialConflict(t *testing.T) {
	t.Parallel()

	d, _, _ := newDispatcher(t, "কথা", 1)
	_, err := d.Generate(context.Background(), studio.ContentThumbnail)
	require.NoError(t, err)

	started, err := d.GenerateSelected(context.Background(), studio.ContentTypes())
	require.ErrorIs(t, err, studio.ErrJobRunning)
	require.Len(t, started, 3)
}

// TestEnqueueFailureRollsBack verifies queue errors are wrapped and the job returns to idle.
func TestEnqueueFailureRollsBack(t *testing.T) {
	t.Parallel()

	reg := jobs.NewRegistry(0)
	d := New(&errorQueue{err: errors.New("boom")}, nil, reg, staticTranscript("কথা"), uuid.New(), system.New(), nil)
	_, err := d.Generate(context.Background(), studio.ContentTitle)
	require.EqualError(t, err, "dispatch title: queue enqueue: boom")

	job, _ := reg.Get(studio.ContentTitle)
	require.Equal(t, studio.ContentJob{Key: studio.ContentTitle}, job)
}
