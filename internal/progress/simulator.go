package progress

import (
	"context"
	"math"
	"sync"
	"time"
)

// Simulated progress defaults.
const (
	DefaultSeed     = 5
	DefaultCeiling  = 92
	DefaultInterval = 400 * time.Millisecond
)

// SimulatorConfig shapes the simulated progress curve.
//   - Seed: value shown as soon as a job starts.
//   - Ceiling: upper bound the curve approaches; must stay below 100 so the
//     simulation never signals completion on its own.
//   - Interval: time between ticks.
type SimulatorConfig struct {
	Seed     int
	Ceiling  int
	Interval time.Duration
}

// Simulator advances a displayed percentage asymptotically toward Ceiling
// while the real operation's completion time is unknown.
type Simulator struct {
	cfg SimulatorConfig
}

// NewSimulator applies defaults for out-of-range fields.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.Ceiling <= 0 || cfg.Ceiling >= 100 {
		cfg.Ceiling = DefaultCeiling
	}
	if cfg.Seed <= 0 || cfg.Seed >= cfg.Ceiling {
		cfg.Seed = DefaultSeed
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Simulator{cfg: cfg}
}

// Seed returns the starting progress value.
func (s *Simulator) Seed() int {
	return s.cfg.Seed
}

// Ceiling returns the highest value the simulation can reach.
func (s *Simulator) Ceiling() int {
	return s.cfg.Ceiling
}

// Next computes current + max((ceiling-current)/10, 1), rounded and clamped
// to the ceiling. It never returns less than current.
func (s *Simulator) Next(current int) int {
	step := float64(s.cfg.Ceiling-current) / 10
	if step < 1 {
		step = 1
	}
	next := int(math.Round(float64(current) + step))
	if next > s.cfg.Ceiling {
		next = s.cfg.Ceiling
	}
	if next < current {
		return current
	}
	return next
}

// Start ticks from the seed on a background goroutine, passing each new value
// to apply. Returning false from apply ends the loop. The caller must Stop the
// returned Ticker on every exit path.
func (s *Simulator) Start(ctx context.Context, apply func(progress int) bool) *Ticker {
	ctx, cancel := context.WithCancel(ctx)
	t := &Ticker{cancel: cancel, done: make(chan struct{})}
	go s.loop(ctx, t.done, apply)
	return t
}

func (s *Simulator) loop(ctx context.Context, done chan<- struct{}, apply func(int) bool) {
	defer close(done)
	tick := time.NewTicker(s.cfg.Interval)
	defer tick.Stop()
	current := s.cfg.Seed
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		// A tick and a cancellation can become ready together.
		if ctx.Err() != nil {
			return
		}
		next := s.Next(current)
		if next == current {
			continue
		}
		current = next
		if !apply(current) {
			return
		}
	}
}

// Ticker is a running simulation.
type Ticker struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop cancels the simulation and waits for the loop to exit, so no apply
// call happens after Stop returns. It is safe to call more than once.
func (t *Ticker) Stop() {
	t.once.Do(t.cancel)
	<-t.done
}
