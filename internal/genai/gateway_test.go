package genai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	name string

	mu      sync.Mutex
	replies []error
	calls   int
	text    string
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Generate(context.Context, string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.replies) > 0 {
		err := p.replies[0]
		p.replies = p.replies[1:]
		if err != nil {
			return "", err
		}
	}
	return p.text, nil
}

func (p *scriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestNewGatewayValidatesProviders(t *testing.T) {
	t.Parallel()

	gem := &scriptedProvider{name: ProviderGemini}
	_, err := NewGateway(GatewayConfig{Primary: ProviderOpenAI}, nil, gem)
	require.ErrorContains(t, err, "primary provider")
	_, err = NewGateway(GatewayConfig{Primary: ProviderGemini, Fallback: ProviderAnthropic}, nil, gem)
	require.ErrorContains(t, err, "fallback provider")

	gw, err := NewGateway(GatewayConfig{Primary: ProviderGemini}, nil, gem, nil, &scriptedProvider{name: ProviderOpenAI})
	require.NoError(t, err)
	require.Equal(t, []string{ProviderGemini, ProviderOpenAI}, gw.Providers())
}

func TestGatewaySingleAttemptByDefault(t *testing.T) {
	t.Parallel()

	boom := errors.New("503")
	gem := &scriptedProvider{name: ProviderGemini, replies: []error{boom}, text: "never"}
	gw, err := NewGateway(GatewayConfig{Primary: ProviderGemini}, nil, gem)
	require.NoError(t, err)

	_, err = gw.Generate(context.Background(), "prompt")
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, gem.Calls())
}

func TestGatewayRetries(t *testing.T) {
	t.Parallel()

	gem := &scriptedProvider{name: ProviderGemini, replies: []error{errors.New("a"), errors.New("b")}, text: "ok"}
	gw, err := NewGateway(GatewayConfig{Primary: ProviderGemini, MaxRetries: 2, Backoff: time.Millisecond}, nil, gem)
	require.NoError(t, err)

	text, err := gw.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, "ok", text)
	require.Equal(t, 3, gem.Calls())
}

func TestGatewayFallsBack(t *testing.T) {
	t.Parallel()

	primaryErr := errors.New("quota")
	gem := &scriptedProvider{name: ProviderGemini, replies: []error{primaryErr}}
	claude := &scriptedProvider{name: ProviderAnthropic, text: "fallback"}
	gw, err := NewGateway(GatewayConfig{Primary: ProviderGemini, Fallback: ProviderAnthropic}, nil, gem, claude)
	require.NoError(t, err)

	text, err := gw.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, "fallback", text)

	fallbackErr := errors.New("down")
	gem.replies = []error{primaryErr}
	claude.replies = []error{fallbackErr}
	_, err = gw.Generate(context.Background(), "prompt")
	require.ErrorIs(t, err, primaryErr)
	require.ErrorIs(t, err, fallbackErr)
}

func TestGatewayStopsRetryingOnCancel(t *testing.T) {
	t.Parallel()

	gem := &scriptedProvider{name: ProviderGemini, replies: []error{errors.New("a")}}
	gw, err := NewGateway(GatewayConfig{Primary: ProviderGemini, MaxRetries: 3, Backoff: time.Hour}, nil, gem)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = gw.Generate(ctx, "prompt")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, gem.Calls())
}

type countingLimiter struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (l *countingLimiter) Wait(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return l.err
}

func TestGatewayConsultsLimiterPerAttempt(t *testing.T) {
	t.Parallel()

	limiter := &countingLimiter{}
	gem := &scriptedProvider{name: ProviderGemini, replies: []error{errors.New("429")}, text: "ok"}
	gw, err := NewGateway(GatewayConfig{
		Primary:    ProviderGemini,
		MaxRetries: 1,
		Backoff:    time.Millisecond,
		Limiter:    limiter,
	}, nil, gem)
	require.NoError(t, err)

	text, err := gw.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, "ok", text)
	require.Equal(t, []string{ProviderGemini, ProviderGemini}, limiter.keys)

	limiter.err = context.DeadlineExceeded
	_, err = gw.Generate(context.Background(), "prompt")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 2, gem.Calls())
}
