package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/bangla-scribe/internal/config"
	openaiprovider "github.com/JakeFAU/bangla-scribe/internal/genai/openai"
)

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{
			Port:                   8080,
			RequestTimeoutSeconds:  5,
			ShutdownTimeoutSeconds: 5,
			MaxUploadMB:            1,
		},
		Logging: config.LoggingConfig{Level: "error"},
		GenAI: config.GenAIConfig{
			Provider:              "gemini",
			TranscriptionProvider: "gemini",
			CallTimeoutSeconds:    5,
			Gemini:                config.GeminiConfig{APIKey: "test-key"},
		},
		Progress: config.ProgressConfig{Seed: 5, Ceiling: 92, TickMs: 400, HoldMs: 300, TranscriptResetMs: 1000},
		Dispatch: config.DispatchConfig{Workers: 4, QueueDepth: 4},
		Live:     config.LiveConfig{MaxFrameBytes: 4096, WriteTimeoutMs: 1000},
		Feed:     config.FeedConfig{MaxEvents: 10},
	}
}

func TestBuildServesStateAndShutsDown(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	app, err := Build(context.Background(), &cfg)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"selection":["title","thumbnail","facebook","youtube"]`)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/content/title/generate", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code, "no transcript yet")

	app.draining.Store(true)
	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, app.Close(context.Background()))
}

func TestSetupProvidersWithoutGemini(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.GenAI.Provider = "openai"
	cfg.GenAI.TranscriptionProvider = "openai"
	cfg.GenAI.Gemini.APIKey = ""
	cfg.GenAI.OpenAI = config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini", Language: "bn"}
	require.NoError(t, cfg.Validate())

	app := NewApp(&cfg, zap.NewNop())
	set, err := setupProviders(context.Background(), app)
	require.NoError(t, err)
	require.IsType(t, &openaiprovider.Client{}, set.transcriber)
	require.IsType(t, liveUnavailable{}, set.live)

	_, err = set.live.OpenLiveSession(context.Background())
	require.ErrorContains(t, err, "requires the gemini provider")
}
