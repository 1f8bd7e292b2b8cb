// Package server provides the core application server and dependency wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/bangla-scribe/internal/api"
	"github.com/JakeFAU/bangla-scribe/internal/clock/system"
	"github.com/JakeFAU/bangla-scribe/internal/config"
	"github.com/JakeFAU/bangla-scribe/internal/controller"
	"github.com/JakeFAU/bangla-scribe/internal/dispatcher"
	"github.com/JakeFAU/bangla-scribe/internal/genai"
	anthropicprovider "github.com/JakeFAU/bangla-scribe/internal/genai/anthropic"
	geminiprovider "github.com/JakeFAU/bangla-scribe/internal/genai/gemini"
	openaiprovider "github.com/JakeFAU/bangla-scribe/internal/genai/openai"
	"github.com/JakeFAU/bangla-scribe/internal/id/uuid"
	"github.com/JakeFAU/bangla-scribe/internal/jobs"
	"github.com/JakeFAU/bangla-scribe/internal/live"
	"github.com/JakeFAU/bangla-scribe/internal/logging"
	"github.com/JakeFAU/bangla-scribe/internal/policy/ratelimit"
	"github.com/JakeFAU/bangla-scribe/internal/progress"
	progresssinks "github.com/JakeFAU/bangla-scribe/internal/progress/sinks"
	gcppublisher "github.com/JakeFAU/bangla-scribe/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/bangla-scribe/internal/queue/memory"
	gcsstorage "github.com/JakeFAU/bangla-scribe/internal/storage/gcs"
	"github.com/JakeFAU/bangla-scribe/internal/studio"
	"github.com/JakeFAU/bangla-scribe/internal/transcribe"
	"github.com/JakeFAU/bangla-scribe/internal/worker"
)

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	apiServer    *api.Server
	controller   *controller.Controller
	dispatch     *dispatcher.Dispatcher
	progressHub  *progress.Hub
	feed         *progresssinks.FeedSink
	queue        *queueMemory.Queue
	pubsubClient *pubsub.Client
	publisher    *gcppublisher.Publisher
	audioStore   *gcsstorage.AudioStore

	draining atomic.Bool
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) *App {
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("provider", cfg.GenAI.Provider),
		zap.String("fallback_provider", cfg.GenAI.FallbackProvider),
		zap.String("transcription_provider", cfg.GenAI.TranscriptionProvider),
	)
	return &App{cfg: cfg, logger: logger}
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		a.logger.Info("dispatcher started", zap.Int("workers", a.cfg.Dispatch.Workers))
		a.dispatch.Run(dispatchCtx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")
	a.draining.Store(true)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	var errs error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	cancelDispatch()
	<-dispatchDone

	return multierr.Append(errs, a.Close(shutdownCtx))
}

// Close gracefully shuts down the application. Every step runs even when an
// earlier one fails; the errors are combined.
func (a *App) Close(ctx context.Context) error {
	var errs error
	if a.controller != nil {
		errs = multierr.Append(errs, a.controller.Close())
	}
	if a.queue != nil {
		a.queue.Close()
	}
	errs = multierr.Append(errs, a.closeInfrastructure(ctx))
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return errs
}

func (a *App) closeInfrastructure(ctx context.Context) error {
	var errs error
	if a.progressHub != nil {
		errs = multierr.Append(errs, a.progressHub.Close(ctx))
	}
	if a.publisher != nil {
		a.publisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("pubsub client close: %w", err))
		}
	}
	if a.audioStore != nil {
		errs = multierr.Append(errs, a.audioStore.Close())
	}
	return errs
}

func (a *App) ready(context.Context) error {
	if a.draining.Load() {
		return errors.New("shutting down")
	}
	return nil
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app := NewApp(cfg, logger)
	app.logger.Info("building application dependencies")

	providers, err := setupProviders(ctx, app)
	if err != nil {
		return nil, err
	}

	if err := setupStorage(ctx, app); err != nil {
		return nil, err
	}

	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}

	events, err := setupProgress(ctx, app, publisher)
	if err != nil {
		return nil, err
	}

	clock := system.New()
	registry := jobs.NewRegistry(cfg.Progress.Seed)
	store := transcribe.NewStore()

	app.queue = queueMemory.NewQueue(cfg.Dispatch.QueueDepth)
	app.dispatch = setupDispatcher(app, registry, store, providers.generator, events, clock)

	var objects studio.ObjectReader
	if app.audioStore != nil {
		objects = app.audioStore
	}
	transcription := transcribe.NewService(store, providers.transcriber, objects, events, clock, transcribe.Config{
		ResetDelay:  config.Millis(cfg.Progress.TranscriptResetMs),
		CallTimeout: cfg.CallTimeout(),
		BaseContext: ctx,
	}, logger.Named("transcribe"))

	recorder := live.NewRecorder(providers.live, store, events, clock, logger.Named("live"))

	app.controller = controller.New(controller.Deps{
		Registry:      registry,
		Dispatcher:    app.dispatch,
		Transcription: transcription,
		Recorder:      recorder,
		Selection:     studio.NewSelection(),
		Events:        events,
		Clock:         clock,
		Logger:        logger.Named("controller"),
	})

	app.apiServer = api.NewServer(app.controller, app.feed, *cfg, logger, api.WithReadiness(app.ready))
	return app, nil
}

type providerSet struct {
	generator   studio.Generator
	transcriber studio.Transcriber
	live        studio.LiveTranscriber
}

func setupProviders(ctx context.Context, app *App) (providerSet, error) {
	cfg := app.cfg
	var (
		set       providerSet
		available []genai.Provider
		gemini    *geminiprovider.Client
		openai    *openaiprovider.Client
	)

	if cfg.UsesProvider(genai.ProviderGemini) || cfg.GenAI.Gemini.APIKey != "" {
		client, err := geminiprovider.New(ctx, geminiprovider.Config{
			APIKey:          cfg.GenAI.Gemini.APIKey,
			Model:           cfg.GenAI.Gemini.Model,
			LiveModel:       cfg.GenAI.Gemini.LiveModel,
			LiveInstruction: cfg.GenAI.Gemini.LiveInstruction,
		})
		if err != nil {
			return set, fmt.Errorf("gemini client init failed: %w", err)
		}
		gemini = client
		available = append(available, client)
		app.logger.Info("gemini provider initialized", zap.String("model", cfg.GenAI.Gemini.Model))
	}
	if cfg.UsesProvider(genai.ProviderOpenAI) {
		client, err := openaiprovider.New(openaiprovider.Config{
			APIKey:   cfg.GenAI.OpenAI.APIKey,
			Model:    cfg.GenAI.OpenAI.Model,
			Language: cfg.GenAI.OpenAI.Language,
		})
		if err != nil {
			return set, fmt.Errorf("openai client init failed: %w", err)
		}
		openai = client
		available = append(available, client)
		app.logger.Info("openai provider initialized", zap.String("model", cfg.GenAI.OpenAI.Model))
	}
	if cfg.UsesProvider(genai.ProviderAnthropic) {
		client, err := anthropicprovider.New(anthropicprovider.Config{
			APIKey:    cfg.GenAI.Anthropic.APIKey,
			Model:     cfg.GenAI.Anthropic.Model,
			MaxTokens: cfg.GenAI.Anthropic.MaxTokens,
		})
		if err != nil {
			return set, fmt.Errorf("anthropic client init failed: %w", err)
		}
		available = append(available, client)
		app.logger.Info("anthropic provider initialized", zap.String("model", cfg.GenAI.Anthropic.Model))
	}

	gateway, err := genai.NewGateway(genai.GatewayConfig{
		Primary:    cfg.GenAI.Provider,
		Fallback:   cfg.GenAI.FallbackProvider,
		MaxRetries: cfg.GenAI.MaxRetries,
		Backoff:    config.Millis(cfg.GenAI.BackoffMs),
		Limiter: ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.GenAI.RateLimitRPS,
			DefaultBurst: cfg.GenAI.RateLimitBurst,
		}),
	}, app.logger.Named("genai"), available...)
	if err != nil {
		return set, fmt.Errorf("genai gateway init failed: %w", err)
	}
	set.generator = gateway

	switch cfg.GenAI.TranscriptionProvider {
	case genai.ProviderOpenAI:
		set.transcriber = openai
	default:
		set.transcriber = gemini
	}

	if gemini != nil {
		set.live = gemini
	} else {
		app.logger.Warn("live transcription disabled; it requires a gemini api key")
		set.live = liveUnavailable{}
	}
	return set, nil
}

// liveUnavailable refuses live sessions when no streaming provider is set up.
type liveUnavailable struct{}

func (liveUnavailable) OpenLiveSession(context.Context) (studio.LiveSession, error) {
	return nil, errors.New("live transcription requires the gemini provider")
}

func setupStorage(ctx context.Context, app *App) error {
	if !app.cfg.Storage.GCSEnabled {
		app.logger.Info("object transcription disabled")
		return nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("gcs client init failed: %w", err)
	}
	app.audioStore, err = gcsstorage.New(client, gcsstorage.Config{
		Bucket:   app.cfg.Storage.GCSBucket,
		MaxBytes: int64(app.cfg.Storage.MaxMB) << 20,
	})
	if err != nil {
		return fmt.Errorf("gcs audio store init failed: %w", err)
	}
	app.logger.Info("gcs audio store initialized", zap.String("bucket", app.cfg.Storage.GCSBucket))
	return nil
}

func setupPublisher(ctx context.Context, app *App) (studio.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Info("no Pub/Sub topic configured, lifecycle events stay local")
		return nil, nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.publisher = gcppublisher.New(app.pubsubClient.Publisher(app.cfg.PubSub.TopicName))
	app.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return app.publisher, nil
}

func setupProgress(ctx context.Context, app *App, publisher studio.Publisher) (progress.Emitter, error) {
	app.feed = progresssinks.NewFeedSink(app.cfg.Feed.MaxEvents)
	promSink, err := progresssinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink init failed: %w", err)
	}
	sinkList := []progress.Sink{
		progresssinks.NewLogSink(app.logger.Named("progress_log")),
		promSink,
		app.feed,
	}
	if publisher != nil {
		sinkList = append(sinkList, progresssinks.NewPubSubSink(publisher, app.cfg.PubSub.TopicName))
		app.logger.Debug("added progress pubsub sink")
	}
	app.progressHub = progress.NewHub(progress.Config{
		BaseContext: ctx,
		Logger:      app.logger.Named("progress_hub"),
	}, sinkList...)
	app.logger.Info("progress hub initialized", zap.Int("sinks", len(sinkList)))
	return app.progressHub, nil
}

func setupDispatcher(
	app *App,
	registry *jobs.Registry,
	store *transcribe.Store,
	generator studio.Generator,
	events progress.Emitter,
	clock *system.Clock,
) *dispatcher.Dispatcher {
	sim := progress.NewSimulator(progress.SimulatorConfig{
		Seed:     app.cfg.Progress.Seed,
		Ceiling:  app.cfg.Progress.Ceiling,
		Interval: config.Millis(app.cfg.Progress.TickMs),
	})
	workerCfg := worker.Config{
		HoldDelay:   config.Millis(app.cfg.Progress.HoldMs),
		CallTimeout: app.cfg.CallTimeout(),
	}
	app.logger.Info("worker config",
		zap.Duration("hold_delay", workerCfg.HoldDelay),
		zap.Duration("call_timeout", workerCfg.CallTimeout),
		zap.Duration("tick", config.Millis(app.cfg.Progress.TickMs)),
	)

	workers := make([]*worker.Worker, 0, app.cfg.Dispatch.Workers)
	for i := 0; i < app.cfg.Dispatch.Workers; i++ {
		workers = append(workers, worker.New(
			app.queue,
			registry,
			generator,
			sim,
			events,
			clock,
			workerCfg,
			app.logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	return dispatcher.New(app.queue, workers, registry, store, uuid.New(), clock, app.logger.Named("dispatcher"))
}
