package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/workerpool"

	vqconfig "github.com/voicetyped/voicequery/config"
	"github.com/voicetyped/voicequery/internal/api"
	"github.com/voicetyped/voicequery/internal/audio"
	"github.com/voicetyped/voicequery/internal/connectutil"
	"github.com/voicetyped/voicequery/internal/pipeline"
	"github.com/voicetyped/voicequery/internal/query"
	"github.com/voicetyped/voicequery/internal/query/prompt"
	"github.com/voicetyped/voicequery/internal/rpc"
	"github.com/voicetyped/voicequery/internal/transcription"
	"github.com/voicetyped/voicequery/internal/transcription/registry"
	"github.com/voicetyped/voicequery/pkg/callback"
	"github.com/voicetyped/voicequery/pkg/events"
	"github.com/voicetyped/voicequery/pkg/export"
	"github.com/voicetyped/voicequery/pkg/history"
	"github.com/voicetyped/voicequery/pkg/urlvalidation"

	// Register speech backends via init().
	_ "github.com/voicetyped/voicequery/internal/transcription/backends/fasterwhisper"
	_ "github.com/voicetyped/voicequery/internal/transcription/backends/openai"
	_ "github.com/voicetyped/voicequery/internal/transcription/backends/whispercpp"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	cfg, err := config.LoadWithOIDC[vqconfig.VoiceQueryConfig](ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	eventRef := cfg.GetEventsQueueName()
	eventURL := cfg.GetEventsQueueURL()

	serviceOpts := []frame.Option{
		frame.WithConfig(&cfg),
		frame.WithName("voicequery"),
		frame.WithRegisterPublisher(eventRef, eventURL),
		frame.WithWorkerPoolOptions(
			workerpool.WithPoolCount(cfg.WorkerPoolCount),
			workerpool.WithSinglePoolCapacity(cfg.WorkerPoolCapacity),
		),
	}
	if cfg.RequireAuth {
		serviceOpts = append(serviceOpts, frame.WithRegisterServerOauth2Client())
	}
	if cfg.HistoryEnabled {
		serviceOpts = append(serviceOpts, frame.WithDatastore())
	}

	ctx, srv := frame.NewService(serviceOpts...)
	defer srv.Stop(ctx)

	pool, err := srv.WorkManager().GetPool()
	if err != nil {
		log.Fatalf("getting worker pool: %v", err)
	}

	pub := events.NewPublisher(srv.QueueManager(), "voicequery", eventRef)

	// --- Transcription ---
	engines := registry.NewCache(registry.ASR, cfg.EngineConfig())
	defer engines.Close()
	tr := transcription.New(engines, cfg.ASRBackend, cfg.WhisperModel)
	loader := audio.NewLoader(audio.WithFFmpeg(cfg.FFmpegPath))

	// --- Query generation ---
	prompts := prompt.NewLoader(cfg.PromptDir, cfg.PromptTemplate)
	if _, err := prompts.LoadAll(); err != nil {
		slog.WarnContext(ctx, "loading prompt templates", slog.String("error", err.Error()))
	}
	if err := pool.Submit(ctx, func() {
		if err := prompts.WatchAndReload(ctx); err != nil {
			slog.WarnContext(ctx, "prompt watcher stopped", slog.String("error", err.Error()))
		}
	}); err != nil {
		slog.WarnContext(ctx, "prompt hot reload disabled", slog.String("error", err.Error()))
	}

	var gen pipeline.Generator
	if cfg.GoogleAPIKey != "" {
		gen = query.NewGenerator(query.NewClient(cfg.GoogleAPIKey, cfg.GeneratorBaseURL), cfg.GeneratorModel, prompts)
	} else {
		slog.WarnContext(ctx, "GOOGLE_API_KEY not set, query generation disabled")
	}

	// --- Side effects ---
	var validateOpts []urlvalidation.Option
	if cfg.CallbackAllowPrivateIPs {
		validateOpts = append(validateOpts, urlvalidation.AllowPrivateIPs())
	}
	deliverer := callback.NewDeliverer(cfg.CallbackConfig(), pub, pool, validateOpts...)

	pipeOpts := []pipeline.Option{
		pipeline.WithEvents(pub),
		pipeline.WithCallbacks(deliverer),
		pipeline.WithSegmenting(float64(cfg.SegmentThresholdMB), cfg.SegmentSeconds),
	}

	var store api.HistoryStore
	if cfg.HistoryEnabled {
		repo := history.NewRepository(srv.DatastoreManager().GetPool(ctx, "__default__pool_name__"))
		if err := repo.Migrate(ctx); err != nil {
			log.Fatalf("migrating history: %v", err)
		}
		pipeOpts = append(pipeOpts, pipeline.WithHistory(repo))
		store = repo
	}

	p := pipeline.New(loader, tr, gen, pipeOpts...)

	// --- HTTP Mux: REST and Connect on one server ---
	mux := http.NewServeMux()

	path, h := rpc.NewQueryServiceHandler(rpc.NewQueryHandler(p, os.TempDir()), connectutil.DefaultOptions()...)
	mux.Handle(path, h)

	restHandler := api.NewHandler(p, api.Config{
		Exporter:       export.New(cfg.ExportDir),
		History:        store,
		Publisher:      pub,
		Prompts:        prompts,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})
	restHandler.RegisterRoutes(mux)

	var handler http.Handler = mux
	if cfg.RequireAuth {
		handler = connectutil.AuthenticatedHTTPMiddleware(mux, srv.SecurityManager().GetAuthenticator(ctx))
	}

	srv.Init(ctx,
		frame.WithRegisterSubscriber(eventRef+".relay", eventURL, &events.Relay{Publisher: pub}),
		frame.WithHTTPHandler(connectutil.H2CHandler(handler)),
	)

	slog.InfoContext(ctx, "voicequery starting",
		slog.String("asr_backend", tr.Backend()),
		slog.String("whisper_model", tr.Model()),
		slog.Bool("query_generation", p.CanGenerate()),
		slog.String("port", cfg.HTTPPort()))

	if err := srv.Run(ctx, ""); err != nil {
		log.Fatalf("service exited: %v", err)
	}
}
