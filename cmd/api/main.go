package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/panjf2000/ants/v2"

	"videogen/internal/compose"
	"videogen/internal/http/handlers"
	httpapi "videogen/internal/http/httpapi"
	"videogen/internal/infra"
	"videogen/internal/jobstore"
	"videogen/internal/notify"
	"videogen/internal/pipeline"
	"videogen/internal/providers/genai"
	"videogen/internal/providers/video"
	"videogen/internal/storage"
)

func main() {
	// Optional .env
	_ = godotenv.Load(".env", ".env.local")

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	ctx := context.Background()

	gemini, err := genai.NewClient(genai.Options{
		APIKey:  cfg.GoogleAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  ptr(infra.Component(logger, "gemini")),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}
	if !gemini.HasCredentials() {
		logger.Warn().Msg("GOOGLE_API_KEY is not set; generation requests will fail")
	}

	uploader, err := storage.New(ctx, storage.Options{
		Provider:            cfg.StorageProvider,
		Folder:              cfg.UploadFolder,
		CloudinaryCloudName: cfg.CloudinaryCloudName,
		CloudinaryAPIKey:    cfg.CloudinaryAPIKey,
		CloudinaryAPISecret: cfg.CloudinaryAPISecret,
		S3Bucket:            cfg.S3Bucket,
		AWSRegion:           cfg.AWSRegion,
		S3PublicBaseURL:     cfg.S3PublicBaseURL,
		LocalPath:           cfg.StoragePath,
		LocalBaseURL:        cfg.StorageBaseURL,
		Logger:              &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.StorageProvider).Msg("failed to init storage")
	}

	// Connects on first write so a down store never blocks startup.
	store := jobstore.LazyFromOptions(jobstore.Options{
		URL:        cfg.JobStoreURL,
		Database:   cfg.MongoDB,
		Collection: cfg.MongoJobsCollection,
		Logger:     ptr(infra.Component(logger, "jobstore")),
	})
	status := jobstore.NewBestEffort(store, jobstore.DefaultWriteTimeout, infra.Component(logger, "jobstore"))
	webhook := notify.NewWebhook(notify.Options{
		URL:     cfg.WebhookURL,
		Timeout: cfg.WebhookTimeout,
		Logger:  ptr(infra.Component(logger, "webhook")),
	})

	veo := video.NewVeo(gemini, video.Options{
		Model:        cfg.VeoModel,
		PollInterval: cfg.VeoPollInterval,
		MaxWait:      cfg.VeoMaxWait,
		ImageRoot:    cfg.VeoImageRoot,
		Logger:       ptr(infra.Component(logger, "veo")),
	})
	app := &handlers.App{
		Veo: pipeline.NewRunner(pipeline.Deps{
			Generator: veo,
			Uploader:  uploader,
			Status:    status,
			Notifier:  webhook,
			Defaults:  cfg.GenerationDefaults(),
			Logger:    &logger,
		}),
		Jobs: status,
	}

	if cfg.EnableFramePipeline {
		narrator, err := compose.NewNarrator(ctx, cfg.TTSProvider, cfg.TTSLanguage, cfg.TTSVoice)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init narrator")
		}
		frames := compose.NewFramePipeline(compose.Options{
			Script:   compose.NewScriptWriter(gemini, cfg.GeminiModel),
			Narrator: narrator,
			Composer: compose.Composer{Binary: cfg.FFmpegPath},
			Logger:   &logger,
		})
		app.Frames = pipeline.NewRunner(pipeline.Deps{
			Generator: frames,
			Uploader:  uploader,
			Status:    status,
			Notifier:  webhook,
			Defaults:  cfg.GenerationDefaults(),
			Logger:    &logger,
		})
		logger.Info().Str("tts", cfg.TTSProvider).Msg("frame pipeline enabled")
	}

	pool, err := ants.NewPool(cfg.WorkerConcurrency,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			logger.Error().Interface("panic", p).Msg("background job panicked")
		}),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create worker pool")
	}
	app.Pool = pool

	routerOpts := httpapi.Options{RateLimitPerMin: cfg.RateLimitPerMin}
	if local, ok := uploader.(*storage.Local); ok {
		routerOpts.StaticDir = local.Root()
	}
	router := httpapi.NewRouter(app, logger, routerOpts)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("storage", cfg.StorageProvider).
			Int("workers", cfg.WorkerConcurrency).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := pool.ReleaseTimeout(30 * time.Second); err != nil {
		logger.Warn().Err(err).Msg("background jobs still running at exit")
	}
	if err := status.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("failed to close job store")
	}
	logger.Info().Msg("server stopped")
}

func ptr[T any](v T) *T { return &v }
