package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"genstudio/internal/auth"
	"genstudio/internal/domain"
	"genstudio/internal/history"
	"genstudio/internal/history/backend"
	"genstudio/internal/http/handlers"
	"genstudio/internal/http/httpapi"
	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
	"genstudio/internal/providers/genai"
	"genstudio/internal/session"
	"genstudio/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	medium, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open history medium")
	}
	defer func() {
		if err := medium.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close history medium")
		}
	}()

	creds, err := credentials.NewStore(ctx, medium)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open credentials")
	}
	gate := auth.NewGate(creds, cfg.GeminiAPIKey, &logger)
	if err := gate.RequestAuthorization(ctx); err != nil {
		logger.Warn().Err(err).Msg("no api key yet, generation will ask for one")
	}

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare artifact storage")
	}

	generator, err := genai.NewClient(genai.Options{
		APIKey:           gate.APIKey,
		BaseURL:          cfg.GeminiBaseURL,
		ImageModel:       cfg.GeminiModel,
		VideoModel:       cfg.GeminiVideoModel,
		Logger:           &logger,
		Store:            files,
		PublicBaseURL:    cfg.StorageBaseURL,
		Synthetic:        cfg.GeminiSynthetic,
		OperationTimeout: cfg.GeminiTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := session.NewMetrics(registry)

	// Synthetic output needs no key, so the controllers skip the gate.
	var sessionGate session.Gate = gate
	if cfg.GeminiSynthetic {
		sessionGate = nil
	}

	imageStore, err := history.Open[domain.ImageParams](ctx, medium, history.Options{
		Partition: string(domain.KindImage),
		Capacity:  cfg.ImageHistoryMax,
		Logger:    &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open image history")
	}
	defer imageStore.Close()

	videoStore, err := history.Open[domain.VideoParams](ctx, medium, history.Options{
		Partition: string(domain.KindVideo),
		Capacity:  cfg.VideoHistoryMax,
		Logger:    &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open video history")
	}
	defer videoStore.Close()

	image, err := session.New(session.Options[domain.ImageParams]{
		Kind:        domain.KindImage,
		Store:       imageStore,
		Dispatch:    session.ImageDispatch(generator),
		Gate:        sessionGate,
		Interactive: cfg.AuthInteractive,
		Normalize:   domain.ImageParams.Normalize,
		Draft:       domain.ImageParams{}.Normalize(),
		Logger:      &logger,
		Metrics:     metrics,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build image session")
	}
	video, err := session.New(session.Options[domain.VideoParams]{
		Kind:        domain.KindVideo,
		Store:       videoStore,
		Dispatch:    session.VideoDispatch(generator),
		Gate:        sessionGate,
		Interactive: cfg.AuthInteractive,
		Normalize:   domain.VideoParams.Normalize,
		Draft:       domain.VideoParams{}.Normalize(),
		Logger:      &logger,
		Metrics:     metrics,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build video session")
	}
	image.LoadHistory(ctx)
	video.LoadHistory(ctx)

	app := handlers.NewApp(handlers.AppOptions{
		Image:         image,
		Video:         video,
		Gate:          gate,
		Keys:          creds,
		Artifacts:     files,
		PublicBaseURL: cfg.StorageBaseURL,
		Logger:        &logger,
	})
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:        &logger,
		DefaultLocale: cfg.DefaultLocale,
		GenerateLimit: cfg.RateLimitPerMin,
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Static:        files.Handler(),
	})

	server := infra.NewHTTPServer(cfg, router)
	logger.Info().
		Str("addr", server.Addr()).
		Str("history_driver", cfg.HistoryDriver).
		Bool("synthetic", cfg.GeminiSynthetic).
		Msg("api listening")
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("server stopped")
}
