package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/zey041022/poem-web-app/internal/config"
	"github.com/zey041022/poem-web-app/internal/domain"
	"github.com/zey041022/poem-web-app/internal/infrastructure/fusionbrain"
	"github.com/zey041022/poem-web-app/internal/infrastructure/gemini"
	"github.com/zey041022/poem-web-app/internal/infrastructure/modelscope"
	"github.com/zey041022/poem-web-app/internal/repository"
	"github.com/zey041022/poem-web-app/internal/service"
)

// app holds everything a command needs; close releases it.
type app struct {
	studio *service.Studio
	store  domain.AssetStore
	pruner *repository.Pruner
	// fileDir is set for the file store so commands can print paths.
	fileDir string
	db      *sql.DB
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

func newTextStreamer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.TextStreamer, error) {
	switch cfg.Text.Provider {
	case config.ProviderGemini:
		return gemini.NewClient(ctx, gemini.Config{
			APIKey: cfg.GeminiAPIKey,
			Logger: logger,
		})
	default:
		return modelscope.NewClient(cfg.ModelScopeAPIKey,
			modelscope.WithBaseURL(cfg.ModelScopeBaseURL),
			modelscope.WithHTTPClient(&http.Client{Timeout: cfg.StreamTimeout}),
			modelscope.WithLogger(logger),
		), nil
	}
}

func newImageJobs(cfg *config.Config, logger *zap.Logger) domain.ImageJobService {
	hc := &http.Client{Timeout: cfg.DownloadTimeout}
	switch cfg.Image.Provider {
	case config.ProviderFusionBrain:
		return fusionbrain.NewClient(cfg.FusionBrainAPIKey, cfg.FusionBrainSecretKey,
			fusionbrain.WithHTTPClient(hc),
			fusionbrain.WithLogger(logger),
		)
	default:
		return modelscope.NewClient(cfg.ModelScopeAPIKey,
			modelscope.WithBaseURL(cfg.ModelScopeBaseURL),
			modelscope.WithHTTPClient(hc),
			modelscope.WithLogger(logger),
		)
	}
}

// newStore opens the configured asset store and a pruner over it.
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}
	switch cfg.AssetStore {
	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
		db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

		store := repository.NewPostgresAssetStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		a.store = store
		a.pruner = repository.NewPruner(store, cfg.PruneMaxAge, logger)
	default:
		store, err := repository.NewFileAssetStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		a.store = store
		a.fileDir = store.Dir()
		a.pruner = repository.NewPruner(store, cfg.PruneMaxAge, logger)
	}
	return a, nil
}

// newApp wires the configured backends, store and services.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	streamer, err := newTextStreamer(ctx, cfg, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create text backend: %w", err)
	}

	textModel := cfg.Text.Model
	if cfg.Text.Provider == config.ProviderGemini {
		textModel = cfg.GeminiModel
	}

	poems := service.NewPoetryService(streamer, service.PoetryConfig{
		Model: textModel,
		Sampling: domain.SamplingParams{
			Temperature: cfg.Text.Temperature,
			MaxTokens:   cfg.Text.MaxTokens,
		},
		RetryDelay:    cfg.Text.RetryDelay,
		StreamTimeout: cfg.StreamTimeout,
	}, logger)

	images := service.NewImageService(newImageJobs(cfg, logger), a.store, service.ImageConfig{
		Model:            cfg.Image.Model,
		Width:            cfg.Image.Width,
		Height:           cfg.Image.Height,
		Steps:            cfg.Image.Steps,
		GuidanceScale:    cfg.Image.GuidanceScale,
		Style:            cfg.Image.Style,
		NegativePrompt:   cfg.Image.NegativePrompt,
		PollTimeout:      cfg.RequestTimeout,
		PollMinDelay:     cfg.Image.PollMinDelay,
		PollStep:         cfg.Image.PollStep,
		PollMaxDelay:     cfg.Image.PollMaxDelay,
		PollTimeoutDelay: cfg.Image.PollTimeoutDelay,
		DownloadTimeout:  cfg.DownloadTimeout,
		TaskRetryDelay:   cfg.Image.TaskRetryDelay,
	}, logger)

	a.studio = service.NewStudio(poems, images, service.Limits{
		TextRetries:      cfg.Text.MaxRetries,
		ImageTaskRetries: cfg.Image.MaxTaskRetries,
		ImagePollRetries: cfg.Image.MaxPollingRetries,
	})
	return a, nil
}
