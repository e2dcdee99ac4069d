package app

import (
	"context"

	"raindrop_sync/internal/apperr"
	"raindrop_sync/internal/auth"
	"raindrop_sync/internal/config"
	"raindrop_sync/internal/db"
	"raindrop_sync/internal/enrich"
	"raindrop_sync/internal/partition"
	"raindrop_sync/internal/raindrop"

	"go.uber.org/zap"
)

// Build wires the production components for cfg. cleanup closes the run
// store when one was opened and is always safe to call.
func Build(ctx context.Context, cfg *config.SyncConfig, log *zap.Logger, prompt auth.CodePrompter) (*SyncApp, func(), error) {
	if log == nil {
		log = zap.NewNop()
	}
	cleanup := func() {}

	httpClient := raindrop.NewHTTPClient(cfg.HTTP)
	store := auth.NewTokenStore(cfg.Raindrop.TokenFile, log.Named("auth"))
	tokens := auth.NewAuthenticator(cfg.Raindrop, store, prompt, httpClient, log.Named("auth"))
	api := raindrop.NewClient(cfg.Raindrop.APIBase, cfg.HTTP, httpClient, log.Named("raindrop"))

	var excerpts partition.ExcerptSource
	if cfg.Enrich.Enabled {
		e, err := enrich.NewEnricher(cfg.Enrich, cfg.HTTP.UserAgent, log.Named("enrich"))
		if err != nil {
			return nil, cleanup, apperr.New(apperr.KindConfig, "configure enrichment", err)
		}
		excerpts = e
		log.Info("Excerpt enrichment enabled")
	}

	var runs RunStore
	if cfg.DB.Connection != "" {
		m, err := db.NewMongoDB(ctx, cfg.DB)
		if err != nil {
			log.Warn("Run history unavailable, continuing without it", zap.Error(err))
		} else {
			runs = m
			cleanup = func() {
				if err := m.Close(context.Background()); err != nil {
					log.Warn("Failed to close run history", zap.Error(err))
				}
			}
		}
	}

	return NewSyncApp(cfg, log, tokens, api, excerpts, runs), cleanup, nil
}
