package app

import (
	"context"
	"errors"
	"io"
	"time"

	"raindrop_sync/internal/apperr"
	"raindrop_sync/internal/auth"
	"raindrop_sync/internal/config"
	"raindrop_sync/internal/hierarchy"
	"raindrop_sync/internal/models"
	"raindrop_sync/internal/output"
	"raindrop_sync/internal/partition"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TokenProvider interface {
	Authenticate(ctx context.Context) (*auth.Token, error)
	Login(ctx context.Context) (*auth.Token, error)
}

type API interface {
	Collections(ctx context.Context, accessToken string) ([]models.Collection, error)
	Bookmarks(ctx context.Context, accessToken string) ([]models.Bookmark, int, error)
}

type RunStore interface {
	SaveRun(ctx context.Context, run *models.SyncRun) error
	RecentRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
}

var ErrHistoryUnavailable = errors.New("run history is unavailable: check db.connection")

type SyncApp struct {
	config      *config.SyncConfig
	log         *zap.Logger
	tokens      TokenProvider
	api         API
	resolver    *hierarchy.Resolver
	partitioner *partition.Partitioner
	runs        RunStore
	now         func() time.Time
}

// NewSyncApp wires the components. excerpts and runs may be nil.
func NewSyncApp(cfg *config.SyncConfig, log *zap.Logger, tokens TokenProvider, api API, excerpts partition.ExcerptSource, runs RunStore) *SyncApp {
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncApp{
		config:      cfg,
		log:         log,
		tokens:      tokens,
		api:         api,
		resolver:    hierarchy.NewResolver(log.Named("hierarchy")),
		partitioner: partition.NewPartitioner(log.Named("partition"), excerpts),
		runs:        runs,
		now:         time.Now,
	}
}

// Run performs one full export and records its outcome. The returned run is
// never nil, even when err is set.
func (a *SyncApp) Run(ctx context.Context) (*models.SyncRun, error) {
	run := &models.SyncRun{
		ID:           uuid.NewString(),
		StartedAt:    a.now().Unix(),
		TaggedPath:   a.config.TaggedPath(),
		UntaggedPath: a.config.UntaggedPath(),
	}
	a.log.Info("Script started.", zap.String("run_id", run.ID))

	err := a.sync(ctx, run)

	run.FinishedAt = a.now().Unix()
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorKind = string(apperr.KindOf(err))
		run.ErrorMessage = err.Error()
		a.log.Error("Script failed", zap.String("kind", run.ErrorKind), zap.Error(err))
	} else {
		run.Status = models.RunStatusSuccess
		a.log.Info("Script completed successfully.")
	}

	a.record(context.WithoutCancel(ctx), run)
	return run, err
}

func (a *SyncApp) sync(ctx context.Context, run *models.SyncRun) error {
	tok, err := a.authenticate(ctx)
	if err != nil {
		return err
	}

	collections, err := a.api.Collections(ctx, tok.AccessToken)
	if err != nil {
		return err
	}
	run.Collections = len(collections)

	res, err := a.resolver.Resolve(collections)
	if err != nil {
		return err
	}

	bookmarks, pages, err := a.api.Bookmarks(ctx, tok.AccessToken)
	run.Pages = pages
	if err != nil {
		return err
	}
	run.Bookmarks = len(bookmarks)

	var stats partition.Stats
	err = output.WriteFiles(run.TaggedPath, run.UntaggedPath, func(tagged, untagged io.Writer) error {
		var perr error
		stats, perr = a.partitioner.Partition(ctx, bookmarks, res, tagged, untagged)
		return perr
	})
	run.Tagged, run.Untagged, run.Skipped, run.Enriched = stats.Tagged, stats.Untagged, stats.Skipped, stats.Enriched
	if err != nil {
		return err
	}

	a.log.Info("Saved tagged bookmarks", zap.Int("count", stats.Tagged), zap.String("path", run.TaggedPath))
	a.log.Info("Saved untagged bookmarks", zap.Int("count", stats.Untagged), zap.String("path", run.UntaggedPath))
	if stats.Skipped > 0 {
		a.log.Info("Ignored bookmarks in Unsorted or Trash", zap.Int("count", stats.Skipped))
	}
	return nil
}

func (a *SyncApp) authenticate(ctx context.Context) (*auth.Token, error) {
	tok, err := a.tokens.Authenticate(ctx)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindAuth {
			err = apperr.New(apperr.KindAuth, "authenticate", err)
		}
		a.log.Error("Authentication failed. Exiting.", zap.Error(err))
		return nil, err
	}
	return tok, nil
}

func (a *SyncApp) record(ctx context.Context, run *models.SyncRun) {
	if a.runs == nil {
		return
	}
	if err := a.runs.SaveRun(ctx, run); err != nil {
		a.log.Warn("Failed to record sync run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// Collections resolves the collection tree without touching the output files.
func (a *SyncApp) Collections(ctx context.Context) ([]hierarchy.Entry, error) {
	tok, err := a.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	collections, err := a.api.Collections(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}
	res, err := a.resolver.Resolve(collections)
	if err != nil {
		return nil, err
	}
	return res.Sorted(), nil
}

func (a *SyncApp) Login(ctx context.Context) error {
	_, err := a.tokens.Login(ctx)
	return err
}

func (a *SyncApp) History(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if a.runs == nil {
		return nil, apperr.New(apperr.KindConfig, "list sync runs", ErrHistoryUnavailable)
	}
	return a.runs.RecentRuns(ctx, limit)
}
