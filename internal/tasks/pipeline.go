package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Jikexiaobai/Y2B/internal/models"
	"github.com/Jikexiaobai/Y2B/internal/services"
	"github.com/Jikexiaobai/Y2B/internal/shared"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// EngineOpts contains the collaborators for a migration run. Ledger is
// required; every other field defaults to the production implementation
// when nil.
type EngineOpts struct {
	Ledger    services.Ledger
	Catalog   services.Catalog
	Acquirer  services.Acquirer
	Publisher services.Publisher
	Notifier  services.Notifier
	DryRun    bool
}

// Engine runs the migration pipeline end to end.
type Engine struct {
	cfg       *shared.Config
	ledger    services.Ledger
	catalog   services.Catalog
	acquirer  services.Acquirer
	publisher services.Publisher
	notifier  services.Notifier
	limiter   *rate.Limiter
	logger    *log.Logger
	dryRun    bool
}

// RunResult summarizes one completed run.
type RunResult struct {
	RunID     string
	Selected  int
	Published int
	Skipped   int
}

// NewEngine creates an engine from config and collaborators.
func NewEngine(cfg *shared.Config, opts EngineOpts, logger *log.Logger) (*Engine, error) {
	if opts.Ledger == nil {
		return nil, fmt.Errorf("%w: ledger not configured", shared.ErrMissingArgument)
	}
	if opts.Catalog == nil {
		opts.Catalog = services.NewFeedCatalog(cfg, nil)
	}
	if opts.Acquirer == nil {
		opts.Acquirer = services.NewDownloader(cfg, nil, logger)
	}
	if opts.Publisher == nil {
		opts.Publisher = services.NewUploader(cfg, logger)
	}
	if opts.Notifier == nil {
		opts.Notifier = services.NewPushNotifier(cfg)
	}

	limit := rate.Inf
	if interval := cfg.PacingInterval(); interval > 0 {
		limit = rate.Every(interval)
	}

	return &Engine{
		cfg:       cfg,
		ledger:    opts.Ledger,
		catalog:   opts.Catalog,
		acquirer:  opts.Acquirer,
		publisher: opts.Publisher,
		notifier:  opts.Notifier,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
		dryRun:    opts.DryRun,
	}, nil
}

// Run executes one migration pass. It returns the summary of completed
// work even when the run aborts part-way, alongside the aborting error.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{RunID: shared.GenerateID()}
	logger := e.logger.With("run_id", result.RunID)

	state, err := e.ledger.Fetch(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to initialize run: %w", err)
	}
	logger.Info("ledger loaded", "sources", len(state.Sources), "migrated", len(state.Index))

	cookiePath := filepath.Join(e.cfg.Pipeline.Workspace, e.cfg.Pipeline.CookieFile)
	if !e.dryRun {
		if err := os.WriteFile(cookiePath, state.Credentials, 0600); err != nil {
			return result, fmt.Errorf("failed to write session credentials: %w", err)
		}
	}

	groups, err := e.selectWork(ctx, state, logger)
	if err != nil {
		return result, err
	}
	for _, group := range groups {
		result.Selected += len(group.Items)
	}
	logger.Info("selection complete", "groups", len(groups), "selected", result.Selected)

	if e.dryRun {
		for _, group := range groups {
			for _, c := range group.Items {
				logger.Info("would migrate", "channel", group.ChannelID, "vid", c.Item.VideoID, "title", c.Item.Title)
			}
		}
		return result, nil
	}

	for _, group := range groups {
		for _, c := range group.Items {
			if err := e.processItem(ctx, state, c, result, logger); err != nil {
				return result, err
			}
		}
	}

	e.renewSession(ctx, cookiePath, logger)

	logger.Info("run complete", "published", result.Published, "skipped", result.Skipped)
	return result, nil
}

// selectWork lists every configured channel and applies the selection
// policy. A channel whose feed cannot be fetched is logged and excluded
// from this run; the next run retries it.
func (e *Engine) selectWork(ctx context.Context, state *models.LedgerState, logger *log.Logger) ([]Group, error) {
	var candidates []models.Candidate
	failed := 0

	for _, src := range state.Sources {
		items, err := e.catalog.ListItems(ctx, src.ChannelID)
		if err != nil {
			logger.Error("channel feed unavailable, excluding from this run", "channel", src.ChannelID, "err", err)
			failed++
			continue
		}
		for _, item := range items {
			candidates = append(candidates, models.Candidate{Item: item, Config: src})
		}
	}

	if failed > 0 && failed == len(state.Sources) {
		return nil, fmt.Errorf("%w: all %d channel feeds failed", shared.ErrCatalogFetch, failed)
	}

	return SelectPending(candidates, state.Index, e.cfg.Pipeline.QuotaPerSource), nil
}

// processItem migrates one selected video: acquire, publish, checkpoint,
// notify. Expected non-migration outcomes increment the skip counter and
// return nil; anything else aborts the run.
func (e *Engine) processItem(ctx context.Context, state *models.LedgerState, c models.Candidate, result *RunResult, logger *log.Logger) error {
	item := c.Item
	itemLog := logger.With("vid", item.VideoID, "title", item.Title)

	media, err := e.acquirer.Acquire(ctx, item)
	if err != nil {
		var skip *services.SkipError
		if errors.As(err, &skip) {
			itemLog.Info("skipping item", "reason", skip.Reason)
			result.Skipped++
			return nil
		}
		return fmt.Errorf("acquisition failed for %s: %w", item.VideoID, err)
	}

	scratch := []string{media.Path}
	defer func() { e.removeScratch(scratch, itemLog) }()

	coverPath := ""
	if item.CoverURL != "" {
		coverPath = filepath.Join(e.cfg.Pipeline.Workspace, item.VideoID+".jpg")
		if err := e.acquirer.FetchCover(ctx, item.CoverURL, coverPath); err != nil {
			return fmt.Errorf("cover fetch failed for %s: %w", item.VideoID, err)
		}
		scratch = append(scratch, coverPath)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("run cancelled: %w", err)
	}

	upload, err := e.publisher.Publish(ctx, media, coverPath, item, c.Config)
	if err != nil {
		if notifyErr := e.notifier.NotifyFailure(ctx, item, err.Error()); notifyErr != nil {
			itemLog.Warn("failure notification not delivered", "err", notifyErr)
		}
		return fmt.Errorf("publish failed for %s: %w", item.VideoID, err)
	}

	state.Index.Add(models.MigrationRecord{
		VideoID: item.VideoID,
		Title:   item.Title,
		Origin:  item.Origin,
		Result:  upload,
	})
	if err := e.ledger.Store(ctx, e.cfg.Ledger.IndexDocument, state.Index); err != nil {
		itemLog.Error("published but checkpoint failed; this item may repeat next run", "err", err)
		return fmt.Errorf("checkpoint failed for %s: %w", item.VideoID, err)
	}
	result.Published++
	itemLog.Info("item migrated", "bvid", upload.Data.Bvid)

	if err := e.notifier.NotifySuccess(ctx, item, upload); err != nil {
		itemLog.Warn("success notification not delivered", "err", err)
	}

	return nil
}

// renewSession rotates the uploader's credentials and writes them back to
// the ledger. Failures here never fail the run: the published work is
// already checkpointed and stale credentials simply surface on the next
// run's uploads.
func (e *Engine) renewSession(ctx context.Context, cookiePath string, logger *log.Logger) {
	if err := e.publisher.Renew(ctx); err != nil {
		logger.Error("session renewal failed, keeping previous credentials", "err", err)
		return
	}

	renewed, err := os.ReadFile(cookiePath)
	if err != nil {
		logger.Error("renewed credentials unreadable, ledger copy not updated", "err", err)
		return
	}
	if !json.Valid(renewed) {
		logger.Error("renewed credentials are not valid JSON, ledger copy not updated")
		return
	}

	if err := e.ledger.Store(ctx, e.cfg.Ledger.CookieDocument, json.RawMessage(renewed)); err != nil {
		logger.Error("failed to store renewed credentials", "err", err)
		return
	}

	if err := os.Remove(cookiePath); err != nil {
		logger.Warn("failed to remove local credentials file", "path", cookiePath, "err", err)
	}
}

func (e *Engine) removeScratch(paths []string, logger *log.Logger) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove scratch file", "path", path, "err", err)
		}
	}
}
