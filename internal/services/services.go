package services

import (
	"context"
	"os/exec"

	"github.com/Jikexiaobai/Y2B/internal/models"
)

// Ledger is the remote, versioned document store holding the run's durable
// state.
type Ledger interface {
	// Fetch reads all three ledger documents in one call.
	Fetch(ctx context.Context) (*models.LedgerState, error)

	// Store overwrites one named document with the JSON serialization of
	// payload. Callers must read-merge-write; there is no partial patch.
	Store(ctx context.Context, document string, payload any) error
}

// Catalog lists the current candidate videos for one channel.
type Catalog interface {
	// ListItems performs one feed fetch and returns items in feed order.
	ListItems(ctx context.Context, channelID string) ([]models.SourceItem, error)
}

// Media is a locally acquired video file.
type Media struct {
	Path   string
	Format string
}

// Acquirer resolves a playable media file and cover image for an item.
type Acquirer interface {
	// Acquire attempts the configured container formats in priority order.
	// Expected non-migration outcomes are returned as [*SkipError];
	// unclassified downloader failures as [*FatalAcquireError].
	Acquire(ctx context.Context, item models.SourceItem) (*Media, error)

	// FetchCover downloads the item's cover image to dest. Any failure is
	// fatal for the item.
	FetchCover(ctx context.Context, url, dest string) error
}

// Publisher uploads acquired media to the destination platform.
type Publisher interface {
	// Publish builds the per-item manifest, invokes the uploader and parses
	// its structured result. Failures surface as [*PublishError].
	Publish(ctx context.Context, media *Media, coverPath string, item models.SourceItem, src models.SourceConfig) (*models.UploadResult, error)

	// Renew refreshes the uploader's session credentials on disk.
	Renew(ctx context.Context) error
}

// Notifier delivers best-effort notifications. Errors are for logging only
// and must never abort the pipeline.
type Notifier interface {
	NotifySuccess(ctx context.Context, item models.SourceItem, result *models.UploadResult) error
	NotifyFailure(ctx context.Context, item models.SourceItem, detail string) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	// Run executes binary and returns its combined stdout and stderr.
	Run(ctx context.Context, binary string, args ...string) ([]byte, error)

	// Output executes binary and returns its stdout only. On a non-zero
	// exit the captured stdout is still returned alongside the error.
	Output(ctx context.Context, binary string, args ...string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, args...).CombinedOutput()
}

func (commandExecutor) Output(ctx context.Context, binary string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, args...).Output()
}
