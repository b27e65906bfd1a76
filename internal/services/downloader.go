// yt-dlp backed [Acquirer] implementation.
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Jikexiaobai/Y2B/internal/models"
	"github.com/Jikexiaobai/Y2B/internal/shared"
	"github.com/charmbracelet/log"
)

// SkipReason identifies an expected non-migration outcome.
type SkipReason string

const (
	SkipNotYetLive SkipReason = "not_yet_live"
	SkipPaywalled  SkipReason = "paywalled"
	SkipNoFormat   SkipReason = "no_compatible_format"
)

// SkipError marks an item as intentionally not migrated this run. It is
// swallowed at the item level: no checkpoint write, no failure, continue
// with the next item.
type SkipError struct {
	Reason SkipReason
}

func (e *SkipError) Error() string {
	return "item skipped: " + string(e.Reason)
}

// FatalAcquireError is an unclassified downloader failure. It aborts the
// run for the current item.
type FatalAcquireError struct {
	Output string
}

func (e *FatalAcquireError) Error() string {
	return "downloader failed: " + tail(e.Output, 512)
}

// downloadClass is the closed set of downloader failure classifications.
type downloadClass int

const (
	classUnknown downloadClass = iota
	classNotYetLive
	classFormatUnavailable
	classPaywalled
)

// classifyDownload maps downloader output to a failure class. Checked in
// priority order: a live-event notice or paywall notice ends the whole
// acquisition attempt, a format notice only ends the current format.
func classifyDownload(output string) downloadClass {
	switch {
	case strings.Contains(output, "This live event will begin in"):
		return classNotYetLive
	case strings.Contains(output, "Requested format is not available"):
		return classFormatUnavailable
	case strings.Contains(output, "This video requires payment to watch"):
		return classPaywalled
	default:
		return classUnknown
	}
}

// DownloaderOption configures a [Downloader].
type DownloaderOption func(*Downloader)

// WithDownloaderExecutor injects a custom executor (primarily for tests).
func WithDownloaderExecutor(exec Executor) DownloaderOption {
	return func(d *Downloader) {
		if exec != nil {
			d.exec = exec
		}
	}
}

// Downloader implements [Acquirer] by shelling out to yt-dlp.
type Downloader struct {
	binary     string
	formats    []string
	workspace  string
	exec       Executor
	httpClient *http.Client
	logger     *log.Logger
}

// NewDownloader constructs a Downloader from configuration. The HTTP client
// is used only for cover images.
func NewDownloader(cfg *shared.Config, client *http.Client, logger *log.Logger, opts ...DownloaderOption) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	d := &Downloader{
		binary:     cfg.Downloader.Binary,
		formats:    cfg.Downloader.Formats,
		workspace:  cfg.Pipeline.Workspace,
		exec:       commandExecutor{},
		httpClient: client,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Acquire tries each configured container format in priority order and
// returns the first that downloads successfully.
func (d *Downloader) Acquire(ctx context.Context, item models.SourceItem) (*Media, error) {
	for _, format := range d.formats {
		dest := filepath.Join(d.workspace, item.VideoID+"."+format)

		output, err := d.exec.Run(ctx, d.binary, item.Origin, "-f", format, "-o", dest)
		if err == nil {
			if size, sizeErr := shared.FileSizeMB(dest); sizeErr == nil {
				d.logger.Info("video downloaded", "vid", item.VideoID, "format", format, "size_mb", size)
			}
			return &Media{Path: dest, Format: format}, nil
		}

		switch classifyDownload(string(output)) {
		case classNotYetLive:
			return nil, &SkipError{Reason: SkipNotYetLive}
		case classFormatUnavailable:
			d.logger.Debug("format not available", "vid", item.VideoID, "format", format)
			continue
		case classPaywalled:
			return nil, &SkipError{Reason: SkipPaywalled}
		default:
			d.logger.Error("unclassified downloader failure", "vid", item.VideoID, "output", tail(string(output), 512))
			return nil, &FatalAcquireError{Output: string(output)}
		}
	}

	return nil, &SkipError{Reason: SkipNoFormat}
}

// FetchCover downloads the item's cover image to dest.
func (d *Downloader) FetchCover(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create cover request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cover fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cover fetch failed: status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create cover file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write cover file: %w", err)
	}
	return nil
}

// tail returns at most the last n bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
