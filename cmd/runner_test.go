package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/Jikexiaobai/Y2B/internal/models"
	"github.com/Jikexiaobai/Y2B/internal/services"
	"github.com/Jikexiaobai/Y2B/internal/shared"
	"github.com/urfave/cli/v3"
)

type stubLedger struct {
	state    *models.LedgerState
	fetchErr error
	stores   int
}

func (s *stubLedger) Fetch(ctx context.Context) (*models.LedgerState, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.state, nil
}

func (s *stubLedger) Store(ctx context.Context, document string, payload any) error {
	s.stores++
	return nil
}

type stubCatalog struct {
	items []models.SourceItem
}

func (s *stubCatalog) ListItems(ctx context.Context, channelID string) ([]models.SourceItem, error) {
	return s.items, nil
}

type stubAcquirer struct {
	dir string
}

func (s *stubAcquirer) Acquire(ctx context.Context, item models.SourceItem) (*services.Media, error) {
	path := s.dir + "/" + item.VideoID + ".mp4"
	if err := os.WriteFile(path, []byte("media"), 0644); err != nil {
		return nil, err
	}
	return &services.Media{Path: path, Format: "mp4"}, nil
}

func (s *stubAcquirer) FetchCover(ctx context.Context, url, dest string) error {
	return os.WriteFile(dest, []byte("cover"), 0644)
}

type stubPublisher struct{}

func (stubPublisher) Publish(ctx context.Context, media *services.Media, coverPath string, item models.SourceItem, src models.SourceConfig) (*models.UploadResult, error) {
	return &models.UploadResult{Data: models.UploadData{Aid: 1, Bvid: "BV1"}}, nil
}

func (stubPublisher) Renew(ctx context.Context) error { return nil }

type stubNotifier struct{}

func (stubNotifier) NotifySuccess(context.Context, models.SourceItem, *models.UploadResult) error {
	return nil
}

func (stubNotifier) NotifyFailure(context.Context, models.SourceItem, string) error { return nil }

func testApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name: "y2b",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "token"},
			&cli.StringArg{Name: "gistId"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "logLevel", Value: "info"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}},
			&cli.BoolFlag{Name: "dry-run"},
		},
		Commands: []*cli.Command{initCommand(r)},
		Action:   r.Migrate,
	}
}

func testRunner(t *testing.T, output io.Writer, ledger services.Ledger) *Runner {
	t.Helper()
	cfg := shared.DefaultConfig()
	cfg.Pipeline.Workspace = t.TempDir()
	cfg.Pipeline.PacingSeconds = 0

	return NewRunner(RunnerOpts{
		Config: cfg,
		Logger: shared.NewLogger(io.Discard),
		Output: output,
		Ledger: ledger,
		Catalog: &stubCatalog{items: []models.SourceItem{{
			VideoID:   "abc123",
			Title:     "Test Video",
			Origin:    "https://www.youtube.com/watch?v=abc123",
			ChannelID: "UC001",
		}}},
		Acquirer:  &stubAcquirer{dir: cfg.Pipeline.Workspace},
		Publisher: stubPublisher{},
		Notifier:  stubNotifier{},
	})
}

func healthyLedger() *stubLedger {
	return &stubLedger{state: &models.LedgerState{
		Sources:     []models.SourceConfig{{ChannelID: "UC001", Tid: 17}},
		Credentials: json.RawMessage(`{"SESSDATA":"opaque"}`),
		Index:       models.MigrationIndex{},
	}}
}

func TestNewRunner(t *testing.T) {
	t.Run("with all dependencies provided", func(t *testing.T) {
		config := shared.DefaultConfig()
		logger := shared.NewLogger(nil)
		output := &bytes.Buffer{}

		runner := NewRunner(RunnerOpts{Config: config, Logger: logger, Output: output})
		if runner.config != config {
			t.Error("expected config to be set")
		}
		if runner.logger != logger {
			t.Error("expected logger to be set")
		}
		if runner.output != output {
			t.Error("expected output to be set")
		}
	})

	t.Run("with nil config uses defaults", func(t *testing.T) {
		if runner := NewRunner(RunnerOpts{}); runner.config == nil {
			t.Error("expected default config to be set")
		}
	})

	t.Run("with nil output uses stdout", func(t *testing.T) {
		if runner := NewRunner(RunnerOpts{}); runner.output != os.Stdout {
			t.Error("expected output to default to os.Stdout")
		}
	})
}

func TestMigrate(t *testing.T) {
	t.Run("runs the pipeline and prints a summary", func(t *testing.T) {
		output := &bytes.Buffer{}
		ledger := healthyLedger()
		runner := testRunner(t, output, ledger)

		if err := testApp(runner).Run(context.Background(), []string{"y2b", "token123", "gist456"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !strings.Contains(output.String(), "Published: 1") {
			t.Errorf("expected summary, got %q", output.String())
		}
		if ledger.stores == 0 {
			t.Error("expected the run to checkpoint the ledger")
		}
	})

	t.Run("missing positional arguments", func(t *testing.T) {
		runner := testRunner(t, &bytes.Buffer{}, healthyLedger())

		err := testApp(runner).Run(context.Background(), []string{"y2b", "token123"})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Fatalf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("dry run reports without migrating", func(t *testing.T) {
		output := &bytes.Buffer{}
		ledger := healthyLedger()
		runner := testRunner(t, output, ledger)

		err := testApp(runner).Run(context.Background(), []string{"y2b", "--dry-run", "token123", "gist456"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "1 video(s) would be migrated") {
			t.Errorf("expected dry run report, got %q", output.String())
		}
		if ledger.stores != 0 {
			t.Error("dry run must not write the ledger")
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		runner := testRunner(t, &bytes.Buffer{}, healthyLedger())

		err := testApp(runner).Run(context.Background(), []string{"y2b", "--logLevel", "nope", "token123", "gist456"})
		if err == nil || !strings.Contains(err.Error(), "invalid log level") {
			t.Fatalf("expected log level error, got %v", err)
		}
	})

	t.Run("config flag loads an alternate file", func(t *testing.T) {
		path := t.TempDir() + "/alt.toml"
		if err := os.WriteFile(path, []byte("[pipeline]\nquota_per_source = 1\nworkspace = \""+t.TempDir()+"\"\npacing_seconds = 0\n"), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		runner := testRunner(t, &bytes.Buffer{}, healthyLedger())
		err := testApp(runner).Run(context.Background(), []string{"y2b", "--config", path, "token123", "gist456"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if runner.config.Pipeline.QuotaPerSource != 1 {
			t.Errorf("expected quota from alternate config, got %d", runner.config.Pipeline.QuotaPerSource)
		}
	})

	t.Run("ledger failure surfaces as an error", func(t *testing.T) {
		runner := testRunner(t, &bytes.Buffer{}, &stubLedger{fetchErr: shared.ErrBadToken})

		err := testApp(runner).Run(context.Background(), []string{"y2b", "token123", "gist456"})
		if !errors.Is(err, shared.ErrBadToken) {
			t.Fatalf("expected ErrBadToken, got %v", err)
		}
	})
}

func TestInitCommand(t *testing.T) {
	t.Run("writes the default config", func(t *testing.T) {
		path := t.TempDir() + "/config.toml"
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard), Output: output})

		err := testApp(runner).Run(context.Background(), []string{"y2b", "init", "--config", path})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected config file at %s: %v", path, err)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		path := t.TempDir() + "/config.toml"
		if err := os.WriteFile(path, []byte("existing"), 0644); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard), Output: io.Discard})
		err := testApp(runner).Run(context.Background(), []string{"y2b", "init", "--config", path})
		if err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Fatalf("expected overwrite refusal, got %v", err)
		}
	})
}
