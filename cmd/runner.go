package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Jikexiaobai/Y2B/internal/services"
	"github.com/Jikexiaobai/Y2B/internal/shared"
	"github.com/Jikexiaobai/Y2B/internal/tasks"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer

	// Test seams. When nil the production implementations are built per
	// invocation, since the ledger needs the token and gist id arguments.
	ledger    services.Ledger
	catalog   services.Catalog
	acquirer  services.Acquirer
	publisher services.Publisher
	notifier  services.Notifier
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config    *shared.Config
	Logger    *log.Logger
	Output    io.Writer
	Ledger    services.Ledger
	Catalog   services.Catalog
	Acquirer  services.Acquirer
	Publisher services.Publisher
	Notifier  services.Notifier
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:    opts.Config,
		logger:    opts.Logger,
		output:    opts.Output,
		ledger:    opts.Ledger,
		catalog:   opts.Catalog,
		acquirer:  opts.Acquirer,
		publisher: opts.Publisher,
		notifier:  opts.Notifier,
	}
}

// Migrate runs one full migration pass against the gist named on the
// command line.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	token := cmd.StringArg("token")
	gistID := cmd.StringArg("gistId")
	if token == "" || gistID == "" {
		return fmt.Errorf("%w: usage: y2b <token> <gistId>", shared.ErrMissingArgument)
	}

	if err := r.applyFlags(cmd); err != nil {
		return err
	}

	ledger := r.ledger
	if ledger == nil {
		ledger = services.NewGistLedger(r.config, token, gistID, r.logger)
	}

	engine, err := tasks.NewEngine(r.config, tasks.EngineOpts{
		Ledger:    ledger,
		Catalog:   r.catalog,
		Acquirer:  r.acquirer,
		Publisher: r.publisher,
		Notifier:  r.notifier,
		DryRun:    cmd.Bool("dry-run"),
	}, r.logger)
	if err != nil {
		return err
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("migration run %s aborted: %w", result.RunID, err)
	}

	if cmd.Bool("dry-run") {
		r.writePlain("Dry run: %d video(s) would be migrated\n", result.Selected)
		return nil
	}

	r.writePlain("Run %s complete\n", result.RunID)
	r.writePlain("Selected:  %d\n", result.Selected)
	r.writePlain("Published: %d\n", result.Published)
	r.writePlain("Skipped:   %d\n", result.Skipped)
	return nil
}

// Init writes the annotated default configuration next to the binary.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.writePlain("Wrote %s\n", path)
	return nil
}

// applyFlags folds the command line flags into the runner before a run:
// an alternate config file, the log level and the environment overrides.
func (r *Runner) applyFlags(cmd *cli.Command) error {
	if path := cmd.String("config"); path != "" {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return err
		}
		r.config = config
	}
	r.config.ApplyEnv()

	if level := cmd.String("logLevel"); level != "" {
		parsed, err := log.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		shared.SetLogLevel(r.logger, parsed)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
