package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/permit-scraper/internal/config"
	"github.com/pfrederiksen/permit-scraper/internal/logger"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	// ExitExtractionErrors means every permit was attempted but at least one
	// record carries extraction errors.
	ExitExtractionErrors = 2
)

var (
	flagConfig   string
	flagFormat   string
	flagLogLevel string
	flagVerbose  bool
)

// ExitCodeError ends a command with a specific exit code. It carries no
// message; the command has already reported what happened.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permit-scraper",
		Short: "Extract and score building permits from the Clark County portal",
		Long: `A CLI tool that logs in to the Clark County Accela citizen portal,
extracts permit detail pages into normalized records, scores their
completeness, flags implausible job values and tracks status changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := parseFormat(flagFormat)
			return err
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default "+config.DefaultFile+" if present)")
	cmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose logging and output")

	cmd.AddCommand(
		newScrapeCmd(),
		newExtractCmd(),
		newShowCmd(),
		newListCmd(),
		newExportCmd(),
		newImportCmd(),
		newSealCmd(),
		newDeleteCmd(),
	)
	return cmd
}

// loadConfig reads the configuration and points the default logger at
// stderr with the configured level.
func loadConfig(stderr io.Writer) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	name := cfg.LogLevel
	if flagLogLevel != "" {
		name = flagLogLevel
	}
	if flagVerbose {
		name = string(logger.LevelDebug)
	}
	level, ok := logger.ParseLevel(name)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", name)
	}
	cfg.LogLevel = string(level)
	logger.SetDefault(logger.New(level, stderr))
	return cfg, nil
}

func format() OutputFormat {
	f, _ := parseFormat(flagFormat)
	return f
}

func parseFormat(name string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(name)))
	if f != FormatText && f != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", name)
	}
	return f, nil
}

// Execute runs the CLI and exits with its status code. An interrupt cancels
// the command's context; scrape reports permits it never reached.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, NewRootCmd(), os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cmd *cobra.Command, stderr io.Writer) int {
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	var exit *ExitCodeError
	if errors.As(err, &exit) {
		return exit.Code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitError
}
