package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vango-dev/flight/internal/config"
	ferrors "github.com/vango-dev/flight/internal/errors"
	"github.com/vango-dev/flight/pkg/component"
	"github.com/vango-dev/flight/pkg/manifest"
	"github.com/vango-dev/flight/pkg/protocol"
	"github.com/vango-dev/flight/pkg/rehydrate"
	"github.com/vango-dev/flight/pkg/routepath"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	colors := os.Getenv("NO_COLOR") == "" &&
		(isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr, colors))
}

// execute runs the CLI and prints a failure in the --error-format style.
// It returns the process exit code.
func execute(args []string, stdout, stderr io.Writer, colors bool) int {
	if colors {
		ferrors.EnableColors()
	} else {
		ferrors.DisableColors()
	}

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.Execute()
	if err == nil {
		return 0
	}

	style := ferrors.StyleFull
	if f := cmd.PersistentFlags().Lookup("error-format"); f != nil {
		if s, perr := ferrors.ParseStyle(f.Value.String()); perr == nil {
			style = s
		}
	}
	ferrors.PrintError(stderr, err, style)
	return 1
}

// globalFlags are shared by every command.
type globalFlags struct {
	configPath  string
	manifest    string
	logLevel    string
	errorFormat string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "flight",
		Short: "Nested route matching and streamed segment rendering",
		Long: `Flight serves a nested route manifest as streamed segments.

Each navigation is matched against the manifest, and only the segments
the client does not already hold are rendered and streamed, together
with the data the client needs to rehydrate them.

Commands:
  serve     Serve the manifest over HTTP and websocket
  routes    List the manifest and its ranked branches
  match     Match a pathname and show the segment keys
  resolve   Resolve a relative link against a location
  link      Build the URL of a route from params
  fetch     Fetch a segment stream from a running server
  errors    Explain an error code`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ferrors.ParseStyle(flags.errorFormat); err != nil {
				return usageError(cmd, err)
			}
			return nil
		},
	}
	rootCmd.SetFlagErrorFunc(usageError)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to flight.json (default: nearest flight.json, else environment)")
	pf.StringVarP(&flags.manifest, "manifest", "m", "", "Route manifest path (overrides routes.manifest)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
	pf.StringVar(&flags.errorFormat, "error-format", "full", "How failures are printed: full, compact or json")

	rootCmd.AddCommand(
		serveCmd(flags),
		routesCmd(flags),
		matchCmd(flags),
		resolveCmd(flags),
		linkCmd(flags),
		fetchCmd(),
		errorsCmd(),
		versionCmd(),
	)
	return rootCmd
}

// usageError marks err as a command-line mistake (E500).
func usageError(cmd *cobra.Command, err error) error {
	return ferrors.New("E500").
		WithDetail(err.Error()).
		WithSuggestion(fmt.Sprintf("Run '%s --help' for usage.", cmd.CommandPath()))
}

// exactArgs is cobra.ExactArgs reporting E500.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError(cmd, err)
		}
		return nil
	}
}

// rangeArgs is cobra.RangeArgs reporting E500.
func rangeArgs(min, max int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.RangeArgs(min, max)(cmd, args); err != nil {
			return usageError(cmd, err)
		}
		return nil
	}
}

// loadConfig reads --config, or the nearest flight.json, or falls back to
// defaults plus FLIGHT_ environment variables.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case flags.configPath != "":
		cfg, err = config.LoadFile(flags.configPath)
	default:
		root, findErr := config.FindProjectRoot(".")
		if findErr != nil {
			cfg, err = config.FromEnv()
		} else {
			cfg, err = config.Load(root)
		}
	}
	if err != nil {
		return nil, err
	}
	if flags.manifest != "" {
		cfg.Routes.Manifest = flags.manifest
		cfg.Routes.Bucket = ""
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the default slog handler and hands it to the
// packages that keep their own logger.
func setupLogging(w io.Writer, lc config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(lc.Level)}
	var h slog.Handler
	if lc.JSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)

	protocol.SetLogger(logger)
	rehydrate.SetLogger(logger)
	component.SetLogger(logger)
	manifest.SetLogger(logger)
	routepath.SetLogger(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
