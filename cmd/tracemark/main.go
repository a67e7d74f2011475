package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/tracemark"
	"github.com/jward/tracemark/internal/config"
	"github.com/jward/tracemark/internal/runtime"
	"github.com/jward/tracemark/internal/slogutil"
	"github.com/jward/tracemark/internal/store"
	"github.com/jward/tracemark/internal/vault"
)

var (
	flagConfig   string
	flagFormat   string
	flagVerbose  int
	flagQuiet    bool
	flagNoLedger bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "tracemark",
	Short:         "Requirement marker extraction and cross-referencing",
	Long:          "Tracemark extracts comments carrying requirement markers from source files into a notes vault and links stories, implementations and unit tests by marker.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .tracemark/config.yaml relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "suppress all logging")
	rootCmd.PersistentFlags().BoolVar(&flagNoLedger, "no-ledger", false, "do not open the scan ledger")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(solutionsCmd)
	rootCmd.AddCommand(markersCmd)
	rootCmd.AddCommand(lexCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// app is everything a command needs, opened from the working directory.
type app struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger
	engine *tracemark.Engine

	closers []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}

// loadConfig reads the configuration for the repository containing the
// working directory.
func loadConfig() (string, *config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", nil, fmt.Errorf("getting cwd: %w", err)
	}
	root := findRepoRoot(cwd)
	cfg, err := config.Load(root, flagConfig)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}

// newLogger builds the stderr logger. -v and --quiet override the configured
// level; a configured log file replaces stderr.
func newLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	level := slogutil.LevelFromString(cfg.Log.Level)
	if flagVerbose > 0 || flagQuiet {
		level = slogutil.LevelFromVerbosity(flagVerbose, flagQuiet)
	}
	if cfg.Log.File != "" {
		l, f, err := slogutil.NewFileLogger(cfg.Log.File, level, cfg.Log.Format)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		return l, f, nil
	}
	return slogutil.NewLogger(os.Stderr, level, cfg.Log.Format), nil, nil
}

// openApp loads config, logger, ledger and engine. A non-nil check runs
// against the loaded config before the ledger is created.
func openApp(check func(*config.Config) error) (*app, error) {
	root, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{root: root, cfg: cfg}

	logger, closer, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	a.logger = logger
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	if check != nil {
		if err := check(cfg); err != nil {
			err = fmt.Errorf("%w: %w", tracemark.ErrUnconfigured, err)
			unconfiguredWarning(a, err)
			a.Close()
			return nil, err
		}
	}

	opts := []tracemark.Option{
		tracemark.WithLogger(logger),
		tracemark.WithMarkerCache(1024),
	}

	if cfg.Ledger.Enabled && !flagNoLedger {
		dbPath := resolvePath(root, cfg.Ledger.Path)
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			a.Close()
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
		}
		s, err := store.NewStore(dbPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening ledger: %w", err)
		}
		a.closers = append(a.closers, s)
		if err := s.Migrate(); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrating ledger: %w", err)
		}
		opts = append(opts, tracemark.WithLedger(s))
	}

	if cfg.Transform != "" {
		script := resolvePath(root, cfg.Transform)
		rt := runtime.NewRuntime(filepath.Dir(script), runtime.WithRuntimeLogger(logger))
		t, err := runtime.NewTransformer(rt, filepath.Base(script))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("loading transform: %w", err)
		}
		opts = append(opts, tracemark.WithTransform(t))
	}

	// Source trees are read by absolute path; documents live in the vault.
	cfg.ApplicationPath = resolveSetting(root, cfg.ApplicationPath)
	cfg.UnitTestPath = resolveSetting(root, cfg.UnitTestPath)
	vaultRoot := root
	if cfg.VaultPath != "" {
		vaultRoot = resolvePath(root, cfg.VaultPath)
	}

	e, err := tracemark.New(cfg, vault.NewDisk(vaultRoot), vault.NewDisk(""), opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	a.engine = e
	return a, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolvePath makes p absolute against root.
func resolvePath(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// resolveSetting is resolvePath for path settings that may be unset.
func resolveSetting(root, p string) string {
	if p == "" || p == config.Unknown {
		return p
	}
	return resolvePath(root, p)
}
