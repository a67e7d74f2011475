package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/tracemark/internal/config"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

var flagLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the scan ledger",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&flagLimit, "limit", 10, "number of recent runs to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return outputError("status", err)
	}
	defer a.Close()

	q := a.engine.Query()
	runs, err := q.RecentRuns(flagLimit)
	if err != nil {
		return outputError("status", err)
	}
	counts, err := q.DocumentCounts()
	if err != nil {
		return outputError("status", err)
	}

	status := CLIStatus{Runs: make([]CLIRun, 0, len(runs)), Documents: counts}
	for _, r := range runs {
		status.Runs = append(status.Runs, CLIRun{
			ID:         r.ID,
			Kind:       r.Kind,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			Documents:  r.Documents,
			Markers:    r.Markers,
			Failures:   r.Failures,
		})
	}
	return outputResult(CLIResult{Command: "status", Results: status})
}

var findCmd = &cobra.Command{
	Use:   "find <prefix>",
	Short: "Look up markers by prefix in the ledger",
	Long:  "Lists the ledger rows whose marker starts with prefix. The leading caret is optional. The ledger marker table is filled by the markers command.",
	Args:  cobra.ExactArgs(1),
	RunE:  runFind,
}

func runFind(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return outputError("find", err)
	}
	defer a.Close()

	rows, err := a.engine.Query().Markers(args[0])
	if err != nil {
		return outputError("find", err)
	}
	out := make([]CLIMarker, 0, len(rows))
	for _, r := range rows {
		out = append(out, CLIMarker{Marker: r.Marker, Document: r.Document, Kind: r.Kind})
	}
	total := len(out)
	return outputResult(CLIResult{Command: "find", Results: out, TotalCount: &total})
}

var flagForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long:  "Writes .tracemark/config.yaml (or the --config path) with defaults. Path settings are left as UNKNOWN until edited.",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&flagForce, "force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return outputError("init", fmt.Errorf("getting cwd: %w", err))
	}
	root := findRepoRoot(cwd)
	path := flagConfig
	if path == "" {
		path = filepath.Join(root, config.Dir, "config.yaml")
	}
	if _, err := os.Stat(path); err == nil && !flagForce {
		return outputError("init", fmt.Errorf("config already exists: %s (use --force to overwrite)", path))
	}

	cfg := config.DefaultConfig()
	cfg.DocumentPath = config.Unknown
	cfg.ApplicationPath = config.Unknown
	cfg.UnitTestPath = config.Unknown
	if err := cfg.Save(path); err != nil {
		return outputError("init", err)
	}
	return outputResult(CLIResult{Command: "init", Results: CLIInit{Path: path}})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return outputResult(CLIResult{Command: "version", Results: CLIVersion{Version: version}})
	},
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}
