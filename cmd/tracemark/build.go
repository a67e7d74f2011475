package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/tracemark"
	"github.com/jward/tracemark/internal/config"
	"github.com/jward/tracemark/internal/marker"
)

var flagOnce bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the periodic scanner",
	Long:  "Mirrors the application and unit test trees into comment documents, one step per scan interval, until interrupted. With --once a single cycle runs and the command exits.",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&flagOnce, "once", false, "run one full cycle and exit")
}

func runScan(cmd *cobra.Command, args []string) error {
	start := time.Now()
	a, err := openApp((*config.Config).ValidateScan)
	if err != nil {
		return outputError("scan", err)
	}
	defer a.Close()

	var summary CLIScan
	if flagOnce {
		res, err := a.engine.Scanner().Cycle(cmd.Context())
		if err != nil {
			return outputError("scan", unconfiguredWarning(a, err))
		}
		summary = CLIScan{Cycles: 1}
		addStep(&summary, res)
	} else {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sch := tracemark.NewScheduler(a.engine)
		sch.OnStep = func(res tracemark.StepResult) {
			addStep(&summary, res)
			if res.CycleDone {
				summary.Cycles++
			}
		}
		if err := sch.Start(ctx); err != nil {
			return outputError("scan", unconfiguredWarning(a, err))
		}
		<-ctx.Done()
		sch.Stop()
	}

	fmt.Fprintf(os.Stderr, "Scanned in %s\n", time.Since(start).Round(time.Millisecond))
	return outputResult(CLIResult{Command: "scan", Results: summary})
}

func addStep(s *CLIScan, res tracemark.StepResult) {
	s.Files += res.Files
	s.Written += res.Written
	s.Skipped += res.Skipped
	s.Pruned += res.Pruned
	s.Failures += res.Failures
}

var solutionsCmd = &cobra.Command{
	Use:   "solutions",
	Short: "Rebuild the solution documents",
	Long:  "Clears the solutions folder and writes one document per solution path linking stories, implementation comments and unit test comments.",
	Args:  cobra.NoArgs,
	RunE:  runSolutions,
}

func runSolutions(cmd *cobra.Command, args []string) error {
	start := time.Now()
	a, err := openApp((*config.Config).ValidateDocs)
	if err != nil {
		return outputError("solutions", err)
	}
	defer a.Close()

	report, err := a.engine.BuildSolutions(cmd.Context())
	if err != nil {
		return outputError("solutions", unconfiguredWarning(a, err))
	}
	fmt.Fprintf(os.Stderr, "Built %d solutions in %s\n", len(report.Documents), time.Since(start).Round(time.Millisecond))
	return outputResult(CLIResult{
		Command: "solutions",
		Results: CLISolutions{Documents: nonNil(report.Documents), Markers: report.Markers, Failures: report.Failures},
	})
}

var markersCmd = &cobra.Command{
	Use:   "markers",
	Short: "Rebuild the marker table",
	Args:  cobra.NoArgs,
	RunE:  runMarkers,
}

func runMarkers(cmd *cobra.Command, args []string) error {
	a, err := openApp((*config.Config).ValidateDocs)
	if err != nil {
		return outputError("markers", err)
	}
	defer a.Close()

	report, err := a.engine.BuildMarkerTable(cmd.Context())
	if err != nil {
		return outputError("markers", unconfiguredWarning(a, err))
	}
	return outputResult(CLIResult{
		Command: "markers",
		Results: CLIMarkerTable{
			Path:         report.Path,
			CommentRows:  report.CommentRows,
			TestRows:     report.TestRows,
			Failures:     report.Failures,
			LedgerSynced: report.LedgerSynced,
		},
	})
}

var lexCmd = &cobra.Command{
	Use:   "lex <file>",
	Short: "Print the comments extracted from one file",
	Args:  cobra.ExactArgs(1),
	RunE:  runLex,
}

func runLex(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return outputError("lex", err)
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		return outputError("lex", fmt.Errorf("reading %s: %w", args[0], err))
	}

	out, lexErr := tracemark.NewLexer(cfg.Lexer).Lex(cmd.Context(), args[0], src)
	if lexErr != nil && out == "" {
		return outputError("lex", lexErr)
	}
	if lexErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", lexErr)
	}
	return outputResult(CLIResult{
		Command: "lex",
		Results: CLILex{File: args[0], Comments: out, Markers: nonNil(marker.Extract(out)), Partial: lexErr != nil},
	})
}

// unconfiguredWarning logs a warning for configuration errors and passes err
// through.
func unconfiguredWarning(a *app, err error) error {
	if errors.Is(err, tracemark.ErrUnconfigured) {
		a.logger.Warn("tracemark is not configured; run 'tracemark init' and edit the config", "error", err)
	}
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
