package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/aegis/pkg/cli"
	"mercator-hq/aegis/pkg/safety"
)

var analyzeFlags struct {
	context      string
	timeout      time.Duration
	format       string
	failOnReview bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [TEXT|-]",
	Short: "Screen a single text",
	Long: `Screen a single text and print its safety score.

The text is taken from the argument, or read from stdin when the argument
is "-" or omitted.

Examples:
  # Screen an argument
  aegis analyze "I will hurt someone"

  # Screen stdin with a context hint
  cat note.txt | aegis analyze - --context "medical consultation"

  # JSON output with a tighter deadline
  aegis analyze "hello" --format json --timeout 2s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeFlags.context, "context", "", "context hint (e.g. \"medical consultation\")")
	analyzeCmd.Flags().DurationVar(&analyzeFlags.timeout, "timeout", 0, "analysis timeout (default from config)")
	analyzeCmd.Flags().StringVarP(&analyzeFlags.format, "format", "o", "text", "output format (text, json)")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.failOnReview, "fail-on-review", false, "exit with code 4 when the score requires review")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(analyzeFlags.format)
	if err != nil {
		return err
	}

	text, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := safety.Request{Text: text, Context: analyzeFlags.context}

	var score *safety.Score
	if analyzeFlags.timeout > 0 {
		score, err = a.analyzer.AnalyzeWithTimeout(ctx, req, analyzeFlags.timeout)
	} else {
		score, err = a.analyzer.AnalyzeRequest(ctx, req)
	}
	if err != nil {
		return cli.NewCommandError("analyze", err)
	}

	if err := newFormatter(format, a.cfg.Analyzer.QualityThreshold).FormatTo(cmd.OutOrStdout(), score); err != nil {
		return err
	}

	if analyzeFlags.failOnReview && a.analyzer.RequiresReview(score) {
		return &cli.UnsafeContentError{Count: 1, Threshold: a.cfg.Analyzer.QualityThreshold}
	}
	return nil
}

// readInput returns the text argument, or stdin when it is "-" or absent.
func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// newFormatter returns the formatter for format, marking text output with
// the review threshold.
func newFormatter(format cli.OutputFormat, threshold float64) cli.Formatter {
	if format == cli.FormatJSON {
		return &cli.JSONFormatter{Indent: true}
	}
	return &cli.TextFormatter{Threshold: threshold}
}
