package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/aegis/pkg/cli"
	"mercator-hq/aegis/pkg/config"
	"mercator-hq/aegis/pkg/safety"
)

var batchFlags struct {
	parallel     bool
	jsonl        bool
	format       string
	progress     bool
	failOnReview bool
}

var batchCmd = &cobra.Command{
	Use:   "batch FILE|-",
	Short: "Screen many texts from a file",
	Long: `Screen every non-empty line of FILE (or stdin for "-") and print the
scores in input order.

With --jsonl each line is a JSON object {"text": "...", "context": "..."}.
The first failure fails the whole batch; no partial results are printed.

Examples:
  # One text per line, parallel
  aegis batch inputs.txt --parallel

  # JSON lines with context hints, JSON output
  aegis batch requests.jsonl --jsonl --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().BoolVar(&batchFlags.parallel, "parallel", false, "analyze items concurrently (overrides analyzer.enable_parallel)")
	batchCmd.Flags().BoolVar(&batchFlags.jsonl, "jsonl", false, "parse each line as a JSON request")
	batchCmd.Flags().StringVarP(&batchFlags.format, "format", "o", "text", "output format (text, json)")
	batchCmd.Flags().BoolVar(&batchFlags.progress, "progress", false, "report progress on stderr")
	batchCmd.Flags().BoolVar(&batchFlags.failOnReview, "fail-on-review", false, "exit with code 4 when any score requires review")
}

func runBatch(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(batchFlags.format)
	if err != nil {
		return err
	}

	reqs, err := readRequests(cmd.InOrStdin(), args[0], batchFlags.jsonl)
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	var overrides []func(*config.Config)
	if cmd.Flags().Changed("parallel") {
		overrides = append(overrides, func(cfg *config.Config) {
			cfg.Analyzer.EnableParallel = batchFlags.parallel
		})
	}

	a, err := newApp(ctx, overrides...)
	if err != nil {
		return err
	}
	defer a.Close()

	var progress cli.ProgressReporter
	if batchFlags.progress {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr())
	}

	scores, err := runChunked(ctx, a.analyzer, reqs, chunkSize(a.cfg.Analyzer.ThreadCount), progress, a.analyzer.RequiresReview)
	if err != nil {
		return cli.NewCommandError("batch", err)
	}

	if err := newFormatter(format, a.cfg.Analyzer.QualityThreshold).FormatTo(cmd.OutOrStdout(), scores); err != nil {
		return err
	}

	if batchFlags.failOnReview {
		flagged := 0
		for _, s := range scores {
			if a.analyzer.RequiresReview(s) {
				flagged++
			}
		}
		if flagged > 0 {
			return &cli.UnsafeContentError{Count: flagged, Threshold: a.cfg.Analyzer.QualityThreshold}
		}
	}
	return nil
}

// batcher is the part of analyzer.Analyzer used by runChunked.
type batcher interface {
	BatchRequests(ctx context.Context, reqs []safety.Request) ([]*safety.Score, error)
}

// runChunked screens reqs in chunks so progress can be reported between
// them. A nil progress runs everything as one batch. review decides which
// scores count as flagged in the progress line.
func runChunked(ctx context.Context, b batcher, reqs []safety.Request, size int, progress cli.ProgressReporter, review func(*safety.Score) bool) ([]*safety.Score, error) {
	if progress == nil || size <= 0 || size >= len(reqs) {
		return b.BatchRequests(ctx, reqs)
	}

	progress.Start(len(reqs))
	out := make([]*safety.Score, 0, len(reqs))
	for start := 0; start < len(reqs); start += size {
		end := min(start+size, len(reqs))
		began := time.Now()
		scores, err := b.BatchRequests(ctx, reqs[start:end])
		if err != nil {
			progress.Error(err)
			return nil, offsetBatchError(err, start)
		}
		out = append(out, scores...)

		report := cli.ChunkReport{Items: len(scores), Took: time.Since(began)}
		for _, s := range scores {
			if review != nil && review(s) {
				report.Flagged++
			}
		}
		progress.Chunk(report)
	}
	progress.Finish()
	return out, nil
}

// offsetBatchError reports the item range of a failed chunk.
func offsetBatchError(err error, start int) error {
	if start == 0 {
		return err
	}
	return fmt.Errorf("chunk starting at item %d: %w", start, err)
}

func chunkSize(threads int) int {
	if threads <= 0 {
		threads = 1
	}
	return threads * 4
}

// readRequests loads batch input from path, or stdin for "-".
func readRequests(stdin io.Reader, path string, jsonl bool) ([]safety.Request, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open batch input: %w", err)
		}
		defer f.Close()
		r = f
	}
	return parseRequests(r, jsonl)
}

// parseRequests reads one request per non-blank line.
func parseRequests(r io.Reader, jsonl bool) ([]safety.Request, error) {
	var reqs []safety.Request

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		if !jsonl {
			reqs = append(reqs, safety.Request{Text: text})
			continue
		}

		var req safety.Request
		if err := json.Unmarshal([]byte(text), &req); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON request: %w", line, err)
		}
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch input: %w", err)
	}

	return reqs, nil
}
