/*
Package cli provides command-line interface utilities for Aegis.

The cli package includes output formatters, a progress reporter, exit code
mapping, and signal handling used by the aegis command.

Output Formatting:

Scores and batch results can be printed as a human-readable summary or as
JSON:

	formatter, err := cli.NewFormatter(cli.FormatText)
	if err != nil {
		return err
	}
	if err := formatter.FormatTo(os.Stdout, score); err != nil {
		return err
	}

Progress Reporting:

For long batches, report progress on stderr:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(len(texts))
	...
	progress.Chunk(cli.ChunkReport{Items: n, Flagged: flagged, Took: took})
	progress.Finish()

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
