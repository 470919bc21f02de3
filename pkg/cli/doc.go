/*
Package cli provides command-line helpers for the backstop command.

Output Formatting:

Results implement Tabular to render as aligned text or CSV; JSON output
marshals the result itself:

	format, err := cli.ParseOutputFormat(flags.format)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(os.Stdout, listing)

FormatCount, FormatAge and FormatTime render numbers and timestamps for
tables.

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr, "partitions")
	progress.Start(int64(len(partitions)))
	for range partitions {
		progress.Increment()
	}
	progress.Finish()

Signal Handling:

	ctx, cancel := cli.SetupSignalHandler(context.Background())
	defer cancel()

Exit Codes:

ExitCode maps command errors to process exit codes: 2 for configuration
errors, 3 when no restore plan exists, 1 otherwise.
*/
package cli
