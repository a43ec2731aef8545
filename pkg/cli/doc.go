/*
Package cli provides command-line helpers for the callmeter command.

Output Formatting:

Commands print results as an aligned table, JSON or CSV:

	formatter := cli.NewFormatter(format)
	table := cli.Table{Columns: []string{"target", "status"}, Data: rows}
	if err := formatter.FormatTo(os.Stdout, table); err != nil {
		return err
	}

Text and CSV output need a Tabular value; JSON encodes any value.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM, and configuration reload on SIGHUP:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

	reload, stopReload := cli.ReloadSignals()
	defer stopReload()

Errors:

ExitCode maps configuration errors to exit status 2 and other failures to 1.
*/
package cli
