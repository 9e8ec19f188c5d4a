/*
Package cli provides command-line helpers for the chatrelay command.

Output Formatting:

Commands that print results accept --output text|json|csv. Results that
implement Table render as aligned columns or CSV; anything else is printed
with %v or encoded as JSON:

	formatter := cli.NewFormatter(format)
	if err := formatter.FormatTo(cmd.OutOrStdout(), sessionList(list)); err != nil {
		return err
	}

Signals:

SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM, which
the run command hands to the server for graceful shutdown.

Errors:

ConfigError and CommandError distinguish bad configuration from runtime
failures; ExitCode maps them to process exit codes.
*/
package cli
