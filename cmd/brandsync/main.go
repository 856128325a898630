// Command brandsync reconciles a brand spreadsheet into the CRM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	app, err := NewApp()
	if err != nil {
		exitOnError(err)
	}

	// Cancel in-flight requests on Ctrl+C so the run is recorded as interrupted
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.newRootCommand().ExecuteContext(ctx); err != nil {
		app.logger.Error().Err(err).Msg("brandsync failed")
		cancel()
		exitOnError(err)
	}
}

func exitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
