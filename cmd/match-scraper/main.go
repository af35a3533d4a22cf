// Command match-scraper drives the scheduled scrape pipeline and exposes
// the audit trail for inspection (spec.md §6).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/silverbeer/match-scraper/internal/errs"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(errs.ExitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "match-scraper",
		Short:         "Scrapes youth soccer match schedules and publishes changes to a broker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newScrapeCmd(), newAuditCmd())
	return cmd
}

// signalContext derives a context cancelled on the first SIGINT/SIGTERM,
// following the teacher's double-signal escalation
// (cli/cmd/ariadne/main.go): a second signal forces immediate exit rather
// than waiting on in-flight work.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "signal received; finishing in-flight work and shutting down")
		cancel()
		<-sigCh
		fmt.Fprintln(os.Stderr, "second signal received; forcing exit")
		os.Exit(130)
	}()
	return ctx, cancel
}
