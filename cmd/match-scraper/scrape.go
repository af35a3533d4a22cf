package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/silverbeer/match-scraper/internal/browser"
	"github.com/silverbeer/match-scraper/internal/clock"
	"github.com/silverbeer/match-scraper/internal/config"
	"github.com/silverbeer/match-scraper/internal/idgen"
	"github.com/silverbeer/match-scraper/internal/orchestrator"
	"github.com/silverbeer/match-scraper/internal/queue"
	"github.com/silverbeer/match-scraper/internal/telemetry/logging"
	"github.com/silverbeer/match-scraper/internal/telemetry/metrics"
)

func newScrapeCmd() *cobra.Command {
	var raw config.Raw
	var startOffset, endOffset int
	var startOffsetSet, endOffsetSet bool

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape of the configured league/age/division/date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			if startOffsetSet {
				raw.StartOffset = &startOffset
			}
			if endOffsetSet {
				raw.EndOffset = &endOffset
			}
			return runScrape(raw)
		},
	}

	f := cmd.Flags()
	f.StringVar(&raw.League, "league", "", "League (Homegrown|Academy)")
	f.StringVar(&raw.AgeGroup, "age-group", "", "Age group (U13..U19)")
	f.StringVar(&raw.Division, "division", "", "Division")
	f.StringVar(&raw.Club, "club", "", "Optional club name filter (fuzzy match)")
	f.StringVar(&raw.From, "from", "", "Absolute start date (YYYY-MM-DD)")
	f.StringVar(&raw.To, "to", "", "Absolute end date (YYYY-MM-DD)")
	f.IntVar(&startOffset, "start-offset", 0, "Relative start offset in days from today")
	f.IntVar(&endOffset, "end-offset", 13, "Relative end offset in days from today")
	f.StringVar(&raw.Queue, "queue", "", "Direct queue name (mutually exclusive with --exchange)")
	f.StringVar(&raw.Exchange, "exchange", "", "Fanout exchange name")
	f.BoolVar(&raw.NoSubmitQueue, "no-submit-queue", false, "Run the pipeline without publishing to the broker")
	f.BoolVar(&raw.Headless, "headless", false, "Force headless browser mode")
	f.BoolVar(&raw.NoHeadless, "no-headless", false, "Force headed browser mode (debugging)")
	f.IntVar(&raw.TimeoutMS, "timeout-ms", 0, "Per-action browser timeout in milliseconds")
	f.IntVar(&raw.SlowMS, "slow-mo-ms", 0, "Artificial delay after each browser action, in milliseconds")
	f.BoolVar(&raw.Verbose, "verbose", false, "Enable debug logging and stack traces")
	f.StringVar(&raw.MetricsAddr, "metrics-addr", "", "Address to serve /metrics on (e.g. :9090); empty disables metrics")
	f.BoolVar(&raw.DryRun, "dry-run", false, "Run the full pipeline (including change detection) without publishing to the broker")
	f.StringVar(&raw.AuditDir, "audit-dir", "", "Directory for the JSONL audit trail")
	f.StringVar(&raw.StateFile, "state-file", "", "Path to the change-detection snapshot file")
	f.StringVar(&raw.ConfigFile, "config", "", "Optional YAML defaults file")

	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		startOffsetSet = f.Changed("start-offset")
		endOffsetSet = f.Changed("end-offset")
	}

	return cmd
}

func runScrape(raw config.Raw) error {
	if raw.ConfigFile == "" {
		raw.ConfigFile = os.Getenv("MATCH_SCRAPER_CONFIG")
	}
	fd, err := config.LoadFileDefaults(raw.ConfigFile)
	if err != nil {
		return err
	}
	cfg, err := config.Resolve(raw, fd, time.Now().UTC())
	if err != nil {
		return err
	}

	log := logging.New(cfg.Verbose)
	ctx, cancel := signalContext()
	defer cancel()

	if raw.ConfigFile != "" {
		go func() {
			_ = config.WatchFile(ctx, raw.ConfigFile, log)
		}()
	}

	var rec metrics.Recorder = metrics.Noop{}
	if cfg.MetricsAddr != "" {
		prom := metrics.New()
		rec = prom
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: prom.Handler()}
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(ctx)
		}()
		go func() {
			_ = srv.ListenAndServe()
		}()
	}

	driver, err := browser.New(browser.Options{
		Headless: cfg.Headless,
		Timeout:  cfg.Timeout,
		SlowMo:   cfg.SlowMo,
	}, log)
	if err != nil {
		return err
	}

	ids := idgen.New(clock.Real{})

	// Connecting happens inside the orchestrator (only when
	// cfg.SubmitQueue && !cfg.DryRun), before any browser work but after
	// run_started, not here, so a broker-unreachable failure is still
	// recorded as a run_started + run_completed{success:false} pair rather
	// than aborting before any audit event is written (spec.md §8).
	target := queue.Target{Queue: cfg.Routing.Queue, Exchange: cfg.Routing.Exchange}
	queueConnect := func(ctx context.Context) (*queue.Publisher, error) {
		return queue.Connect(ctx, cfg.BrokerURL, target, 4, queue.DefaultRetryConfig(), ids, log)
	}

	summary := orchestrator.Run(ctx, cfg, orchestrator.Deps{
		BrowserDriver: driver,
		Clock:         clock.Real{},
		IDs:           ids,
		Log:           log,
		Metrics:       rec,
		QueueConnect:  queueConnect,
	})

	fmt.Printf("run %s: discovered=%d updated=%d unchanged=%d submitted=%d failed=%d\n",
		summary.RunID, summary.Discovered, summary.Updated, summary.Unchanged, summary.Submitted, summary.Failed)

	return summary.Err
}
