package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/silverbeer/match-scraper/internal/audit"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the JSONL audit trail written by scrape runs",
	}
	cmd.AddCommand(newAuditViewCmd(), newAuditStatsCmd())
	return cmd
}

func newAuditViewCmd() *cobra.Command {
	var auditDir, date, league, eventType, matchID, runID, format string
	var changesOnly bool

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Print audit events for a given day, optionally filtered",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = time.Now().UTC().Format("2006-01-02")
			}
			events, malformed, err := audit.ReadFile(audit.PathForDay(auditDir, date))
			if err != nil {
				return err
			}
			filtered := audit.Filter{
				League:        league,
				EventType:     audit.EventType(eventType),
				CorrelationID: matchID,
				RunID:         runID,
				ChangesOnly:   changesOnly,
			}.Apply(events)

			if malformed > 0 {
				fmt.Printf("# %d malformed line(s) skipped\n", malformed)
			}
			return printEvents(filtered, format)
		},
	}

	f := cmd.Flags()
	f.StringVar(&auditDir, "audit-dir", "./audit", "Audit trail directory")
	f.StringVar(&date, "date", "", "Day to view (YYYY-MM-DD, UTC); defaults to today")
	f.StringVar(&league, "league", "", "Filter by league")
	f.StringVar(&eventType, "event-type", "", "Filter by event type")
	f.StringVar(&matchID, "match-id", "", "Filter by external_match_id (correlation id)")
	f.StringVar(&runID, "run-id", "", "Filter by run id")
	f.BoolVar(&changesOnly, "changes-only", false, "Only show match_discovered/match_updated events")
	f.StringVar(&format, "format", "text", "Output format: text|json")

	return cmd
}

func newAuditStatsCmd() *cobra.Command {
	var auditDir, date string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize one day's audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = time.Now().UTC().Format("2006-01-02")
			}
			events, malformed, err := audit.ReadFile(audit.PathForDay(auditDir, date))
			if err != nil {
				return err
			}
			stats := audit.Summarize(events, malformed)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}

	f := cmd.Flags()
	f.StringVar(&auditDir, "audit-dir", "./audit", "Audit trail directory")
	f.StringVar(&date, "date", "", "Day to summarize (YYYY-MM-DD, UTC); defaults to today")

	return cmd
}

func printEvents(events []audit.Event, format string) error {
	for _, e := range events {
		if format == "json" {
			b, err := json.Marshal(e)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			continue
		}
		fmt.Printf("%s  %-20s run=%s correlation=%s\n",
			e.Timestamp.Format(time.RFC3339), e.EventType, e.RunID, e.CorrelationID)
	}
	return nil
}
