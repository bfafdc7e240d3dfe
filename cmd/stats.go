// cmd/stats.go
package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aceteam-ai/seqcipher/internal/redis"
	"github.com/aceteam-ai/seqcipher/internal/tui"
	"github.com/aceteam-ai/seqcipher/internal/tui/whimsy"
	"github.com/aceteam-ai/seqcipher/internal/usage"
)

var (
	statsRecent int
	statsSync   bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the completion ledger",
	Long: `Prints how many messages have been enciphered, how many failed, and their
latency, from the local completion ledger. With --sync, also mirrors any
completions not yet sent to Redis.`,
	Example: `  seqcipher stats
  seqcipher stats --recent 20
  seqcipher stats --sync --redis-url redis://localhost:6379`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	path := ledgerPath()
	if path == "" {
		return fmt.Errorf("the completion ledger is disabled (--no-ledger)")
	}

	store, err := usage.OpenStore(path)
	if err != nil {
		return fmt.Errorf("failed to open completion ledger: %w", err)
	}
	defer store.Close()

	if statsSync {
		if err := syncLedger(cmd, store); err != nil {
			return err
		}
	}

	summary, err := store.Summarize()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printSummary(out, path, summary)

	if statsRecent > 0 {
		records, err := store.Recent(statsRecent)
		if err != nil {
			return err
		}
		printRecent(out, records)
	}
	return nil
}

// syncLedger flushes unsynced records to Redis once.
func syncLedger(cmd *cobra.Command, store *usage.Store) error {
	if redisURL == "" {
		return fmt.Errorf("--sync needs --redis-url (or redis_url in the config file)")
	}

	ctx := cmd.Context()
	client := redis.NewClient(redis.ClientConfig{Channel: redisChannel})
	if err := client.Connect(ctx, redisURL, redisPassword); err != nil {
		return err
	}
	defer client.Close()

	before, err := store.Summarize()
	if err != nil {
		return err
	}

	syncer := usage.NewSyncer(usage.SyncerConfig{
		Store:     store,
		PublishFn: client.PublishCompletions,
		LogFn:     consoleLog,
	})
	return whimsy.WithSpinnerResult(whimsy.SyncingMessages, func() (string, error) {
		if err := syncer.Flush(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("Mirrored %d completion(s) to %s", before.Unsynced, client.Channel()), nil
	})
}

func printSummary(out io.Writer, path string, s usage.Summary) {
	fmt.Fprintln(out, tui.TitleStyle.Render("Completion ledger"))
	fmt.Fprintln(out, tui.FormatKeyValue("Path", path))
	fmt.Fprintln(out, tui.FormatKeyValue("Completed", fmt.Sprintf("%d", s.Total)))

	failed := fmt.Sprintf("%d", s.Failed)
	if s.Failed > 0 {
		failed = color.RedString(failed)
	}
	fmt.Fprintln(out, tui.FormatKeyValue("Failed", failed))

	if s.Total > 0 {
		fmt.Fprintln(out, tui.FormatKeyValue("Mean latency", fmt.Sprintf("%.0fms", s.AvgElapsedMs)))
		fmt.Fprintln(out, tui.FormatKeyValue("Max latency", fmt.Sprintf("%dms", s.MaxElapsedMs)))
	}
	if s.Unsynced > 0 {
		fmt.Fprintln(out, tui.FormatKeyValue("Not mirrored", color.YellowString("%d", s.Unsynced)))
	}
}

func printRecent(out io.Writer, records []usage.CompletionRecord) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, tui.SubtitleStyle.Render("Recent"))
	if len(records) == 0 {
		fmt.Fprintln(out, tui.MutedStyle.Render("  (none)"))
		return
	}
	for _, r := range records {
		mark := color.GreenString("✓")
		if r.Status == usage.StatusFailed {
			mark = color.RedString("✗")
		}
		fmt.Fprintf(out, "  %s %s  %s  %6dms", mark, r.ItemKey[:min(8, len(r.ItemKey))],
			r.SubmittedAt.Local().Format(time.DateTime), r.ElapsedMs)
		if r.ErrorMessage != "" {
			fmt.Fprintf(out, "  %s", tui.Truncate(r.ErrorMessage, 50))
		}
		fmt.Fprintln(out)
	}
}

func init() {
	statsCmd.Flags().IntVar(&statsRecent, "recent", 0, "Also list the N most recent completions")
	statsCmd.Flags().BoolVar(&statsSync, "sync", false, "Mirror unsynced completions to Redis before summarizing")
	rootCmd.AddCommand(statsCmd)
}
