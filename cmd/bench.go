// cmd/bench.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/aceteam-ai/seqcipher/internal/message"
	"github.com/aceteam-ai/seqcipher/internal/tui"
	"github.com/aceteam-ai/seqcipher/internal/tui/whimsy"
	"github.com/aceteam-ai/seqcipher/internal/worker"
)

var (
	benchCount int
	benchRate  float64
	benchQuiet bool
)

// errOutOfOrder is returned when completions do not match submission order.
var errOutOfOrder = errors.New("completions arrived out of submission order")

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Push messages without a UI and report per-message latency",
	Long: `Submits --count generated messages as fast as possible (or at --rate per
second), waits for the worker to encipher all of them, and prints each result
in completion order with its latency measured from submission.

Exits non-zero if any result arrives out of submission order.`,
	Example: `  seqcipher bench --count 20
  seqcipher bench --count 500 --delay 0 --quiet
  seqcipher bench --count 50 --rate 10 --status-port 8089`,
	RunE: runBench,
}

// benchReport summarizes a bench run.
type benchReport struct {
	Submitted  int
	Completed  int
	Failed     int
	OutOfOrder int
	SubmitTime time.Duration
	TotalTime  time.Duration
	Latencies  []time.Duration
}

func (r *benchReport) add(expected message.Key, result message.Timed[message.Message]) {
	r.Completed++
	if result.Key() != expected {
		r.OutOfOrder++
	}
	if result.Failed() {
		r.Failed++
	}
	r.Latencies = append(r.Latencies, result.Elapsed)
}

// percentile returns the p-th percentile (0..100) of the recorded latencies.
func (r *benchReport) percentile(p float64) time.Duration {
	if len(r.Latencies) == 0 {
		return 0
	}
	sorted := slices.Clone(r.Latencies)
	slices.Sort(sorted)
	i := int(p / 100 * float64(len(sorted)-1))
	return sorted[i]
}

func (r *benchReport) mean() time.Duration {
	if len(r.Latencies) == 0 {
		return 0
	}
	var sum time.Duration
	for _, l := range r.Latencies {
		sum += l
	}
	return sum / time.Duration(len(r.Latencies))
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchCount <= 0 {
		return fmt.Errorf("--count must be positive")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx, consoleLog)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Buffered for every result, so delivery never blocks the worker.
	results := make(worker.ChannelSink[message.Message], benchCount)
	pipeline := worker.NewPipeline(rt.transform(), results, rt.workerConfig(consoleLog))

	bgCtx, bgCancel := context.WithCancel(context.WithoutCancel(ctx))
	wait := rt.startBackground(bgCtx, pipeline)
	defer func() {
		bgCancel()
		wait()
	}()

	if err := pipeline.Start(ctx); err != nil {
		return err
	}
	defer pipeline.Stop()

	var limiter *rate.Limiter
	if benchRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(benchRate), 1)
	}

	gen := message.NewGenerator()
	order := make([]message.Key, 0, benchCount)
	report := &benchReport{}
	start := time.Now()

	for range benchCount {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}
		pending, err := pipeline.Submit(gen.Generate(), nil)
		if err != nil {
			break
		}
		order = append(order, pending.Key())
	}
	report.Submitted = len(order)
	report.SubmitTime = time.Since(start)
	Debug("bench: submitted %d message(s) in %v", report.Submitted, report.SubmitTime)

	spinner := whimsy.NewSpinner(whimsy.CipheringMessages)
	spinner.SetProgress(0, len(order))
	spinner.Start()

	received := make([]message.Timed[message.Message], 0, len(order))
	interrupted := false
collect:
	for len(received) < len(order) {
		select {
		case r := <-results:
			report.add(order[len(received)], r)
			received = append(received, r)
			spinner.SetProgress(len(received), len(order))
		case <-ctx.Done():
			interrupted = true
			break collect
		}
	}
	report.TotalTime = time.Since(start)
	spinner.Stop()

	if !benchQuiet {
		for i, r := range received {
			printBenchRow(i, r)
		}
	}
	printBenchSummary(report)

	switch {
	case interrupted:
		color.Yellow("⚠ Interrupted with %d message(s) unfinished", len(order)-len(received))
		return ctx.Err()
	case report.OutOfOrder > 0:
		return errOutOfOrder
	}
	return nil
}

func printBenchRow(i int, r message.Timed[message.Message]) {
	num := fmt.Sprintf("%4d", i+1)
	ms := fmt.Sprintf("%6dms", r.TimestampMillis())
	if r.Failed() {
		fmt.Printf("%s %s %s %s\n", num, color.RedString("✗"), color.RedString(ms), tui.Truncate(r.Err.Error(), 60))
		return
	}
	fmt.Printf("%s %s %s %s\n", num, color.GreenString("✓"), ms, tui.Truncate(r.Item.Payload.Text, 60))
}

func printBenchSummary(r *benchReport) {
	bold := color.New(color.Bold)
	fmt.Println()
	bold.Println("Bench summary")
	fmt.Printf("  Submitted:   %d in %v (%v per push)\n", r.Submitted, r.SubmitTime.Round(time.Microsecond), perItem(r.SubmitTime, r.Submitted))
	fmt.Printf("  Completed:   %d in %v\n", r.Completed, r.TotalTime.Round(time.Millisecond))
	if r.Failed > 0 {
		color.Red("  Failed:      %d", r.Failed)
	}
	if r.OutOfOrder > 0 {
		color.Red("  Out of order: %d", r.OutOfOrder)
	} else if r.Completed > 0 {
		color.Green("  Order:       all %d in submission order", r.Completed)
	}
	if r.Completed > 0 {
		fmt.Printf("  Latency:     min %v  mean %v  p50 %v  p95 %v  max %v\n",
			r.percentile(0).Round(time.Millisecond),
			r.mean().Round(time.Millisecond),
			r.percentile(50).Round(time.Millisecond),
			r.percentile(95).Round(time.Millisecond),
			r.percentile(100).Round(time.Millisecond),
		)
		fmt.Printf("  Throughput:  %.1f msg/s\n", float64(r.Completed)/r.TotalTime.Seconds())
	}
}

func perItem(total time.Duration, n int) time.Duration {
	if n == 0 {
		return 0
	}
	return (total / time.Duration(n)).Round(time.Microsecond)
}

func init() {
	benchCmd.Flags().IntVarP(&benchCount, "count", "n", 20, "Number of messages to push")
	benchCmd.Flags().Float64Var(&benchRate, "rate", 0, "Push at most this many messages per second (0 = no limit)")
	benchCmd.Flags().BoolVarP(&benchQuiet, "quiet", "q", false, "Only print the summary")
	rootCmd.AddCommand(benchCmd)
}
