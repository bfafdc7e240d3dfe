// cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/aceteam-ai/seqcipher/internal/message"
	"github.com/aceteam-ai/seqcipher/internal/tui"
	"github.com/aceteam-ai/seqcipher/internal/tui/feed"
	"github.com/aceteam-ai/seqcipher/internal/worker"
)

var autoRate float64

// tuiActive is set while the feed owns the terminal.
var tuiActive atomic.Bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the interactive feed",
	Long: `Opens a live feed of enciphered messages.

Press p or enter to push a random message; it appears at once as pending and
is replaced in place when the background worker has enciphered it. Press a to
push automatically, q to quit.`,
	RunE: runFeed,
}

func addFeedFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&autoRate, "auto-rate", getEnvFloat("SEQCIPHER_AUTO_RATE", 2), "Messages per second pushed while auto mode is on")
}

// programSender forwards to the program once it exists.
type programSender struct {
	p atomic.Pointer[tea.Program]
}

func (s *programSender) Send(msg tea.Msg) {
	if p := s.p.Load(); p != nil {
		p.Send(msg)
	}
}

func runFeed(cmd *cobra.Command, args []string) error {
	if !tui.ShouldUseInteractive(color.NoColor) {
		return fmt.Errorf("the interactive feed needs a color terminal; try 'seqcipher bench'")
	}
	if autoRate <= 0 {
		return fmt.Errorf("--auto-rate must be positive")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sender := &programSender{}

	// Errors from background goroutines surface in the banner.
	notify := func(level, msg string) {
		debugLog(level, msg)
		if level == "error" || level == "warning" {
			go sender.Send(feed.NoticeMsg{Level: level, Text: msg})
		}
	}

	rt, err := openRuntime(ctx, notify)
	if err != nil {
		return err
	}
	defer rt.Close()

	async := worker.NewAsyncSink(feed.NewSink(sender))
	pipeline := worker.NewPipeline(rt.transform(), async, rt.workerConfig(debugLog))

	model := feed.New(feed.Config{
		Submitter: pipeline,
		Generator: message.NewGenerator(),
		AutoRate:  rate.Limit(autoRate),
		SystemFn:  rt.collector(pipeline).CollectSystem,
		LogFn:     debugLog,
		Version:   Version,
	})

	if debugMode {
		if f, err := tea.LogToFile(filepath.Join(configDir(), "logs", "tui.log"), "seqcipher"); err == nil {
			defer f.Close()
		}
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	sender.p.Store(p)

	if err := pipeline.Start(ctx); err != nil {
		return err
	}
	wait := rt.startBackground(ctx, pipeline)

	tuiActive.Store(true)
	_, runErr := p.Run()
	tuiActive.Store(false)

	// The feed is gone: unblock pending sends, let the worker finish the item
	// in hand, then drain the syncer.
	cancel()
	pipeline.Stop()
	async.Close()
	wait()

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("feed: %w", runErr)
	}

	processed := pipeline.Worker().Processed()
	color.Green("✓ Enciphered %d message(s)", processed)
	if n := pipeline.Pending(); n > 0 {
		color.Yellow("⚠ %d message(s) were still queued and have been discarded", n)
	}
	return nil
}

func init() {
	addFeedFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
