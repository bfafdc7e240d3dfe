// Package feed is the interactive view of the pipeline: a live list of pushed
// messages that turn from pending to enciphered as the worker finishes them.
//
// The bubbletea event loop is the only goroutine that touches the board.
// Pending rows are inserted from the key handler, and completed rows arrive as
// CompletedMsg values posted by the sink.
package feed

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/aceteam-ai/seqcipher/internal/board"
	"github.com/aceteam-ai/seqcipher/internal/message"
	"github.com/aceteam-ai/seqcipher/internal/status"
	"github.com/aceteam-ai/seqcipher/internal/tui"
)

// Submitter enqueues payloads for the worker.
// *worker.Pipeline[message.Message] satisfies it.
type Submitter interface {
	Submit(payload message.Message, onPending func(message.Timed[message.Message])) (message.Timed[message.Message], error)
	Pending() int
}

// Config holds configuration for the feed model.
type Config struct {
	Submitter Submitter
	Generator *message.Generator

	// AutoRate is the push rate while auto mode is on (default: 2/s)
	AutoRate rate.Limit

	// SystemFn samples host metrics for the footer (optional)
	SystemFn func() status.SystemMetrics

	// SystemInterval is how often SystemFn is called (default: 2s)
	SystemInterval time.Duration

	// LogFn receives log lines (optional)
	LogFn func(level, msg string)

	Version string
}

type bannerLevel int

const (
	bannerInfo bannerLevel = iota
	bannerWarning
	bannerError
)

// NoticeMsg shows a line in the banner. Level is "info", "warning" or "error".
type NoticeMsg struct {
	Level string
	Text  string
}

type autoTickMsg struct{ gen int }

type systemMsg status.SystemMetrics

// Model is the bubbletea model for the feed.
type Model struct {
	cfg     Config
	board   *board.Board[message.Message]
	keys    keyMap
	help    help.Model
	spinner spinner.Model
	limiter *rate.Limiter

	width  int
	height int

	banner      string
	bannerLevel bannerLevel

	auto    bool
	autoGen int
	failed  int
	dropped int

	system     status.SystemMetrics
	haveSystem bool
}

// New creates the feed model.
func New(cfg Config) Model {
	if cfg.Generator == nil {
		cfg.Generator = message.NewGenerator()
	}
	if cfg.AutoRate == 0 {
		cfg.AutoRate = 2
	}
	if cfg.SystemInterval == 0 {
		cfg.SystemInterval = 2 * time.Second
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = tui.SpinnerStyle

	return Model{
		cfg:     cfg,
		board:   board.New[message.Message](),
		keys:    defaultKeys(),
		help:    help.New(),
		spinner: s,
		limiter: rate.NewLimiter(cfg.AutoRate, 1),
	}
}

// Board returns the rows shown by the feed.
func (m Model) Board() *board.Board[message.Message] {
	return m.board
}

// Auto reports whether auto push is on.
func (m Model) Auto() bool {
	return m.auto
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.systemCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Push):
			m.push()
			return m, nil

		case key.Matches(msg, m.keys.Auto):
			m.auto = !m.auto
			m.autoGen++
			if m.auto {
				m.setBanner(bannerInfo, fmt.Sprintf("Auto push on (%.1f/s)", float64(m.cfg.AutoRate)))
				return m, m.autoCmd()
			}
			m.setBanner(bannerInfo, "Auto push off")
			return m, nil
		}

	case CompletedMsg:
		m.complete(msg.Result)
		return m, nil

	case NoticeMsg:
		level := bannerInfo
		switch msg.Level {
		case "error":
			level = bannerError
		case "warning":
			level = bannerWarning
		}
		m.setBanner(level, msg.Text)
		return m, nil

	case autoTickMsg:
		if !m.auto || msg.gen != m.autoGen {
			return m, nil
		}
		m.push()
		return m, m.autoCmd()

	case systemMsg:
		m.system = status.SystemMetrics(msg)
		m.haveSystem = true
		return m, m.systemCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// push generates a message and submits it. The pending row is inserted from
// inside Submit, before the worker can see the item.
func (m *Model) push() {
	payload := m.cfg.Generator.Generate()

	var insertErr error
	_, err := m.cfg.Submitter.Submit(payload, func(pending message.Timed[message.Message]) {
		_, insertErr = m.board.InsertPending(pending)
	})
	switch {
	case err != nil:
		m.log("warning", fmt.Sprintf("Push rejected: %v", err))
		m.setBanner(bannerError, fmt.Sprintf("Push rejected: %v", err))
	case insertErr != nil:
		m.log("error", fmt.Sprintf("Pending row not inserted: %v", insertErr))
		m.setBanner(bannerError, insertErr.Error())
	}
}

// complete swaps a pending row for its result.
func (m *Model) complete(result message.Timed[message.Message]) {
	idx, err := m.board.ApplyUpdate(result)
	if err != nil {
		// Nothing to update. The result is reported and dropped.
		m.dropped++
		m.log("error", fmt.Sprintf("Dropped result: %v", err))
		m.setBanner(bannerError, fmt.Sprintf("Result for unknown item %s", shortKey(result.Key())))
		return
	}

	if result.Failed() {
		m.failed++
		m.log("warning", fmt.Sprintf("Item %s failed: %v", result.Key(), result.Err))
		m.setBanner(bannerWarning, fmt.Sprintf("#%d failed: %v", idx+1, result.Err))
	}
}

func (m *Model) setBanner(level bannerLevel, text string) {
	m.banner = text
	m.bannerLevel = level
}

func (m Model) log(level, msg string) {
	if m.cfg.LogFn != nil {
		m.cfg.LogFn(level, msg)
	}
}

// autoCmd schedules the next auto push no sooner than the limiter allows.
func (m Model) autoCmd() tea.Cmd {
	gen := m.autoGen
	delay := m.limiter.Reserve().Delay()
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return autoTickMsg{gen: gen}
	})
}

func (m Model) systemCmd() tea.Cmd {
	fn := m.cfg.SystemFn
	if fn == nil {
		return nil
	}
	return tea.Tick(m.cfg.SystemInterval, func(time.Time) tea.Msg {
		return systemMsg(fn())
	})
}

func shortKey(k message.Key) string {
	return k.String()[:8]
}
