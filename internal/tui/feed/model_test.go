package feed

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aceteam-ai/seqcipher/internal/message"
	"github.com/aceteam-ai/seqcipher/internal/status"
	"github.com/aceteam-ai/seqcipher/internal/worker"
)

// fakeSubmitter records submissions without running a worker.
type fakeSubmitter struct {
	mu        sync.Mutex
	submitted []message.Timed[message.Message]
	err       error
}

func (f *fakeSubmitter) Submit(payload message.Message, onPending func(message.Timed[message.Message])) (message.Timed[message.Message], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return message.Timed[message.Message]{}, f.err
	}
	pending := message.Pending(message.NewItem(payload), time.Now())
	if onPending != nil {
		onPending(pending)
	}
	f.submitted = append(f.submitted, pending)
	return pending, nil
}

func (f *fakeSubmitter) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

// logRecorder collects log lines.
type logRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (l *logRecorder) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+": "+msg)
}

func (l *logRecorder) has(level string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.HasPrefix(line, level+": ") {
			return true
		}
	}
	return false
}

func newTestModel(sub *fakeSubmitter, logs *logRecorder) Model {
	return New(Config{
		Submitter: sub,
		Generator: message.NewSeededGenerator(7),
		AutoRate:  1000,
		LogFn:     logs.log,
		Version:   "test",
	})
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return nm, cmd
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func completed(pending message.Timed[message.Message], text string, elapsed time.Duration) message.Timed[message.Message] {
	return message.Timed[message.Message]{
		Item:        pending.Item.WithPayload(message.Message{Text: text}),
		SubmittedAt: pending.SubmittedAt,
		Elapsed:     elapsed,
		Completed:   true,
	}
}

func TestPushInsertsPendingRow(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
	}{
		{"p key", keyRune('p')},
		{"enter key", tea.KeyMsg{Type: tea.KeyEnter}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{}
			m := newTestModel(sub, &logRecorder{})

			m, _ = update(t, m, tt.key)

			if m.Board().Len() != 1 {
				t.Fatalf("board has %d rows, want 1", m.Board().Len())
			}
			row := m.Board().Rows()[0]
			if row.Completed {
				t.Error("new row should be pending")
			}
			if row.Key() != sub.submitted[0].Key() {
				t.Error("row key does not match the submitted item")
			}
			if row.Item.Payload.Text == "" {
				t.Error("generated message is empty")
			}
		})
	}
}

func TestCompletedUpdatesRowInPlace(t *testing.T) {
	sub := &fakeSubmitter{}
	m := newTestModel(sub, &logRecorder{})

	for range 3 {
		m, _ = update(t, m, keyRune('p'))
	}

	m, _ = update(t, m, CompletedMsg{Result: completed(sub.submitted[1], "ciphertext", 540*time.Millisecond)})

	rows := m.Board().Rows()
	if len(rows) != 3 {
		t.Fatalf("board has %d rows, want 3", len(rows))
	}
	if rows[0].Completed || rows[2].Completed {
		t.Error("only the middle row should be completed")
	}
	if !rows[1].Completed {
		t.Fatal("middle row should be completed")
	}
	if rows[1].Item.Payload.Text != "ciphertext" {
		t.Errorf("row text = %q, want ciphertext", rows[1].Item.Payload.Text)
	}
	if rows[1].TimestampMillis() != 540 {
		t.Errorf("TimestampMillis() = %d, want 540", rows[1].TimestampMillis())
	}
	if m.Board().CompletedCount() != 1 {
		t.Errorf("CompletedCount() = %d, want 1", m.Board().CompletedCount())
	}
}

func TestCompletedUnknownKeyIsReported(t *testing.T) {
	sub := &fakeSubmitter{}
	logs := &logRecorder{}
	m := newTestModel(sub, logs)
	m, _ = update(t, m, keyRune('p'))

	stray := message.Pending(message.NewItem(message.Message{Text: "stray"}), time.Now())
	m, _ = update(t, m, CompletedMsg{Result: completed(stray, "x", time.Millisecond)})

	if m.Board().Len() != 1 {
		t.Errorf("board has %d rows, want 1", m.Board().Len())
	}
	if m.Board().CompletedCount() != 0 {
		t.Error("existing row should stay pending")
	}
	if !strings.Contains(m.banner, "unknown item") {
		t.Errorf("banner = %q, want unknown item notice", m.banner)
	}
	if m.bannerLevel != bannerError {
		t.Errorf("bannerLevel = %v, want error", m.bannerLevel)
	}
	if !logs.has("error") {
		t.Error("expected an error log line")
	}
	if !strings.Contains(m.View(), "1 dropped") {
		t.Error("footer should count the dropped result")
	}
}

func TestCompletedFailureShowsError(t *testing.T) {
	sub := &fakeSubmitter{}
	m := newTestModel(sub, &logRecorder{})
	m, _ = update(t, m, keyRune('p'))

	result := completed(sub.submitted[0], "", 10*time.Millisecond)
	result.Item = sub.submitted[0].Item
	result.Err = errors.New("transform failed: boom")
	m, _ = update(t, m, CompletedMsg{Result: result})

	row := m.Board().Rows()[0]
	if !row.Failed() {
		t.Fatal("row should be failed")
	}
	if m.bannerLevel != bannerWarning {
		t.Errorf("bannerLevel = %v, want warning", m.bannerLevel)
	}
	if !strings.Contains(m.View(), "boom") {
		t.Error("view should show the failure")
	}
}

func TestPushRejected(t *testing.T) {
	sub := &fakeSubmitter{err: worker.ErrStopped}
	m := newTestModel(sub, &logRecorder{})

	m, _ = update(t, m, keyRune('p'))

	if m.Board().Len() != 0 {
		t.Errorf("board has %d rows, want 0", m.Board().Len())
	}
	if !strings.Contains(m.banner, "Push rejected") {
		t.Errorf("banner = %q, want rejection notice", m.banner)
	}
}

func TestAutoToggle(t *testing.T) {
	sub := &fakeSubmitter{}
	m := newTestModel(sub, &logRecorder{})

	m, cmd := update(t, m, keyRune('a'))
	if !m.Auto() {
		t.Fatal("auto should be on")
	}
	if cmd == nil {
		t.Fatal("turning auto on should schedule a tick")
	}

	// A tick from the current generation pushes and schedules the next one.
	m, cmd = update(t, m, autoTickMsg{gen: m.autoGen})
	if m.Board().Len() != 1 {
		t.Errorf("board has %d rows, want 1", m.Board().Len())
	}
	if cmd == nil {
		t.Error("auto tick should schedule the next tick")
	}

	staleGen := m.autoGen
	m, _ = update(t, m, keyRune('a'))
	if m.Auto() {
		t.Fatal("auto should be off")
	}
	m, _ = update(t, m, keyRune('a'))

	// The tick scheduled before the toggle must not start a second chain.
	m, cmd = update(t, m, autoTickMsg{gen: staleGen})
	if m.Board().Len() != 1 {
		t.Errorf("stale tick pushed: board has %d rows, want 1", m.Board().Len())
	}
	if cmd != nil {
		t.Error("stale tick should not schedule another")
	}
}

func TestQuit(t *testing.T) {
	for _, k := range []tea.KeyMsg{keyRune('q'), {Type: tea.KeyCtrlC}} {
		t.Run(k.String(), func(t *testing.T) {
			m := newTestModel(&fakeSubmitter{}, &logRecorder{})

			_, cmd := update(t, m, k)
			if cmd == nil {
				t.Fatal("quit should return a command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("quit command should produce tea.QuitMsg")
			}
		})
	}
}

func TestViewWelcomeUntilFirstPush(t *testing.T) {
	m := newTestModel(&fakeSubmitter{}, &logRecorder{})

	view := m.View()
	for _, rule := range welcomeRules {
		if !strings.Contains(view, rule) {
			t.Errorf("welcome panel missing rule %q", rule)
		}
	}

	m, _ = update(t, m, keyRune('p'))
	if strings.Contains(m.View(), welcomeRules[0]) {
		t.Error("welcome panel should be gone after the first push")
	}
}

func TestViewShowsLatestRowsOnly(t *testing.T) {
	sub := &fakeSubmitter{}
	m := newTestModel(sub, &logRecorder{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 10})

	for range 12 {
		m, _ = update(t, m, keyRune('p'))
	}

	view := m.View()
	if strings.Contains(view, "   1 ") {
		t.Error("oldest row should be scrolled out")
	}
	if !strings.Contains(view, "  12 ") {
		t.Error("newest row should be visible")
	}
}

func TestSystemMsgUpdatesFooter(t *testing.T) {
	m := New(Config{
		Submitter:      &fakeSubmitter{},
		SystemFn:       func() status.SystemMetrics { return status.SystemMetrics{CPUPercent: 50} },
		SystemInterval: time.Hour,
	})

	m, cmd := update(t, m, systemMsg(status.SystemMetrics{CPUPercent: 42, MemoryPercent: 80}))
	if !m.haveSystem || m.system.CPUPercent != 42 {
		t.Errorf("system = %+v, want CPUPercent 42", m.system)
	}
	if cmd == nil {
		t.Error("system sample should schedule the next one")
	}
	if !strings.Contains(m.View(), "cpu") {
		t.Error("footer should show cpu usage")
	}
}

// fakeSender records messages sent to the program.
type fakeSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (f *fakeSender) Send(msg tea.Msg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func TestNewSinkPostsCompletedMsg(t *testing.T) {
	sender := &fakeSender{}
	sink := NewSink(sender)

	pending := message.Pending(message.NewItem(message.Message{Text: "hi"}), time.Now())
	sink.Deliver(completed(pending, "ct", time.Millisecond))

	if len(sender.msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.msgs))
	}
	msg, ok := sender.msgs[0].(CompletedMsg)
	if !ok {
		t.Fatalf("sent %T, want CompletedMsg", sender.msgs[0])
	}
	if msg.Result.Key() != pending.Key() {
		t.Error("CompletedMsg carries the wrong key")
	}
}

func TestNoticeMsgSetsBanner(t *testing.T) {
	tests := []struct {
		level string
		want  bannerLevel
	}{
		{"info", bannerInfo},
		{"warning", bannerWarning},
		{"error", bannerError},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			m := newTestModel(&fakeSubmitter{}, &logRecorder{})

			m, _ = update(t, m, NoticeMsg{Level: tt.level, Text: "redis unreachable"})

			if m.banner != "redis unreachable" {
				t.Errorf("banner = %q, want %q", m.banner, "redis unreachable")
			}
			if m.bannerLevel != tt.want {
				t.Errorf("bannerLevel = %v, want %v", m.bannerLevel, tt.want)
			}
		})
	}
}
