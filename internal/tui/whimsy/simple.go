package whimsy

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/aceteam-ai/seqcipher/internal/tui"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a single status line while a command waits on the pipeline.
// It only draws when its output is a terminal.
type Spinner struct {
	out         io.Writer
	animate     bool
	messages    []string
	interval    time.Duration
	msgInterval time.Duration

	mu         sync.Mutex
	currentMsg int
	lastRotate time.Time
	progress   string
	running    bool
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// NewSpinner creates a spinner on stdout.
func NewSpinner(messages []string) *Spinner {
	return newSpinner(os.Stdout, tui.IsTTY(), messages)
}

func newSpinner(out io.Writer, animate bool, messages []string) *Spinner {
	if len(messages) == 0 {
		messages = CipheringMessages
	}
	return &Spinner{
		out:         out,
		animate:     animate,
		messages:    messages,
		interval:    80 * time.Millisecond,
		msgInterval: 2 * time.Second,
		currentMsg:  rand.IntN(len(messages)),
	}
}

// SetProgress sets the counter shown after the message, e.g. "37/100".
func (s *Spinner) SetProgress(done, total int) {
	s.mu.Lock()
	s.progress = fmt.Sprintf("%d/%d", done, total)
	s.mu.Unlock()
}

// Start begins the animation. It is a no-op when already running or when
// output is not a terminal.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || !s.animate {
		return
	}
	s.running = true
	s.lastRotate = time.Now()
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(s.stopCh, s.doneCh)
}

func (s *Spinner) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Hide cursor
	fmt.Fprint(s.out, "\033[?25l")

	for frame := 0; ; frame = (frame + 1) % len(frames) {
		select {
		case <-stop:
			// Clear the line and show cursor
			fmt.Fprint(s.out, "\r\033[K\033[?25h")
			return
		case <-ticker.C:
			fmt.Fprintf(s.out, "\r\033[K%s %s", tui.SpinnerStyle.Render(frames[frame]), s.line())
		}
	}
}

// line returns the current message, rotating it when due.
func (s *Spinner) line() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.lastRotate) >= s.msgInterval {
		s.currentMsg = (s.currentMsg + 1) % len(s.messages)
		s.lastRotate = time.Now()
	}
	line := tui.SpinnerStyle.Render(s.messages[s.currentMsg])
	if s.progress != "" {
		line += " " + tui.MutedStyle.Render(s.progress)
	}
	return line
}

// Stop clears the spinner line. Safe to call when not running.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stop)
	<-done
}

// StopWithSuccess stops the spinner and prints a success line.
func (s *Spinner) StopWithSuccess(msg string) {
	s.finish(tui.SuccessStyle.Render("✓"), "✓", msg)
}

// StopWithError stops the spinner and prints an error line.
func (s *Spinner) StopWithError(msg string) {
	s.finish(tui.ErrorStyle.Render("✗"), "✗", msg)
}

func (s *Spinner) finish(styled, plain, msg string) {
	s.Stop()
	if s.animate {
		fmt.Fprintf(s.out, "\r\033[K%s %s\n", styled, msg)
		return
	}
	fmt.Fprintf(s.out, "%s %s\n", plain, msg)
}

// WithSpinnerResult runs fn under a spinner and prints its result line.
func WithSpinnerResult(messages []string, fn func() (string, error)) error {
	s := NewSpinner(messages)
	s.Start()
	result, err := fn()
	if err != nil {
		s.StopWithError(err.Error())
		return err
	}
	if result != "" {
		s.StopWithSuccess(result)
	} else {
		s.Stop()
	}
	return nil
}
