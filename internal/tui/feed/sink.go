package feed

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aceteam-ai/seqcipher/internal/message"
	"github.com/aceteam-ai/seqcipher/internal/worker"
)

// CompletedMsg carries a finished item into the event loop.
type CompletedMsg struct {
	Result message.Timed[message.Message]
}

// Sender is the part of *tea.Program the sink needs.
type Sender interface {
	Send(msg tea.Msg)
}

// NewSink returns a ResultSink that posts each result to the program's event
// loop, where the board is updated.
//
// Program.Send blocks until the loop reads the message, so wrap the sink in a
// worker.AsyncSink before handing it to the worker.
func NewSink(s Sender) worker.ResultSink[message.Message] {
	return worker.SinkFunc[message.Message](func(result message.Timed[message.Message]) {
		s.Send(CompletedMsg{Result: result})
	})
}
