package message

import (
	"math/rand/v2"
	"strings"
	"sync"
)

// Message is the text payload carried by an item: plain text when submitted,
// ciphertext once processed.
type Message struct {
	Text string
}

// Word lists used to build random messages.
var (
	subjects = []string{
		"the courier", "a quiet node", "the archivist", "an old modem", "the night shift",
		"a stray packet", "the lighthouse", "our relay", "the cartographer", "a patient clerk",
	}
	verbs = []string{
		"forwards", "untangles", "percolates", "harmonizes", "illuminates",
		"transmutes", "wrangles", "synthesizes", "ruminates on", "kindles",
	}
	objects = []string{
		"the morning report", "seven sealed letters", "a ledger of tides", "the weather codes",
		"an unfinished map", "the quarterly figures", "a borrowed cipher", "two lost tickets",
		"the harbor schedule", "a bundle of receipts",
	}
)

// Generator produces random messages.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator creates a generator seeded from the runtime's random source.
func NewGenerator() *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededGenerator creates a deterministic generator.
func NewSeededGenerator(seed uint64) *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate returns a new random message.
func (g *Generator) Generate() Message {
	g.mu.Lock()
	defer g.mu.Unlock()

	parts := []string{
		subjects[g.rnd.IntN(len(subjects))],
		verbs[g.rnd.IntN(len(verbs))],
		objects[g.rnd.IntN(len(objects))],
	}
	text := strings.Join(parts, " ")
	return Message{Text: strings.ToUpper(text[:1]) + text[1:]}
}
