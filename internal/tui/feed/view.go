package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/aceteam-ai/seqcipher/internal/message"
	"github.com/aceteam-ai/seqcipher/internal/tui"
)

const (
	defaultWidth = 80
	defaultRows  = 20
)

// welcomeRules are shown until the first message is pushed.
var welcomeRules = []string{
	"Press p or enter to push a message into the queue.",
	"Messages are enciphered one at a time, in the order they were pushed.",
	"The time next to a finished row is measured from its push, waiting included.",
}

func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}

	var b strings.Builder

	title := "seqcipher"
	if m.cfg.Version != "" {
		title += " " + tui.MutedStyle.Render(m.cfg.Version)
	}
	b.WriteString(tui.TitleStyle.Render(title))
	b.WriteString("\n")

	if m.board.Len() == 0 {
		b.WriteString(m.renderWelcome(width))
		b.WriteString("\n")
	} else {
		rows := m.board.Rows()
		start := max(len(rows)-m.visibleRows(), 0)
		for i := start; i < len(rows); i++ {
			b.WriteString(m.renderRow(i, rows[i], width))
			b.WriteString("\n")
		}
	}

	if m.banner != "" {
		b.WriteString(m.renderBanner(width))
		b.WriteString("\n")
	}

	b.WriteString(tui.FooterStyle.Width(width).Render(m.renderFooter()))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

func (m Model) renderWelcome(width int) string {
	var lines []string
	lines = append(lines, tui.SubtitleStyle.Render("Welcome"), "")
	for i, rule := range welcomeRules {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, rule))
	}
	panel := tui.PanelStyle
	if width > 8 {
		panel = panel.MaxWidth(width)
	}
	return panel.Render(strings.Join(lines, "\n"))
}

// visibleRows is how many rows fit between the title and the footer.
func (m Model) visibleRows() int {
	if m.height <= 0 {
		return defaultRows
	}
	// title + margin, banner, footer border + stats, help
	return max(m.height-6, 1)
}

func (m Model) renderRow(i int, row message.Timed[message.Message], width int) string {
	num := tui.MutedStyle.Render(fmt.Sprintf("%4d", i+1))

	var icon, text, meta string
	style := tui.ValueStyle
	switch {
	case !row.Completed:
		icon = m.spinner.View()
		text = row.Item.Payload.Text
		style = tui.MutedStyle
		meta = tui.MutedStyle.Render("queued " + time.UnixMilli(row.TimestampMillis()).Format("15:04:05.000"))
	case row.Failed():
		icon = tui.ErrorStyle.Render("✗")
		text = row.Err.Error()
		style = tui.ErrorStyle
		meta = tui.ErrorStyle.Render(fmt.Sprintf("%dms", row.TimestampMillis()))
	default:
		icon = tui.SuccessStyle.Render("✓")
		text = row.Item.Payload.Text
		meta = tui.SuccessStyle.Render(fmt.Sprintf("%dms", row.TimestampMillis()))
	}

	used := lipgloss.Width(num) + lipgloss.Width(icon) + lipgloss.Width(meta) + 4
	text = style.Render(tui.Truncate(text, width-used))

	return fmt.Sprintf("%s %s %s  %s", num, icon, text, meta)
}

func (m Model) renderBanner(width int) string {
	style := tui.BannerStyle
	switch m.bannerLevel {
	case bannerError:
		style = style.Foreground(tui.ColorError)
	case bannerWarning:
		style = style.Foreground(tui.ColorWarning)
	default:
		style = style.Foreground(tui.ColorSecondary)
	}
	return style.Render(tui.Truncate(m.banner, width-2))
}

func (m Model) renderFooter() string {
	parts := []string{
		tui.FormatKeyValue("queued", fmt.Sprintf("%d", m.cfg.Submitter.Pending())),
		tui.FormatKeyValue("done", fmt.Sprintf("%d/%d", m.board.CompletedCount(), m.board.Len())),
	}
	if m.failed > 0 {
		parts = append(parts, tui.ErrorStyle.Render(fmt.Sprintf("%d failed", m.failed)))
	}
	if m.dropped > 0 {
		parts = append(parts, tui.ErrorStyle.Render(fmt.Sprintf("%d dropped", m.dropped)))
	}

	auto := tui.MutedStyle.Render("off")
	if m.auto {
		auto = tui.SuccessStyle.Render("on")
	}
	parts = append(parts, tui.LabelStyle.Render("auto:")+" "+auto)

	if m.haveSystem {
		parts = append(parts,
			tui.LabelStyle.Render("cpu")+" "+tui.ProgressBar(m.system.CPUPercent, 10),
			tui.LabelStyle.Render("mem")+" "+tui.ProgressBar(m.system.MemoryPercent, 10),
		)
	}

	return strings.Join(parts, "  ")
}
