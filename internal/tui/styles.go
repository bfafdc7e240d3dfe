// Package tui holds the shared look of seqcipher's terminal output.
package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

var (
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#2B6CB0", Dark: "#63B3ED"}
	ColorSecondary = lipgloss.AdaptiveColor{Light: "#2C7A7B", Dark: "#81E6D9"}
	ColorSuccess   = lipgloss.AdaptiveColor{Light: "#2F855A", Dark: "#68D391"}
	ColorWarning   = lipgloss.AdaptiveColor{Light: "#B7791F", Dark: "#F6E05E"}
	ColorError     = lipgloss.AdaptiveColor{Light: "#C53030", Dark: "#FC8181"}
	ColorMuted     = lipgloss.AdaptiveColor{Light: "#718096", Dark: "#A0AEC0"}
	ColorBorder    = lipgloss.AdaptiveColor{Light: "#CBD5E0", Dark: "#4A5568"}
)

// Text styles. Row states map to SpinnerStyle (pending), SuccessStyle (done)
// and ErrorStyle (failed).
var (
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1)
	SubtitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorSecondary)
	LabelStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorMuted)
	ValueStyle    = lipgloss.NewStyle()
	MutedStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	SpinnerStyle  = lipgloss.NewStyle().Foreground(ColorPrimary)
	SuccessStyle  = lipgloss.NewStyle().Foreground(ColorSuccess)
	ErrorStyle    = lipgloss.NewStyle().Foreground(ColorError)
)

// Layout styles
var (
	// PanelStyle frames the welcome rules.
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(1, 2)

	BannerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	// FooterStyle draws a rule above the counters.
	FooterStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(ColorBorder)
)

// IsTTY returns true if stdout is a terminal
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseInteractive reports whether spinners and the full-screen feed
// may draw on stdout.
func ShouldUseInteractive(noColor bool) bool {
	return IsTTY() && !noColor
}

// LoadColor picks the color for a host usage percentage.
func LoadColor(percent float64) lipgloss.AdaptiveColor {
	switch {
	case percent >= 90:
		return ColorError
	case percent >= 75:
		return ColorWarning
	default:
		return ColorSuccess
	}
}

// ProgressBar renders percent as a bar of width cells colored by LoadColor.
func ProgressBar(percent float64, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := max(min(int(percent/100.0*float64(width)), width), 0)

	bar := lipgloss.NewStyle().Foreground(LoadColor(percent)).Render(strings.Repeat("█", filled))
	return bar + MutedStyle.Render(strings.Repeat("░", width-filled))
}

// Truncate shortens s to at most width terminal cells, marking the cut with an ellipsis.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// FormatKeyValue renders "key: value" for summaries.
func FormatKeyValue(key, value string) string {
	return LabelStyle.Render(key+":") + " " + ValueStyle.Render(value)
}
