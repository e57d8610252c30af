package ui

import "github.com/charmbracelet/lipgloss"

// Semantic color palette.
const (
	colorPrimary = lipgloss.Color("#00BFFF") // Cyan, headings
	colorAccent  = lipgloss.Color("#FFD700") // Gold, warnings and retries
	colorSuccess = lipgloss.Color("#00E676") // Green, accepted
	colorDanger  = lipgloss.Color("#FF5252") // Red, rejected and failed
	colorMuted   = lipgloss.Color("#636363") // Gray, details
	colorBlue    = lipgloss.Color("#5B8DEF") // Blue, identifiers
)

// Status icons.
const (
	iconDone    = "✓"
	iconFailed  = "✗"
	iconWarn    = "⚠"
	iconDry     = "◎"
	iconPending = "·"
)

// styles holds the lipgloss styles bound to one renderer.
type styles struct {
	heading lipgloss.Style
	success lipgloss.Style
	danger  lipgloss.Style
	warn    lipgloss.Style
	muted   lipgloss.Style
	id      lipgloss.Style
	label   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		heading: r.NewStyle().Foreground(colorPrimary).Bold(true),
		success: r.NewStyle().Foreground(colorSuccess).Bold(true),
		danger:  r.NewStyle().Foreground(colorDanger).Bold(true),
		warn:    r.NewStyle().Foreground(colorAccent).Bold(true),
		muted:   r.NewStyle().Foreground(colorMuted),
		id:      r.NewStyle().Foreground(colorBlue),
		label:   r.NewStyle().Width(14),
	}
}
