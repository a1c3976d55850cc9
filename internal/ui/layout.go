package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/managemyhealth/internal/theme"
)

// Layout manages the header / content / status bar frame.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with one-line header and status bar.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentHeight returns the height left for the main content area.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// RenderHeader renders the title on the left and sync status on the right,
// padded to the full width.
func (l Layout) RenderHeader(title, syncStatus string) string {
	left := theme.HeaderStyle.Render(title)
	right := theme.HeaderStyle.Render(syncStatus)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, fill(theme.HeaderStyle, l.Width-lipgloss.Width(left)-lipgloss.Width(right)), right)
}

// RenderStatusBar renders hints across the full width. A non-empty banner
// replaces the hints.
func (l Layout) RenderStatusBar(hints, banner string) string {
	style := theme.StatusBarStyle
	text := hints
	if banner != "" {
		style = theme.BannerStyle
		text = banner
	}
	rendered := style.Render(text)
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, fill(style, l.Width-lipgloss.Width(rendered)))
}

// Frame joins header, content and status bar vertically.
func (l Layout) Frame(header, content, statusBar string) string {
	content = lipgloss.NewStyle().Height(l.ContentHeight()).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

// Columns lays panels out side by side when the terminal is wide enough
// and stacks them otherwise.
func (l Layout) Columns(minWidth int, panels ...string) string {
	if len(panels) == 0 {
		return ""
	}
	if l.Width < minWidth*len(panels) {
		return lipgloss.JoinVertical(lipgloss.Left, panels...)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, panels...)
}

// PanelWidth returns the outer width of each of n side-by-side panels.
func (l Layout) PanelWidth(n, minWidth int) int {
	if n <= 0 {
		return l.Width
	}
	if l.Width < minWidth*n {
		return l.Width
	}
	return l.Width / n
}

func fill(style lipgloss.Style, width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Width(width).
		Background(style.GetBackground()).
		Render("")
}
