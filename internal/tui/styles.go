// Package tui renders berth's human-readable terminal output.
//
// All colors use AdaptiveColor for light/dark terminal support. Call
// CheckNoColor at the start of a command to respect NO_COLOR and TERM=dumb.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/mrz1836/berth/internal/constants"
)

//nolint:gochecknoglobals // package-level palette
var (
	// ColorPrimary is blue, used for active states.
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#00D7FF"}

	// ColorSuccess is green, used for completed items.
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}

	// ColorWarning is yellow, used for items needing attention.
	ColorWarning = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD700"}

	// ColorError is red, used for failures.
	ColorError = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}

	// ColorMuted is gray, used for secondary text.
	ColorMuted = lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}
)

// IssueStatusColors maps each issue status to its display color.
func IssueStatusColors() map[constants.IssueStatus]lipgloss.AdaptiveColor {
	return map[constants.IssueStatus]lipgloss.AdaptiveColor{
		constants.IssueStatusReady:      ColorMuted,
		constants.IssueStatusInProgress: ColorPrimary,
		constants.IssueStatusReview:     ColorWarning,
		constants.IssueStatusDone:       ColorSuccess,
	}
}

// IssueStatusIcon returns the icon shown next to an issue status.
func IssueStatusIcon(status constants.IssueStatus) string {
	switch status {
	case constants.IssueStatusReady:
		return "○"
	case constants.IssueStatusInProgress:
		return "●"
	case constants.IssueStatusReview:
		return "◐"
	case constants.IssueStatusDone:
		return "✓"
	default:
		return "?"
	}
}

// RenderIssueStatus renders a status as icon + colored text.
func RenderIssueStatus(status constants.IssueStatus) string {
	text := IssueStatusIcon(status) + " " + status.String()
	color, ok := IssueStatusColors()[status]
	if !ok {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}

// TableStyles holds the styles used by Table.
type TableStyles struct {
	Header lipgloss.Style
	Dim    lipgloss.Style
}

// NewTableStyles creates the default table styles.
func NewTableStyles() *TableStyles {
	return &TableStyles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#DDDDDD"}),
		Dim: lipgloss.NewStyle().Foreground(ColorMuted),
	}
}

// OutputStyles holds the styles used by TTYOutput.
type OutputStyles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
}

// NewOutputStyles creates the default message styles.
func NewOutputStyles() *OutputStyles {
	return &OutputStyles{
		Success: lipgloss.NewStyle().Foreground(ColorSuccess),
		Error:   lipgloss.NewStyle().Foreground(ColorError),
		Warning: lipgloss.NewStyle().Foreground(ColorWarning),
		Info:    lipgloss.NewStyle(),
	}
}

// CheckNoColor disables colors when the terminal does not want them.
func CheckNoColor() {
	if !HasColorSupport() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// HasColorSupport returns false if NO_COLOR is set (any value) or TERM=dumb.
func HasColorSupport() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}
