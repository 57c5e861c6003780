// Package render draws timelines and playback captions for the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cadre-oss/storyline/internal/playback"
	"github.com/cadre-oss/storyline/internal/timeline"
)

// Step markers by status.
const (
	MarkerPending   = "○"
	MarkerActive    = "●"
	MarkerCompleted = "✓"
)

// Theme holds the styles used for each part of the output.
type Theme struct {
	Title     lipgloss.Style
	Agent     lipgloss.Style
	Pending   lipgloss.Style
	Active    lipgloss.Style
	Completed lipgloss.Style
	Detail    lipgloss.Style
	Caption   lipgloss.Style
	Final     lipgloss.Style
	Muted     lipgloss.Style
}

// DefaultTheme is the colored theme.
func DefaultTheme() Theme {
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	pink := lipgloss.Color("#ff71ce")
	muted := lipgloss.Color("#9ca3d8")

	return Theme{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(pink),
		Agent:     lipgloss.NewStyle().Bold(true),
		Pending:   lipgloss.NewStyle().Foreground(muted),
		Active:    lipgloss.NewStyle().Bold(true).Foreground(blue),
		Completed: lipgloss.NewStyle().Foreground(mint),
		Detail:    lipgloss.NewStyle().Foreground(muted).Italic(true),
		Caption:   lipgloss.NewStyle().Foreground(blue).Italic(true),
		Final:     lipgloss.NewStyle().Bold(true).Foreground(mint),
		Muted:     lipgloss.NewStyle().Foreground(muted),
	}
}

// PlainTheme renders without any styling.
func PlainTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{
		Title: plain, Agent: plain, Pending: plain, Active: plain, Completed: plain,
		Detail: plain, Caption: plain, Final: plain, Muted: plain,
	}
}

// Renderer formats timelines with a theme. Styles are applied line by line
// so multi-line output is never padded.
type Renderer struct {
	theme Theme
}

// New creates a renderer.
func New(theme Theme) *Renderer {
	return &Renderer{theme: theme}
}

// Header describes a built timeline.
func (r *Renderer) Header(res timeline.Result) string {
	if len(res.Events) == 0 {
		return r.theme.Title.Render("Timeline") + " " + r.theme.Muted.Render("(empty)")
	}
	noun := "steps"
	if len(res.Events) == 1 {
		noun = "step"
	}
	return r.theme.Title.Render("Timeline") + " " +
		r.theme.Muted.Render(fmt.Sprintf("(%s, %d %s)", res.Source, len(res.Events), noun))
}

// Step renders one timeline entry, with its detail on a second line.
func (r *Renderer) Step(ev timeline.SimulatedEvent) string {
	marker, style := r.marker(ev.Status)
	line := style.Render(marker) + " " + r.theme.Agent.Render(ev.FriendlyName) + "  " + style.Render(ev.PrimaryText)
	if ev.Detail == "" {
		return line
	}
	return line + "\n    " + r.theme.Detail.Render(ev.Detail)
}

// Timeline renders every entry in order.
func (r *Renderer) Timeline(events []timeline.SimulatedEvent) string {
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, r.Step(ev))
	}
	return strings.Join(lines, "\n")
}

// Result renders a header followed by the timeline.
func (r *Renderer) Result(res timeline.Result) string {
	if len(res.Events) == 0 {
		return r.Header(res)
	}
	return r.Header(res) + "\n" + r.Timeline(res.Events)
}

// Caption renders the transient status line. An empty caption renders as
// nothing.
func (r *Renderer) Caption(c playback.Caption) string {
	if c.Text == "" {
		return ""
	}
	if c.Phase == playback.CaptionFinal {
		return r.theme.Final.Render(c.Text)
	}
	return r.theme.Caption.Render("… " + c.Text)
}

// State renders the caption above the timeline being played.
func (r *Renderer) State(s playback.State) string {
	parts := make([]string, 0, 2)
	if c := r.Caption(s.Caption); c != "" {
		parts = append(parts, c)
	}
	if len(s.Events) > 0 {
		parts = append(parts, r.Timeline(s.Events))
	}
	return strings.Join(parts, "\n")
}

func (r *Renderer) marker(status timeline.Status) (string, lipgloss.Style) {
	switch status {
	case timeline.StatusActive:
		return MarkerActive, r.theme.Active
	case timeline.StatusCompleted:
		return MarkerCompleted, r.theme.Completed
	default:
		return MarkerPending, r.theme.Pending
	}
}
