package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/moodbeats/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// moodColors matches the colors the web dashboard uses for each mood.
var moodColors = map[string]string{
	"happy":     "#FFD93D",
	"sad":       "#6C9BD2",
	"angry":     "#FF6B6B",
	"neutral":   "#A8A8A8",
	"surprised": "#C77DFF",
	"fear":      "#8E7DBE",
	"disgust":   "#6BCB77",
}

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title  lipgloss.Style
	header lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	help   lipgloss.Style
	banner lipgloss.Style
	panel  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:  NewBold(t).MarginBottom(1),
		header: NewBold(t),
		ok:     NewBold(s),
		err:    NewBold(e),
		warn:   NewStyle(w),
		help:   NewEm(h),
		banner: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color(e)).Padding(0, 1),
		panel:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(h)).Padding(0, 1),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Mood renders label in its mood color.
func (p *Palette) Mood(label string) string {
	c, ok := moodColors[label]
	if !ok {
		return label
	}
	return NewBold(c).Render(label)
}

// Readiness renders r colored by outcome.
func (p *Palette) Readiness(r models.Readiness) string {
	switch r {
	case models.Ready:
		return p.ok.Render(r.String())
	case models.Failed:
		return p.err.Render(r.String())
	case models.Requesting:
		return p.warn.Render(r.String())
	default:
		return p.help.Render(r.String())
	}
}

// Outcome renders an upload outcome.
func (p *Palette) Outcome(o models.Outcome) string {
	switch o {
	case models.OutcomeSent:
		return p.ok.Render(string(o))
	case models.OutcomeFailed:
		return p.err.Render(string(o))
	case "":
		return p.help.Render("none")
	default:
		return p.warn.Render(string(o))
	}
}
