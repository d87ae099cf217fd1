package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/moodbeats/internal/capture"
	"github.com/desertthunder/moodbeats/internal/formatter"
	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/desertthunder/moodbeats/internal/playlist"
)

// Alerts queues playlist alerts for the dashboard. It implements [playlist.Alerter].
type Alerts chan string

var _ playlist.Alerter = Alerts(nil)

func NewAlerts(buffer int) Alerts {
	return make(Alerts, buffer)
}

// Alert queues message, dropping it when the queue is full.
func (a Alerts) Alert(message string) {
	select {
	case a <- message:
	default:
	}
}

// Options are the dashboard dependencies. Session may be nil to run without capture.
type Options struct {
	Session *capture.Session
	Flows   *playlist.Flows
	Alerts  Alerts
	Request models.PlaylistRequest
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	session *capture.Session
	flows   *playlist.Flows
	alerts  Alerts
	request models.PlaylistRequest

	width  int
	height int

	status     capture.Status
	captureErr error
	lastEvent  capture.Event
	alert      string

	tracks  list.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	tracks := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	tracks.Title = "Recommendations"
	tracks.SetShowHelp(false)
	tracks.SetFilteringEnabled(false)

	return &Model{
		ctx:     ctx,
		session: opts.Session,
		flows:   opts.Flows,
		alerts:  opts.Alerts,
		request: opts.Request,
		tracks:  tracks,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the capture session and begins listening for events and alerts.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.waitForAlert()}
	if m.session != nil {
		cmds = append(cmds, m.startCapture(), m.waitForEvent())
	}
	return tea.Batch(cmds...)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.tracks.SetSize(max(msg.Width-4, 20), max(msg.Height-18, 5))
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.tracks, cmd = m.tracks.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgCaptureStarted:
		if err, _ := msg.data.(error); err != nil {
			m.captureErr = err
		}
		m.refreshStatus()
		return m, nil

	case MsgCaptureEvent:
		m.lastEvent = msg.data.(capture.Event)
		m.refreshStatus()
		return m, m.waitForEvent()

	case MsgCaptureClosed:
		m.refreshStatus()
		return m, nil

	case MsgFlowDone:
		res := msg.data.(flowResult)
		if res.action == playlist.ActionPreview && res.err == nil {
			m.tracks.SetItems(trackItems(m.flows.Snapshot().Recommendations))
		}
		return m, nil

	case MsgAlert:
		m.alert = msg.data.(string)
		return m, m.waitForAlert()
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.dismiss):
		m.alert = ""
		return m, nil
	case key.Matches(msg, m.keys.analyze):
		return m, m.runFlow(playlist.ActionAnalyze)
	case key.Matches(msg, m.keys.preview):
		m.tracks.SetItems(nil)
		return m, m.runFlow(playlist.ActionPreview)
	case key.Matches(msg, m.keys.generate):
		return m, m.runFlow(playlist.ActionGenerate)
	}

	var cmd tea.Cmd
	m.tracks, cmd = m.tracks.Update(msg)
	return m, cmd
}

func (m *Model) refreshStatus() {
	if m.session != nil {
		m.status = m.session.Status()
	}
}

func (m *Model) startCapture() tea.Cmd {
	return func() tea.Msg {
		return captureStartedMsg(m.session.Start(m.ctx))
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	events := m.session.Events()
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return captureClosedMsg()
		}
		return captureEventMsg(ev)
	}
}

func (m *Model) waitForAlert() tea.Cmd {
	if m.alerts == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case text := <-m.alerts:
			return alertMsg(text)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) runFlow(action playlist.Action) tea.Cmd {
	req := m.request
	return func() tea.Msg {
		var err error
		switch action {
		case playlist.ActionAnalyze:
			_, err = m.flows.Analyze(m.ctx, req.Days)
		case playlist.ActionPreview:
			_, err = m.flows.Preview(m.ctx, req)
		case playlist.ActionGenerate:
			_, err = m.flows.Generate(m.ctx, req)
		}
		return flowDoneMsg(action, err)
	}
}

// View renders the dashboard.
func (m *Model) View() string {
	var sections []string

	if m.alert != "" {
		sections = append(sections, styles.banner.Render("⚠ "+m.alert))
	}
	sections = append(sections, styles.title.Render("MoodBeats"))

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		styles.panel.Render(m.renderCapture()),
		" ",
		styles.panel.Render(m.renderPlaylists()),
	)
	sections = append(sections, top)

	if len(m.tracks.Items()) > 0 {
		sections = append(sections, m.tracks.View())
	}

	sections = append(sections, m.help.ShortHelpView(m.keys.ShortHelp()))
	return strings.Join(sections, "\n")
}

func (m *Model) renderCapture() string {
	var b strings.Builder
	b.WriteString(styles.header.Render("Capture") + "\n")

	if m.session == nil {
		b.WriteString(styles.help.Render("disabled"))
		return b.String()
	}

	fmt.Fprintf(&b, "Camera: %s\n", styles.Readiness(m.status.Camera))
	fmt.Fprintf(&b, "Models: %s\n", styles.Readiness(m.status.Models))

	if e := m.status.LastEmotion; e != nil {
		fmt.Fprintf(&b, "Emotion: %s %d%%\n", styles.Mood(e.Label), e.Confidence)
	} else {
		fmt.Fprintf(&b, "Emotion: %s\n", styles.help.Render("waiting"))
	}
	fmt.Fprintf(&b, "Upload: %s\n", styles.Outcome(m.status.LastOutcome))
	fmt.Fprintf(&b, "Ticks: %d", m.status.Ticks)

	if m.captureErr != nil {
		fmt.Fprintf(&b, "\n%s", styles.err.Render("Capture unavailable"))
	}
	return b.String()
}

func (m *Model) renderPlaylists() string {
	var b strings.Builder
	b.WriteString(styles.header.Render("Playlists") + "\n")

	snap := m.flows.Snapshot()
	for _, row := range []struct {
		label string
		state models.Readiness
	}{
		{"Analyze", snap.AnalyzeState},
		{"Preview", snap.PreviewState},
		{"Generate", snap.GenerateState},
	} {
		state := styles.Readiness(row.state)
		if row.state == models.Requesting {
			state = m.spinner.View() + " " + state
		}
		fmt.Fprintf(&b, "%-9s %s\n", row.label, state)
	}

	if mood := snap.Mood; mood != nil {
		fmt.Fprintf(&b, "\nMood: %s", styles.Mood(mood.DominantMood))
		if !mood.Override {
			fmt.Fprintf(&b, " (%d over %d days)", mood.TotalMoods, mood.DaysAnalyzed)
			entries := formatter.SortedDistribution(mood.MoodDistribution)
			for _, e := range entries {
				fmt.Fprintf(&b, "\n%-9s %s %d", e.Mood, formatter.Bar(e.Count, entries[0].Count, 16), e.Count)
			}
		}
	}

	if g := snap.Generated; g != nil {
		fmt.Fprintf(&b, "\n\n%s %s\n%s", styles.ok.Render("✓"), g.Playlist.Name, styles.help.Render(g.Playlist.URL))
	}
	return b.String()
}
