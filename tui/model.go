package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pas-de-deux/cadence"
	"pas-de-deux/midi"
	"pas-de-deux/performance"
	"pas-de-deux/theme"
	"pas-de-deux/widgets"
)

// Typing keys for each hand. Everything else is a control key.
const (
	leftKeys  = "qwertasdfgzxcvb12345`"
	rightKeys = "yuiophjklnm67890-=[];',./"
)

// Rate at which the meters hit full scale, in keystrokes per second
const meterMax = 8.0

// Redraw period while nothing else happens (scope eviction, fades)
const refreshRate = 100 * time.Millisecond

const bpmStep = 5

type Model struct {
	Session   *performance.Session
	DeviceMgr *midi.DeviceManager // may be nil
	Router    *midi.Router        // may be nil
	Theme     *theme.Theme

	snap     performance.Snapshot
	devices  []string
	lastKey  cadence.StreamID
	message  string
	showHelp bool
	quitting bool
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

type refreshMsg time.Time

func NewModel(session *performance.Session, deviceMgr *midi.DeviceManager, router *midi.Router, th *theme.Theme) Model {
	if th == nil {
		th = theme.New(nil)
	}
	return Model{
		Session:   session,
		DeviceMgr: deviceMgr,
		Router:    router,
		Theme:     th,
		snap:      session.Snapshot(),
	}
}

func ListenForUpdates(session *performance.Session) tea.Cmd {
	return func() tea.Msg {
		<-session.Updates()
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	if deviceMgr == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Session),
		ListenForDevices(m.DeviceMgr),
		refresh(),
	)
}

// StreamForKey maps a typing key to its stream
func StreamForKey(key string) (cadence.StreamID, bool) {
	if len(key) != 1 {
		return "", false
	}
	k := strings.ToLower(key)
	switch {
	case strings.Contains(leftKeys, k):
		return cadence.Left, true
	case strings.Contains(rightKeys, k):
		return cadence.Right, true
	}
	return "", false
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit

		case "tab":
			m.message = "preset " + m.Session.NextPreset()

		case "ctrl+b":
			m.Session.StartBass()
			m.message = "bass started"

		case "ctrl+x":
			m.Session.StopBass()
			m.message = "bass fading"

		case "ctrl+p":
			m.Session.StopPatterns()
			m.message = "patterns stopped"

		case "up":
			m.Session.SetBPM(m.snap.Rhythm.BPM + bpmStep)

		case "down":
			m.Session.SetBPM(m.snap.Rhythm.BPM - bpmStep)

		case "?":
			m.showHelp = !m.showHelp

		default:
			if id, ok := StreamForKey(key); ok {
				m.Session.Keystroke(id)
				m.lastKey = id
			}
		}
		m.snap = m.Session.Snapshot()

	case UpdateMsg:
		m.snap = m.Session.Snapshot()
		return m, ListenForUpdates(m.Session)

	case refreshMsg:
		m.snap = m.Session.Snapshot()
		return m, refresh()

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		switch event.Type {
		case midi.DeviceConnected:
			m.devices = append(m.devices, event.ID)
			sort.Strings(m.devices)
			m.message = "connected " + event.ID
			if m.Router != nil {
				go m.Router.Drain(event.Controller)
			}
		case midi.DeviceDisconnected:
			for i, id := range m.devices {
				if id == event.ID {
					m.devices = append(m.devices[:i:i], m.devices[i+1:]...)
					break
				}
			}
			m.message = "disconnected " + event.ID
		}
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	th := m.Theme
	headerStyle := lipgloss.NewStyle().Foreground(th.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	fgStyle := lipgloss.NewStyle().Foreground(th.FG())

	var b strings.Builder

	// Header with bass and pulse status
	r := m.snap.Rhythm
	bass := "STOP"
	switch {
	case r.Fading:
		bass = "FADE"
	case r.Playing:
		bass = "PLAY"
	}
	pulse := "off"
	if m.snap.Pulse.Playing {
		pulse = fmt.Sprintf("%.0fbpm", m.snap.Pulse.Config.Tempo)
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("pas-de-deux  bass %s %3.0fbpm %s  pulse %s", bass, r.BPM, r.Preset, pulse)))
	b.WriteString("\n\n")

	b.WriteString(m.streamView("LEFT ", m.snap.Left, m.lastKey == cadence.Left))
	b.WriteString("\n")
	b.WriteString(m.streamView("RIGHT", m.snap.Right, m.lastKey == cadence.Right))
	b.WriteString("\n\n")

	// Counter machine
	c := m.snap.Counter
	b.WriteString(fgStyle.Render(fmt.Sprintf("counter %+d  %c stack %s", c.Counter, th.Symbols.Push, widgets.RenderStack(c.Stack))))
	b.WriteString("\n")

	// Fade-out progress
	if r.Fading {
		dots := widgets.FadeDots(r.FadeStep, 8, th.Symbols.BeatOff, th.Symbols.BeatFade)
		b.WriteString(lipgloss.NewStyle().Foreground(th.Warning()).Render("fade " + dots))
		b.WriteString("\n")
	}

	// Active patterns
	if len(m.snap.Pulse.Patterns) > 0 {
		var names []string
		for _, p := range m.snap.Pulse.Patterns {
			names = append(names, fmt.Sprintf("%s(%s×%d)", p.Name, p.Wave, p.Length))
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("patterns %s  voice %s", strings.Join(names, " "), m.snap.Pulse.Voice)))
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render("click " + m.snap.ClickSound))
	b.WriteString("\n")

	if len(m.devices) > 0 {
		b.WriteString(dimStyle.Render("midi " + strings.Join(m.devices, ", ")))
		b.WriteString("\n")
	}

	if m.message != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(th.Success()).Render(m.message))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(dimStyle.Render(widgets.RenderKeyHelp(helpSections)))
	} else {
		b.WriteString(dimStyle.Render("type with both hands  tab:preset  ↑/↓:bpm  ?:help  esc:quit"))
	}

	return b.String()
}

func (m Model) streamView(label string, s performance.StreamSnapshot, active bool) string {
	th := m.Theme
	color := th.Tempo(s.Tempo.Rank())

	labelStyle := lipgloss.NewStyle().Foreground(th.FG())
	if active {
		labelStyle = labelStyle.Foreground(th.Active()).Bold(true)
	}

	meter := widgets.Meter(s.Rate, meterMax, 16, th.Symbols.MeterFull, th.Symbols.MeterEmpty, color)
	names := make([]string, len(cadence.TempoStates))
	for i, t := range cadence.TempoStates {
		names[i] = t.String()
	}
	ladder := widgets.TempoLadder(names, s.Tempo.Rank(), color, th.Muted())

	hold := "-"
	if s.MeanHoldMS > 0 {
		hold = fmt.Sprintf("%s %.0fms", s.Hold, s.MeanHoldMS)
	}

	return fmt.Sprintf("%s %s %5.2f/s  %s\n       hold %s",
		labelStyle.Render(label), meter, s.Rate, ladder, hold)
}

var helpSections = []widgets.KeySection{
	{Title: "Streams", Keys: []widgets.KeyBinding{
		{Key: "q..b 1..5", Desc: "left hand"},
		{Key: "y..m 6..0", Desc: "right hand"},
	}},
	{Title: "Bass", Keys: []widgets.KeyBinding{
		{Key: "tab", Desc: "next preset"},
		{Key: "↑ / ↓", Desc: "bpm up / down"},
		{Key: "ctrl+b", Desc: "start loop"},
		{Key: "ctrl+x", Desc: "fade out"},
	}},
	{Title: "Pulse", Keys: []widgets.KeyBinding{
		{Key: "ctrl+p", Desc: "stop patterns"},
	}},
	{Title: "", Keys: []widgets.KeyBinding{
		{Key: "?", Desc: "toggle help"},
		{Key: "esc", Desc: "quit"},
	}},
}
