package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"shuoba/assess"
	"shuoba/audio"
	"shuoba/log"
	"shuoba/playback"
	"shuoba/session"
)

type tickMsg time.Time

type assessDoneMsg struct {
	result *assess.Result
	err    error
}

type playbackDoneMsg struct{ err error }

var (
	scriptStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true)
	phoneticStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	translationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	progressStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	recStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	standbyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	assessingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	warnStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpBoldStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	metricStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	wordGood = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	wordOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	wordBad  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type tuiModel struct {
	orch   *session.Orchestrator
	speech *audio.SpeechDetector
	device *audio.DeviceInfo

	width, height int
	frame         int

	recordingStart time.Time
	audioLevel     float64
	noVoice        bool

	errText string
	playing bool
}

func NewTUIProgram(orch *session.Orchestrator, speech *audio.SpeechDetector, device *audio.DeviceInfo) *tea.Program {
	m := tuiModel{orch: orch, speech: speech, device: device}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) assessCmd() tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		result, err := orch.StopAndAssess(context.Background())
		return assessDoneMsg{result: result, err: err}
	}
}

func (m tuiModel) playReferenceCmd() tea.Cmd {
	orch := m.orch
	path := orch.Current().AudioRef
	return func() tea.Msg {
		// Never hold the mic while the speaker is in use.
		orch.ReleaseAudio()
		return playbackDoneMsg{err: playback.PlayReference(path)}
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.orch.State() == session.StateRecording {
				m.orch.ReleaseAudio()
			}
			return m, tea.Quit

		case " ":
			switch m.orch.State() {
			case session.StateIdle:
				m.errText = ""
				m.noVoice = false
				if err := m.orch.StartRecording(); err != nil {
					m.errText = err.Error()
					playback.CueError()
					return m, nil
				}
				playback.CueRecord()
				m.recordingStart = time.Now()
				m.audioLevel = 0
			case session.StateRecording:
				playback.CueDone()
				return m, m.assessCmd()
			}

		case "enter":
			if m.orch.State() == session.StateResult {
				if err := m.orch.Dismiss(context.Background()); err != nil {
					m.errText = err.Error()
				}
			}

		case "p":
			state := m.orch.State()
			if !m.playing && (state == session.StateIdle || state == session.StateResult) &&
				m.orch.Current().AudioRef != "" {
				m.playing = true
				return m, m.playReferenceCmd()
			}
		}

	case tickMsg:
		m.frame++
		if m.orch.State() == session.StateRecording {
			m.audioLevel = m.audioLevel*0.6 + m.orch.Level()*0.4
			if m.speech != nil && time.Since(m.recordingStart) > time.Second {
				m.noVoice = !m.speech.VoiceDetected()
			}
		}
		return m, tuiTick()

	case assessDoneMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
			log.Errorf("assessment failed: %v", msg.err)
			playback.CueError()
		} else if msg.result != nil && msg.result.Overall != nil && *msg.result.Overall >= 80 {
			playback.CueSuccess()
		}

	case playbackDoneMsg:
		m.playing = false
		if msg.err != nil {
			m.errText = msg.err.Error()
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	sentence := m.orch.Current()
	var b strings.Builder

	b.WriteString(progressStyle.Render(fmt.Sprintf("sentence %d/%d", m.orch.Index()+1, m.orch.Len())))
	b.WriteString("\n\n")

	b.WriteString(scriptStyle.Render(sentence.Script) + "\n")
	if sentence.Phonetic != "" {
		b.WriteString(phoneticStyle.Render(sentence.Phonetic) + "\n")
	}
	if sentence.Translation != "" {
		b.WriteString(translationStyle.Render(sentence.Translation) + "\n")
	}
	b.WriteString("\n")

	switch m.orch.State() {
	case session.StateRecording:
		dur := time.Since(m.recordingStart).Seconds()
		b.WriteString(recStyle.Render(fmt.Sprintf("● REC %.1fs ", dur)))
		b.WriteString(levelBar(m.audioLevel) + "\n")
		if m.noVoice {
			b.WriteString(warnStyle.Render("  ⚠ no voice detected") + "\n")
		}
	case session.StateEncoding, session.StateAssessing:
		spinner := spinnerFrames[m.frame%len(spinnerFrames)]
		b.WriteString(assessingStyle.Render(spinner+" assessing...") + "\n")
	case session.StateResult:
		b.WriteString(m.renderResult())
	default:
		b.WriteString(standbyStyle.Render("○ STANDBY") + "\n")
	}

	if m.errText != "" {
		b.WriteString("\n" + errStyle.Render("✗ "+m.errText) + "\n")
	}

	b.WriteString("\n")
	if m.device != nil {
		line := "mic: " + m.device.Name
		if audio.IsBluetooth(m.device.Name) {
			line += " (BT: lower accuracy)"
		}
		b.WriteString(progressStyle.Render(line) + "\n")
	}

	switch m.orch.State() {
	case session.StateResult:
		b.WriteString(helpBoldStyle.Render("enter") + helpStyle.Render(" next  "))
	case session.StateRecording:
		b.WriteString(helpBoldStyle.Render("space") + helpStyle.Render(" stop  "))
	default:
		b.WriteString(helpBoldStyle.Render("space") + helpStyle.Render(" record  "))
	}
	if m.orch.Current().AudioRef != "" {
		b.WriteString(helpBoldStyle.Render("p") + helpStyle.Render(" listen  "))
	}
	b.WriteString(helpBoldStyle.Render("q") + helpStyle.Render(" quit"))
	b.WriteString("\n" + helpStyle.Render("shuoba "+version))

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (m tuiModel) renderResult() string {
	result := m.orch.Result()
	if result == nil {
		return ""
	}
	var b strings.Builder

	if result.Overall != nil {
		b.WriteString(scoreStyle(*result.Overall).Render(fmt.Sprintf("%.0f", *result.Overall)))
		b.WriteString(metricStyle.Render(" / 100"))
	} else {
		b.WriteString(metricStyle.Render("no score"))
	}
	if result.Retried {
		b.WriteString(metricStyle.Render("  (retried)"))
	}
	b.WriteString("\n")

	var metrics []string
	appendMetric := func(name string, v *float64) {
		if v != nil {
			metrics = append(metrics, fmt.Sprintf("%s %.0f", name, *v))
		}
	}
	appendMetric("accuracy", result.Accuracy)
	appendMetric("fluency", result.Fluency)
	appendMetric("completeness", result.Completeness)
	appendMetric("prosody", result.Prosody)
	if len(metrics) > 0 {
		b.WriteString(metricStyle.Render(strings.Join(metrics, " · ")) + "\n")
	}

	if len(result.Words) > 0 {
		b.WriteString("\n")
		for i, w := range result.Words {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(wordStyle(w).Render(w.Token))
		}
		b.WriteString("\n")
	}

	if result.Recognized != "" {
		b.WriteString(metricStyle.Render("heard: "+result.Recognized) + "\n")
	}
	if result.RateLimit != "" {
		b.WriteString(progressStyle.Render("rate limit: "+result.RateLimit) + "\n")
	}
	return b.String()
}

func scoreStyle(score float64) lipgloss.Style {
	switch {
	case score >= 80:
		return wordGood.Bold(true)
	case score >= 60:
		return wordOK.Bold(true)
	default:
		return wordBad.Bold(true)
	}
}

func wordStyle(w assess.WordScore) lipgloss.Style {
	if w.ErrorKind == "Omission" {
		return wordBad
	}
	switch {
	case w.Accuracy >= 80:
		return wordGood
	case w.Accuracy >= 60:
		return wordOK
	default:
		return wordBad
	}
}

func levelBar(level float64) string {
	const width = 20
	filled := int(level * 3 * width)
	if filled > width {
		filled = width
	}
	return "▕" + strings.Repeat("█", filled) + strings.Repeat(" ", width-filled) + "▏"
}
