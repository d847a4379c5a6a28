package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	maxEvents     = 200
	visibleEvents = 10
	maxBarWidth   = 60
)

type eventKind int

const (
	eventPage eventKind = iota
	eventDownloaded
	eventPresent
	eventSkipped
	eventFailed
)

// event is one line of the activity feed
type event struct {
	kind eventKind
	at   time.Time
	text string
}

// Model is the bubbletea model of a download run. All state changes happen
// in Update on the program goroutine.
type Model struct {
	label     string
	maxImages int
	started   time.Time

	spinner  spinner.Model
	progress progress.Model

	page       int
	count      int
	downloaded int
	present    int
	skipped    int
	failed     int
	bytes      int64

	events    []event
	showSkips bool
	showHelp  bool

	width    int
	finished bool
	quitting bool

	// onQuit runs when the user quits before the run finishes
	onQuit func()
}

// NewModel creates the model for a run collecting maxImages images from label
func NewModel(label string, maxImages int, onQuit func()) Model {
	return Model{
		label:     label,
		maxImages: maxImages,
		started:   time.Now(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(accent)),
		),
		progress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
		),
		onQuit: onQuit,
	}
}

// Init starts the spinner
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *Model) addEvent(kind eventKind, format string, args ...interface{}) {
	m.events = append(m.events, event{kind: kind, at: time.Now(), text: fmt.Sprintf(format, args...)})
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
}

// recentEvents returns the newest feed lines, hiding skips unless enabled
func (m Model) recentEvents() []event {
	var out []event
	for i := len(m.events) - 1; i >= 0 && len(out) < visibleEvents; i-- {
		if m.events[i].kind == eventSkipped && !m.showSkips {
			continue
		}
		out = append(out, m.events[i])
	}

	// oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// percent is the share of the image budget collected so far
func (m Model) percent() float64 {
	if m.maxImages <= 0 {
		return 1
	}
	p := float64(m.count) / float64(m.maxImages)
	if p > 1 {
		return 1
	}
	return p
}

// rate is collected images per minute
func (m Model) rate() float64 {
	elapsed := time.Since(m.started)
	if elapsed <= 0 {
		return 0
	}
	return float64(m.count) / elapsed.Minutes()
}
