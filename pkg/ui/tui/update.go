package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Messages sent by Dashboard, one per Reporter event

type pageMsg struct{ page int }

type skippedMsg struct{ id, reason string }

type presentMsg struct {
	id    string
	count int
}

type downloadedMsg struct {
	id    string
	size  int64
	count int
}

type failedMsg struct {
	id  string
	err error
}

// finishedMsg ends the program once the run is over
type finishedMsg struct{}

// Update applies one message to the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = barWidth(msg.Width)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pageMsg:
		m.page = msg.page
		m.addEvent(eventPage, "page %d", msg.page)
		return m, nil

	case skippedMsg:
		m.skipped++
		m.addEvent(eventSkipped, "skip %s: %s", msg.id, msg.reason)
		return m, nil

	case presentMsg:
		m.present++
		m.count = msg.count
		m.addEvent(eventPresent, "%s already present", msg.id)
		return m, nil

	case downloadedMsg:
		m.downloaded++
		m.count = msg.count
		m.bytes += msg.size
		m.addEvent(eventDownloaded, "%s • %s", msg.id, formatSize(msg.size))
		return m, nil

	case failedMsg:
		m.failed++
		m.addEvent(eventFailed, "%s: %v", msg.id, msg.err)
		return m, nil

	case finishedMsg:
		m.finished = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c", "esc":
		if !m.finished && !m.quitting && m.onQuit != nil {
			m.onQuit()
		}
		m.quitting = true
		return m, tea.Quit

	case "s":
		m.showSkips = !m.showSkips

	case "?":
		m.showHelp = !m.showHelp
	}

	return m, nil
}

func barWidth(termWidth int) int {
	w := termWidth - 8
	if w > maxBarWidth {
		w = maxBarWidth
	}
	if w < 10 {
		w = 10
	}
	return w
}
