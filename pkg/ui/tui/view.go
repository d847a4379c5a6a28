package tui

import (
	"fmt"
	"strings"
	"time"

	"boorudl/pkg/ui"

	"github.com/charmbracelet/lipgloss"
)

var (
	formatSize     = ui.FormatBytes
	formatDuration = ui.FormatDuration
)

// View renders the dashboard
func (m Model) View() string {
	sections := []string{
		m.renderHeader(),
		m.renderProgress(),
		m.renderStats(),
		m.renderFeed(),
		m.renderFooter(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m Model) renderHeader() string {
	state := m.spinner.View()
	switch {
	case m.finished:
		state = doneStyle.Render("✓")
	case m.quitting:
		state = failedStyle.Render("■")
	}
	return fmt.Sprintf("%s %s %s", titleStyle.Render("boorudl"), siteStyle.Render(m.label), state)
}

func (m Model) renderProgress() string {
	return fmt.Sprintf("%s %s",
		m.progress.ViewAs(m.percent()),
		valueStyle.Render(fmt.Sprintf("%d/%d", m.count, m.maxImages)),
	)
}

func (m Model) renderStats() string {
	stat := func(label string, value interface{}) string {
		return labelStyle.Render(label+":") + " " + valueStyle.Render(fmt.Sprint(value))
	}

	row1 := []string{
		stat("page", m.page),
		stat("new", m.downloaded),
		stat("present", m.present),
		stat("filtered", m.skipped),
		stat("failed", m.failed),
	}
	row2 := []string{
		stat("size", formatSize(m.bytes)),
		stat("rate", fmt.Sprintf("%.1f/min", m.rate())),
		stat("elapsed", formatDuration(time.Since(m.started))),
	}

	return strings.Join(row1, "  ") + "\n" + strings.Join(row2, "  ")
}

func (m Model) renderFeed() string {
	events := m.recentEvents()
	if len(events) == 0 {
		return panelStyle.Render(skippedStyle.Render("waiting for the first page..."))
	}

	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, fmt.Sprintf("%s %s",
			helpStyle.Render(ev.at.Format("15:04:05")),
			eventStyle(ev.kind).Render(ev.text),
		))
	}

	style := panelStyle
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m Model) renderFooter() string {
	if m.showHelp {
		return helpStyle.Render(strings.Join([]string{
			"q / ctrl+c  stop the run (files already written are kept)",
			"s           show or hide filtered posts",
			"?           close help",
		}, "\n"))
	}
	return helpStyle.Render("q quit • s filtered posts • ? help")
}
