package tui

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// Dashboard renders a run in the alternate screen. Its methods match the
// scraper's Reporter and are safe to call from any goroutine.
type Dashboard struct {
	program *tea.Program
	done    chan struct{}
	err     error
}

type settings struct {
	customIO  bool
	in        io.Reader
	out       io.Writer
	altScreen bool
}

// Option configures a Dashboard
type Option func(*settings)

// WithIO replaces the terminal; a nil reader disables keyboard input
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *settings) {
		s.customIO = true
		s.in, s.out = in, out
	}
}

// WithoutAltScreen draws inline instead of in the alternate screen
func WithoutAltScreen() Option {
	return func(s *settings) {
		s.altScreen = false
	}
}

// NewDashboard creates a dashboard for a run. onQuit runs when the user
// quits before the run finishes, typically cancelling the run's context.
func NewDashboard(label string, maxImages int, onQuit func(), opts ...Option) *Dashboard {
	s := settings{altScreen: true}
	for _, opt := range opts {
		opt(&s)
	}

	var programOpts []tea.ProgramOption
	if s.customIO {
		programOpts = append(programOpts, tea.WithInput(s.in), tea.WithOutput(s.out))
	}
	if s.altScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}

	return &Dashboard{
		program: tea.NewProgram(NewModel(label, maxImages, onQuit), programOpts...),
		done:    make(chan struct{}),
	}
}

// Start runs the program in the background
func (d *Dashboard) Start() {
	go func() {
		defer close(d.done)
		_, d.err = d.program.Run()
	}()
}

// Finish stops the program and waits for the terminal to be restored
func (d *Dashboard) Finish() error {
	d.program.Send(finishedMsg{})
	<-d.done
	return d.err
}

func (d *Dashboard) PageStarted(page int) {
	d.program.Send(pageMsg{page: page})
}

func (d *Dashboard) Skipped(postID, reason string) {
	d.program.Send(skippedMsg{id: postID, reason: reason})
}

func (d *Dashboard) AlreadyPresent(postID string, count int) {
	d.program.Send(presentMsg{id: postID, count: count})
}

func (d *Dashboard) Downloaded(postID string, size int64, count int) {
	d.program.Send(downloadedMsg{id: postID, size: size, count: count})
}

func (d *Dashboard) Failed(postID string, err error) {
	d.program.Send(failedMsg{id: postID, err: err})
}
