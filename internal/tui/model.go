// Package tui is the terminal front end of the dataset viewer. It renders a
// viewer.Session and turns key presses into viewer actions.
//
// Every transition goes through viewer.Reduce on bubbletea's update loop.
// Effects run as tea.Cmds and their completions come back as messages, so
// no state is shared with the goroutines that do the I/O.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/JonMunkholm/dataview/internal/viewer"
)

// loadMoreThreshold is how close to the last loaded row the table cursor
// gets before the next page is requested.
const loadMoreThreshold = 10

// chromeHeight is the number of lines around the table body.
const chromeHeight = 14

type focus int

const (
	focusInput focus = iota
	focusTable
)

// actionMsg carries a viewer action through the bubbletea loop.
type actionMsg struct{ action viewer.Action }

// Options configures a Model.
type Options struct {
	PageSize int
	Opener   viewer.Opener
	Logger   *slog.Logger
}

// Model is the bubbletea model of the viewer.
type Model struct {
	session viewer.Session
	gw      viewer.Gateway
	open    viewer.Opener
	logger  *slog.Logger

	input   textinput.Model
	table   table.Model
	spinner spinner.Model
	help    help.Model

	focus     focus
	column    int
	inputErr  string
	width     int
	height    int
	lastShape string
}

// New creates a Model backed by gw.
func New(gw viewer.Gateway, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "/path/to/data.csv"
	ti.Prompt = "File: "
	ti.CharLimit = 4096
	ti.Width = 60
	ti.Focus()

	t := table.New(table.WithHeight(15))
	t.SetStyles(tableStyles())

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	open := opts.Opener
	if open == nil {
		open = viewer.OpenFile
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return Model{
		session: viewer.NewSession(opts.PageSize),
		gw:      gw,
		open:    open,
		logger:  logger,
		input:   ti,
		table:   t,
		spinner: sp,
		help:    help.New(),
	}
}

// Session returns the current view state.
func (m Model) Session() viewer.Session { return m.session }

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		func() tea.Msg { return actionMsg{viewer.Mount{}} },
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.table.SetWidth(msg.Width - 4)
		m.table.SetHeight(max(msg.Height-chromeHeight, 3))
		return m, nil

	case actionMsg:
		return m.apply(msg.action)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.focus == focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.ForceQ):
		return m, tea.Quit
	case key.Matches(msg, keys.Focus):
		m.toggleFocus()
		return m, nil
	case key.Matches(msg, keys.Upload):
		return m.apply(viewer.Upload{})
	case key.Matches(msg, keys.Remove):
		m.input.Reset()
		m.inputErr = ""
		return m.apply(viewer.RemoveFile{})
	case key.Matches(msg, keys.Load):
		// Also retries a failed resume, which leaves no rows to scroll.
		return m.apply(viewer.LoadMore{})
	}

	if m.focus == focusInput {
		if key.Matches(msg, keys.Submit) {
			return m.submitPath()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Left):
		m.moveColumn(-1)
		return m, nil
	case key.Matches(msg, keys.Right):
		m.moveColumn(1)
		return m, nil
	case key.Matches(msg, keys.Cycle):
		return m.cycleType()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	if m.nearBottom() && m.session.CanLoadMore() {
		next, load := m.apply(viewer.LoadMore{})
		return next, tea.Batch(cmd, load)
	}
	return m, cmd
}

// submitPath stages the typed path and uploads it.
func (m Model) submitPath() (tea.Model, tea.Cmd) {
	path := strings.TrimSpace(m.input.Value())
	if path == "" {
		return m.apply(viewer.Upload{})
	}

	info, err := os.Stat(path)
	switch {
	case err != nil:
		m.inputErr = fmt.Sprintf("Cannot open %s: %v", path, err)
		return m, nil
	case info.IsDir():
		m.inputErr = fmt.Sprintf("%s is a directory.", path)
		return m, nil
	}
	m.inputErr = ""
	m.column = 0

	m, selectCmd := m.apply(viewer.SelectFile{File: viewer.FileRef{
		Name: filepath.Base(path),
		Path: path,
		Size: info.Size(),
	}})
	m, uploadCmd := m.apply(viewer.Upload{})
	m.table.SetCursor(0)
	return m, tea.Batch(selectCmd, uploadCmd)
}

func (m *Model) toggleFocus() {
	if m.focus == focusInput {
		m.focus = focusTable
		m.input.Blur()
		m.table.Focus()
		return
	}
	m.focus = focusInput
	m.table.Blur()
	m.input.Focus()
}

func (m *Model) moveColumn(delta int) {
	n := m.session.Schema.Len()
	if n == 0 {
		return
	}
	m.column = (m.column + delta + n) % n
	m.syncTable()
}

func (m Model) cycleType() (tea.Model, tea.Cmd) {
	cols := m.session.Schema.Columns()
	if m.column >= len(cols) {
		return m, nil
	}
	col := cols[m.column]
	return m.apply(viewer.OverrideType{Column: col.Name, Type: col.Type.Next()})
}

func (m Model) nearBottom() bool {
	n := len(m.session.Rows)
	return n > 0 && m.table.Cursor() >= n-loadMoreThreshold
}

// apply reduces a into the session and starts the effects it asks for.
func (m Model) apply(a viewer.Action) (Model, tea.Cmd) {
	next, effects := viewer.Reduce(m.session, a)
	m.session = next
	m.syncTable()

	cmds := make([]tea.Cmd, 0, len(effects))
	for _, e := range effects {
		cmds = append(cmds, m.execute(e))
	}
	return m, tea.Batch(cmds...)
}

// execute wraps an effect in a command that reports its completion.
func (m Model) execute(e viewer.Effect) tea.Cmd {
	gw, open, logger := m.gw, m.open, m.logger
	return func() tea.Msg {
		start := time.Now()
		a := viewer.Execute(context.Background(), gw, open, e)
		logger.Debug("effect finished",
			"effect", fmt.Sprintf("%T", e),
			"result", fmt.Sprintf("%T", a),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return actionMsg{a}
	}
}
