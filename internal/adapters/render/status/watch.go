package status

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bnema/octoflex/internal/application"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// OverviewSource returns the overviews to display; it must not block on the network.
type OverviewSource func() ([]application.AccountOverview, error)

type snapshotUpdatedMsg struct{}

type updatesClosedMsg struct{}

type clockTickMsg time.Time

type fetchDoneMsg struct {
	err error
}

// watchModel redraws overviews as snapshots arrive. With fetch set it only
// shows the spinner until that single fetch returns.
type watchModel struct {
	source    OverviewSource
	updates   <-chan struct{}
	now       func() time.Time
	opts      RenderOptions
	styles    styles
	spinner   spinner.Model
	overviews []application.AccountOverview
	err       error

	fetch     tea.Cmd
	label     string
	fetchDone bool
}

func newSpinner() spinner.Model {
	return spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)
}

func newWatchModel(source OverviewSource, updates <-chan struct{}, now func() time.Time, staleAfter time.Duration) watchModel {
	m := watchModel{
		source:  source,
		updates: updates,
		now:     now,
		opts:    RenderOptions{StaleAfter: staleAfter},
		styles:  newStyles(),
		spinner: newSpinner(),
	}
	m.reload()

	return m
}

func newFetchModel(label string, fetch tea.Cmd) watchModel {
	return watchModel{
		styles:  newStyles(),
		spinner: newSpinner(),
		fetch:   fetch,
		label:   label,
	}
}

func (m watchModel) Init() tea.Cmd {
	if m.fetch != nil {
		return tea.Batch(m.spinner.Tick, m.fetch)
	}

	return tea.Batch(m.spinner.Tick, m.waitForUpdate(), tickClock())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		if len(m.overviews) > 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case snapshotUpdatedMsg:
		m.reload()
		return m, m.waitForUpdate()
	case clockTickMsg:
		m.opts.Now = time.Time(msg)
		return m, tickClock()
	case updatesClosedMsg:
		return m, tea.Quit
	case fetchDoneMsg:
		m.fetchDone = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m watchModel) View() string {
	if m.fetch != nil {
		if m.fetchDone {
			return ""
		}
		return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
	}

	if len(m.overviews) == 0 {
		label := "Waiting for the first snapshot..."
		if m.err != nil {
			label = fmt.Sprintf("Waiting for the first snapshot (%v)", m.err)
		}
		return fmt.Sprintf("%s %s\n", m.spinner.View(), label)
	}

	opts := m.opts
	if opts.Now.IsZero() {
		opts.Now = m.now()
	}

	overviews, stale := orderOverviews(m.overviews, opts)
	view := renderView(overviews, opts, m.styles) + "\n"
	if notice := staleNotice(stale, len(overviews), m.styles); notice != "" {
		view += notice + "\n"
	}

	return view + m.styles.empty.Render("press q to quit") + "\n"
}

func (m *watchModel) reload() {
	overviews, err := m.source()
	m.err = err
	if err == nil {
		m.overviews = overviews
	}
	m.opts.Now = m.now()
}

func (m watchModel) waitForUpdate() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return updatesClosedMsg{}
		}
		return snapshotUpdatedMsg{}
	}
}

func tickClock() tea.Cmd {
	return tea.Tick(30*time.Second, func(t time.Time) tea.Msg {
		return clockTickMsg(t)
	})
}

// Watch redraws the overview every time updates signals a new snapshot, until
// ctx is cancelled, updates is closed or the user quits.
func Watch(ctx context.Context, input io.Reader, output io.Writer, source OverviewSource, updates <-chan struct{}, staleAfter time.Duration) error {
	p := tea.NewProgram(
		newWatchModel(source, updates, time.Now, staleAfter),
		tea.WithInput(input),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}

	return err
}

// Fetch runs fetch while drawing a spinner with label on output and returns
// fetch's error.
func Fetch(ctx context.Context, output io.Writer, label string, fetch func(context.Context) error) error {
	fetchCmd := func() tea.Msg {
		return fetchDoneMsg{err: fetch(ctx)}
	}

	p := tea.NewProgram(
		newFetchModel(label, fetchCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(watchModel)
	if !ok {
		return ErrUnexpectedRenderModel
	}

	return result.err
}
