package status

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/bnema/octoflex/internal/application"
	"github.com/bnema/octoflex/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type renderReadyMsg struct{}

// model renders one batch of overviews: accounts in number order, followed by
// a notice naming the accounts whose snapshot is stale.
type model struct {
	overviews []application.AccountOverview
	opts      RenderOptions
	styles    styles
	stale     []domain.AccountNumber
	output    string
}

func newModel(overviews []application.AccountOverview, opts RenderOptions) model {
	return model{
		overviews: overviews,
		opts:      opts,
		styles:    newStyles(),
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		return renderReadyMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case renderReadyMsg:
		m.overviews, m.stale = orderOverviews(m.overviews, m.opts)
		m.output = renderView(m.overviews, m.opts, m.styles)
		if notice := staleNotice(m.stale, len(m.overviews), m.styles); notice != "" {
			m.output += "\n" + notice
		}
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m model) View() string {
	return m.output
}

// orderOverviews returns a copy sorted by account number and the accounts
// whose snapshot is older than opts.StaleAfter at opts.Now.
func orderOverviews(overviews []application.AccountOverview, opts RenderOptions) ([]application.AccountOverview, []domain.AccountNumber) {
	ordered := append([]application.AccountOverview(nil), overviews...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Account < ordered[j].Account
	})

	var stale []domain.AccountNumber
	if opts.Now.IsZero() || opts.StaleAfter <= 0 {
		return ordered, nil
	}
	for _, overview := range ordered {
		if overview.FetchedAt.IsZero() || opts.Now.Sub(overview.FetchedAt) > opts.StaleAfter {
			stale = append(stale, overview.Account)
		}
	}

	return ordered, stale
}

func staleNotice(stale []domain.AccountNumber, total int, s styles) string {
	if len(stale) == 0 {
		return ""
	}

	names := make([]string, 0, len(stale))
	for _, account := range stale {
		names = append(names, account.String())
	}

	return s.warning.Render(fmt.Sprintf("%d of %d accounts stale: %s", len(stale), total, strings.Join(names, ", ")))
}

func Render(overviews []application.AccountOverview, opts RenderOptions) (string, error) {
	p := tea.NewProgram(
		newModel(overviews, opts),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(model)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}
