package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
	"github.com/ubuitrago/ContainerShip/internal/domain/usecases"
)

// eventMsg carries one pipeline event into the model.
type eventMsg entities.ProgressEvent

// streamClosedMsg reports that the pipeline closed its channel.
type streamClosedMsg struct{}

// Model shows a live analysis: one row per clause, then the final report.
type Model struct {
	original string
	events   <-chan entities.ProgressEvent
	cancel   context.CancelFunc
	spinner  spinner.Model

	received []entities.ProgressEvent
	clauses  []entities.Clause
	enriched map[int]bool
	tech     string
	rewrite  bool

	result *entities.AnalysisResult
	err    error
	done   bool
}

// NewModel watches events for the analysis of original. cancel is called
// when the user quits early.
func NewModel(original string, events <-chan entities.ProgressEvent, cancel context.CancelFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = titleStyle
	return Model{
		original: original,
		events:   events,
		cancel:   cancel,
		spinner:  s,
		enriched: make(map[int]bool),
	}
}

// Result is the collected analysis once the stream completed, or
// context.Canceled when the user quit first.
func (m Model) Result() (*entities.AnalysisResult, error) {
	if !m.done {
		return nil, context.Canceled
	}
	return m.result, m.err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(events <-chan entities.ProgressEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		ev := entities.ProgressEvent(msg)
		m.apply(ev)
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.finish()
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) apply(ev entities.ProgressEvent) {
	m.received = append(m.received, ev)
	switch ev.Kind {
	case entities.EventStarted:
		m.tech = ev.Technology
	case entities.EventClauseSkeleton:
		m.clauses = ev.Clauses
	case entities.EventClauseEnriched:
		m.enriched[ev.Index] = true
	case entities.EventRewritten:
		m.rewrite = true
	}
}

func (m *Model) finish() {
	m.done = true
	replay := make(chan entities.ProgressEvent, len(m.received))
	for _, ev := range m.received {
		replay <- ev
	}
	close(replay)
	m.result, m.err = usecases.Collect(m.original, replay)
}

func (m Model) View() string {
	if m.done {
		if m.err != nil {
			return errorStyle.Render("Analysis failed: ") + m.err.Error() + "\n"
		}
		return RenderReport(m.result)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Analyzing Dockerfile"))
	if m.tech != "" {
		b.WriteString(mutedStyle.Render(" · " + m.tech))
	}
	b.WriteString("\n\n")

	for i, clause := range m.clauses {
		marker := m.spinner.View()
		if m.enriched[i] {
			marker = doneStyle.Render("✓")
		}
		fmt.Fprintf(&b, " %s %-10s %s\n", marker, clause.Instruction, mutedStyle.Render(lineRange(clause.LineNumbers)))
	}

	switch {
	case len(m.clauses) == 0:
		fmt.Fprintf(&b, " %s segmenting\n", m.spinner.View())
	case len(m.enriched) == len(m.clauses) && !m.rewrite:
		fmt.Fprintf(&b, "\n %s writing optimized Dockerfile\n", m.spinner.View())
	}

	b.WriteString(mutedStyle.Render("\nq to cancel"))
	return b.String()
}
