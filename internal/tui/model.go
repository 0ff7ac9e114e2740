// Package tui is an interactive terminal front end over text search.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"shopvision/internal/fusion"
	"shopvision/internal/models"
	"shopvision/internal/ranker"
)

// Searcher is the subset of the search core the UI needs.
type Searcher interface {
	SearchByText(ctx context.Context, query string) (*models.AggregationResult, error)
}

// DefaultSearchTimeout bounds one search started from the UI.
const DefaultSearchTimeout = 15 * time.Second

type resultMsg struct {
	err    error
	result *models.AggregationResult
	query  string
}

// Model is the Bubble Tea model for the search UI.
type Model struct {
	searcher  Searcher
	result    *models.AggregationResult
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	summary   string
	status    string
	lastQuery string
	cursor    int
	timeout   time.Duration
	searching bool
	ready     bool
}

// New creates the model. Summary is shown under the header.
func New(searcher Searcher, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "What are you looking for?"
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		searcher: searcher,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  summary,
		status:   "Type a product and press Enter.",
		timeout:  DefaultSearchTimeout,
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) search(query string) tea.Cmd {
	searcher, timeout := m.searcher, m.timeout

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		result, err := searcher.SearchByText(ctx, query)

		return resultMsg{query: query, result: result, err: err}
	}
}

// Update handles key, window and search completion events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 3 + qh + 1
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderCurrent())

		return m, nil
	case resultMsg:
		m.searching = false

		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.result = nil
		} else {
			m.result = msg.result
			m.cursor = 0
			m.lastQuery = msg.query
			m.status = statusLine(msg.query, msg.result)
		}

		m.viewport.SetContent(m.renderCurrent())

		return m, nil
	case spinner.TickMsg:
		if !m.searching {
			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}

		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.searching {
				return m, nil
			}

			m.searching = true
			m.status = fmt.Sprintf("Searching for %q...", q)

			return m, tea.Batch(m.spinner.Tick, m.search(q))
		case "down":
			if n := m.listingCount(); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderCurrent())

				return m, nil
			}
		case "up":
			if n := m.listingCount(); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderCurrent())

				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := headerStyle.Render("shopvision")
	summary := dimStyle.Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())

	status := statusStyle.Render(m.status)
	if m.searching {
		status = m.spinner.View() + " " + status
	}

	results := resultBoxStyle.Render(m.viewport.View())

	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) listingCount() int {
	if m.result == nil {
		return 0
	}

	return len(m.result.Listings)
}

func statusLine(query string, result *models.AggregationResult) string {
	s := fmt.Sprintf("%d listings for %q in %d ms", len(result.Listings), query, result.TotalLatencyMs)
	if failed := result.FailedSources(); len(failed) > 0 {
		s += " (unavailable: " + strings.Join(failed, ", ") + ")"
	}

	return s
}

func (m Model) renderCurrent() string {
	if m.listingCount() == 0 {
		if m.result != nil {
			return "No listings found."
		}

		return "No results yet."
	}

	l := m.result.Listings[m.cursor]

	var sb strings.Builder

	fmt.Fprintf(&sb, "Listing %d/%d  [%s]\n\n", m.cursor+1, len(m.result.Listings), l.Source)
	sb.WriteString(highlightTitle(l.Title, m.lastQuery))
	sb.WriteString("\n\n")

	if l.Price != nil {
		fmt.Fprintf(&sb, "Price:   %s\n", l.Price)
	}

	if l.Rating != nil {
		fmt.Fprintf(&sb, "Rating:  %.1f", *l.Rating)

		if l.ReviewCount != nil {
			fmt.Fprintf(&sb, " (%d reviews)", *l.ReviewCount)
		}

		sb.WriteString("\n")
	}

	sb.WriteString(dimStyle.Render(l.Link))

	if a := ranker.AnalyzePrices(m.result.Listings); a != nil && a.Count > 1 {
		fmt.Fprintf(&sb, "\n\nBest price %s %.2f at %s", a.Currency, a.Min, a.Best.Source)
	}

	return sb.String()
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// highlightTitle emphasizes title words that appear in the query.
func highlightTitle(title, query string) string {
	terms := make(map[string]bool)
	for _, t := range strings.Fields(fusion.NormalizeQuery(query)) {
		terms[t] = true
	}

	if len(terms) == 0 {
		return title
	}

	words := strings.Fields(title)
	for i, w := range words {
		if terms[fusion.NormalizeQuery(w)] {
			words[i] = highlightStyle.Render(w)
		}
	}

	return strings.Join(words, " ")
}
