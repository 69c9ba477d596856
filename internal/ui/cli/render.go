package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"structuredness/internal/core/ports"
	"structuredness/internal/data/history"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	numberStyle = cellStyle.Align(lipgloss.Right)

	scoreStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#10B981"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B"))
)

// formatScore prints the shortest representation that round-trips.
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func renderReport(w io.Writer, r ports.RunReport) error {
	scope := r.Endpoint
	if r.Graph != "" {
		scope += " <" + r.Graph + ">"
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TYPE", "|P|", "I", "O", "COVERAGE", "WEIGHT", "CONTRIBUTION").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return cellStyle
			default:
				return numberStyle
			}
		})
	for _, ts := range r.Types {
		t.Row(
			ts.Type,
			strconv.Itoa(ts.Predicates),
			strconv.Itoa(ts.Instances),
			strconv.Itoa(ts.Occurrences),
			formatRatio(ts.Coverage),
			formatRatio(ts.Weight),
			formatRatio(ts.Contribution),
		)
	}

	_, err := fmt.Fprintf(w, "%s\n%s\n%s %s\n%s\n",
		titleStyle.Render("Structuredness of "+scope),
		t.Render(),
		"score:",
		scoreStyle.Render(formatScore(r.Score)),
		statusStyle.Render(fmt.Sprintf("%d types, W=%s, run %s in %s",
			len(r.Types), formatScore(r.WeightSum), r.RunID, r.Duration.Round(time.Millisecond))),
	)
	return err
}

func renderHistory(w io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, statusStyle.Render("no runs recorded"))
		return err
	}

	deltas := make(map[string]history.TrendPoint, len(runs))
	for _, p := range history.BuildTrend(runs) {
		deltas[p.RunID] = p
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STARTED", "ENDPOINT", "GRAPH", "SCORE", "DELTA", "TYPES", "RUN").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 3 || col == 4 || col == 5 {
				return numberStyle
			}
			return cellStyle
		})
	for _, run := range runs {
		graph := run.Graph
		if graph == "" {
			graph = "-"
		}
		t.Row(
			run.StartedAt.Format(time.RFC3339),
			run.Endpoint,
			graph,
			formatRatio(run.Score),
			strconv.FormatFloat(deltas[run.ID].Delta, 'f', 4, 64),
			strconv.Itoa(run.TypeCount),
			run.ID,
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// renderRun prints the stored per-type breakdown of one saved run.
func renderRun(w io.Writer, run history.Run) error {
	scope := run.Endpoint
	if run.Graph != "" {
		scope += " <" + run.Graph + ">"
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TYPE", "|P|", "I", "O", "COVERAGE", "WEIGHT").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return cellStyle
			default:
				return numberStyle
			}
		})
	for _, tr := range run.Types {
		t.Row(
			tr.Type,
			strconv.Itoa(tr.Predicates),
			strconv.Itoa(tr.Instances),
			strconv.Itoa(tr.Occurrences),
			formatRatio(tr.Coverage),
			formatRatio(tr.Weight),
		)
	}

	_, err := fmt.Fprintf(w, "%s\n%s\n%s %s\n%s\n",
		titleStyle.Render("Run "+run.ID+" on "+scope),
		t.Render(),
		"score:",
		scoreStyle.Render(formatScore(run.Score)),
		statusStyle.Render(fmt.Sprintf("%d types, %s mode, batch=%t, started %s",
			run.TypeCount, run.OccurrenceMode, run.Batch, run.StartedAt.Format(time.RFC3339))),
	)
	return err
}
