// Package tui renders analysis progress and reports in the terminal.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	codeStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5B8DEF")).
			Padding(0, 1)
)

// RenderReport formats a finished analysis for the terminal.
func RenderReport(result *entities.AnalysisResult) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Dockerfile analysis"))
	if result.Technology != "" {
		b.WriteString(mutedStyle.Render(" · " + result.Technology))
	}
	b.WriteString("\n\n")

	for i, clause := range result.Clauses {
		fmt.Fprintf(&b, "%s %s\n", headingStyle.Render(fmt.Sprintf("[%d] %s", i+1, clause.Instruction)), mutedStyle.Render(lineRange(clause.LineNumbers)))
		b.WriteString(codeStyle.Render(clause.Content))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(clause.Recommendations))
		b.WriteString("\n\n")
	}

	b.WriteString(titleStyle.Render("Optimized Dockerfile"))
	b.WriteString("\n")
	b.WriteString(codeStyle.Render(strings.TrimRight(result.OptimizedText, "\n")))
	b.WriteString("\n")
	return b.String()
}

func lineRange(numbers []int) string {
	switch len(numbers) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("line %d", numbers[0])
	default:
		return fmt.Sprintf("lines %d-%d", numbers[0], numbers[len(numbers)-1])
	}
}
