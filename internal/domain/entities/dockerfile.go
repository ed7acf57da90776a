package entities

import (
	"strings"
	"time"
)

// Line is one significant source line with its original 1-based number.
type Line struct {
	Number int    `json:"line_number"`
	Text   string `json:"text"`
}

// Clause is a contiguous group of lines anchored by one starter instruction.
// Content, LineNumbers and Instruction are derived once by NewClause.
type Clause struct {
	Lines           []Line              `json:"-"`
	Content         string              `json:"content"`
	LineNumbers     []int               `json:"line_numbers"`
	Instruction     string              `json:"instruction"`
	Recommendations string              `json:"recommendations"`
	Outcomes        []EnrichmentOutcome `json:"-"`
}

// NewClause builds a clause from its lines. Callers guarantee len(lines) > 0.
func NewClause(lines []Line) Clause {
	owned := make([]Line, len(lines))
	copy(owned, lines)

	texts := make([]string, len(owned))
	numbers := make([]int, len(owned))
	for i, l := range owned {
		texts[i] = l.Text
		numbers[i] = l.Number
	}

	var instruction string
	if fields := strings.Fields(owned[0].Text); len(fields) > 0 {
		instruction = strings.ToUpper(fields[0])
	}

	return Clause{
		Lines:       owned,
		Content:     strings.Join(texts, "\n"),
		LineNumbers: numbers,
		Instruction: instruction,
	}
}

// Clone returns a deep copy so concurrent enrichments never share slices.
func (c Clause) Clone() Clause {
	out := c
	out.Lines = append([]Line(nil), c.Lines...)
	out.LineNumbers = append([]int(nil), c.LineNumbers...)
	out.Outcomes = append([]EnrichmentOutcome(nil), c.Outcomes...)
	return out
}

// EnrichmentOutcome is the result of one source for one clause.
type EnrichmentOutcome struct {
	Source  string
	Text    string
	Err     error
	Elapsed time.Duration
}

// OK reports whether the source produced usable text.
func (o EnrichmentOutcome) OK() bool {
	return o.Err == nil
}

// SourceQuery is everything a knowledge source may use to build its query.
type SourceQuery struct {
	Clause     Clause
	Technology string
	BaseImage  string
	Packages   []string
}

// AnalysisResult is the aggregate of one analysis run.
// OptimizedText starts as OriginalText and is only replaced wholesale.
type AnalysisResult struct {
	RunID         string   `json:"run_id,omitempty"`
	Technology    string   `json:"technology,omitempty"`
	OriginalText  string   `json:"original_dockerfile"`
	Clauses       []Clause `json:"clauses"`
	OptimizedText string   `json:"optimized_dockerfile"`
}
