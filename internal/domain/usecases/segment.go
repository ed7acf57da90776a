package usecases

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
)

// reservedInstructions are the Dockerfile keywords that open a new clause.
// Matching is a case-sensitive textual prefix test, so "RUNX" also opens a clause.
var reservedInstructions = []string{
	"FROM", "RUN", "CMD", "LABEL", "EXPOSE", "ENV", "ADD",
	"COPY", "ENTRYPOINT", "VOLUME", "USER", "WORKDIR", "ARG",
	"ONBUILD", "HEALTHCHECK", "SHELL", "STOPSIGNAL",
}

// IsStarter reports whether a raw line opens a new clause.
func IsStarter(line string) bool {
	trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
	for _, kw := range reservedInstructions {
		if strings.HasPrefix(trimmed, kw) {
			return true
		}
	}
	return false
}

// isSignificant reports whether a line takes part in any clause.
func isSignificant(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && !strings.HasPrefix(trimmed, "#")
}

// Segment splits a Dockerfile into clauses in document order.
// Blank and comment lines are dropped but keep their place in the numbering.
// A continuation line before any instruction yields ErrMalformedScript.
func Segment(text string) ([]entities.Clause, error) {
	return segment(text, false)
}

// SegmentLenient behaves like Segment but groups leading continuation lines
// into an implicit preamble clause instead of failing.
func SegmentLenient(text string) []entities.Clause {
	clauses, _ := segment(text, true)
	return clauses
}

func segment(text string, lenient bool) ([]entities.Clause, error) {
	var clauses []entities.Clause
	var current []entities.Line

	for i, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		if !isSignificant(raw) {
			continue
		}
		line := entities.Line{Number: i + 1, Text: raw}

		if IsStarter(raw) {
			if len(current) > 0 {
				clauses = append(clauses, entities.NewClause(current))
				current = nil
			}
		} else if len(current) == 0 && !lenient {
			return nil, fmt.Errorf("%w: line %d continues no instruction: %q", entities.ErrMalformedScript, line.Number, strings.TrimSpace(raw))
		}
		current = append(current, line)
	}

	if len(current) > 0 {
		clauses = append(clauses, entities.NewClause(current))
	}
	return clauses, nil
}
