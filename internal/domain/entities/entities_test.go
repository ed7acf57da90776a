package entities

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewClause_DerivedFields(t *testing.T) {
	clause := NewClause([]Line{
		{Number: 3, Text: "RUN apt-get update && \\"},
		{Number: 4, Text: "    apt-get install -y curl"},
	})

	if clause.Content != "RUN apt-get update && \\\n    apt-get install -y curl" {
		t.Errorf("unexpected content: %q", clause.Content)
	}
	if len(clause.LineNumbers) != 2 || clause.LineNumbers[0] != 3 || clause.LineNumbers[1] != 4 {
		t.Errorf("unexpected line numbers: %v", clause.LineNumbers)
	}
	if clause.Instruction != "RUN" {
		t.Errorf("expected RUN instruction, got %s", clause.Instruction)
	}
}

func TestNewClause_OwnsLines(t *testing.T) {
	lines := []Line{{Number: 1, Text: "FROM alpine"}}
	clause := NewClause(lines)
	lines[0].Text = "mutated"

	if clause.Lines[0].Text != "FROM alpine" {
		t.Error("clause should not share the caller's slice")
	}
}

func TestClause_CloneIsIndependent(t *testing.T) {
	clause := NewClause([]Line{{Number: 1, Text: "FROM alpine"}})
	clone := clause.Clone()
	clone.LineNumbers[0] = 99
	clone.Recommendations = "changed"

	if clause.LineNumbers[0] != 1 {
		t.Error("clone should not alias line numbers")
	}
	if clause.Recommendations != "" {
		t.Error("clone should not alias recommendations")
	}
}

func TestEnrichmentOutcome_OK(t *testing.T) {
	if !(EnrichmentOutcome{Source: "local", Text: "ok"}).OK() {
		t.Error("outcome without error should be OK")
	}
	if (EnrichmentOutcome{Source: "web", Err: ErrSourceUnavailable}).OK() {
		t.Error("outcome with error should not be OK")
	}
}

func TestProgressEvent_Terminal(t *testing.T) {
	cases := []struct {
		ev   ProgressEvent
		want bool
	}{
		{ProgressEvent{Kind: EventCompleted}, true},
		{ProgressEvent{Kind: EventFailed, Stage: StageSegment}, true},
		{ProgressEvent{Kind: EventFailed, Stage: StageRewrite}, false},
		{ProgressEvent{Kind: EventClauseEnriched}, false},
	}
	for _, c := range cases {
		if got := c.ev.Terminal(); got != c.want {
			t.Errorf("%s/%s: terminal = %v, want %v", c.ev.Kind, c.ev.Stage, got, c.want)
		}
	}
}

func TestProgressEvent_JSONTag(t *testing.T) {
	clause := NewClause([]Line{{Number: 2, Text: "RUN echo hi"}})
	data, err := json.Marshal(ProgressEvent{Kind: EventClauseEnriched, Index: 0, Clause: &clause})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	s := string(data)
	if !strings.Contains(s, `"type":"clause_enriched"`) {
		t.Errorf("missing type tag: %s", s)
	}
	if !strings.Contains(s, `"line_numbers":[2]`) {
		t.Errorf("missing line numbers: %s", s)
	}
}

func TestProgressEvent_JSONFieldsPerKind(t *testing.T) {
	cases := []struct {
		ev      ProgressEvent
		want    []string
		notWant []string
	}{
		{
			ev:      ProgressEvent{Kind: EventClauseSkeleton, RunID: "r1"},
			want:    []string{`"clauses":[]`},
			notWant: []string{`"index"`},
		},
		{
			ev:   ProgressEvent{Kind: EventClauseEnriched, Index: 0, Clause: &Clause{}},
			want: []string{`"index":0`},
		},
		{
			ev:      ProgressEvent{Kind: EventStarted, RunID: "r1", Technology: "Go"},
			notWant: []string{`"index"`, `"clauses"`},
		},
		{
			ev:      ProgressEvent{Kind: EventCompleted, RunID: "r1"},
			notWant: []string{`"index"`, `"clauses"`},
		},
	}
	for _, c := range cases {
		data, err := json.Marshal(c.ev)
		if err != nil {
			t.Fatalf("%s: marshal failed: %v", c.ev.Kind, err)
		}
		s := string(data)
		for _, w := range c.want {
			if !strings.Contains(s, w) {
				t.Errorf("%s: expected %s in %s", c.ev.Kind, w, s)
			}
		}
		for _, w := range c.notWant {
			if strings.Contains(s, w) {
				t.Errorf("%s: unexpected %s in %s", c.ev.Kind, w, s)
			}
		}
	}

	var back ProgressEvent
	if err := json.Unmarshal([]byte(`{"type":"clause_enriched","index":3}`), &back); err != nil || back.Index != 3 {
		t.Errorf("decode: %+v, %v", back, err)
	}
}
