package usecases

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
)

func TestSegment_TwoInstructions(t *testing.T) {
	clauses, err := Segment("FROM alpine:3.14\nRUN echo hi\n")
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(clauses))
	}
	if clauses[0].Content != "FROM alpine:3.14" || !reflect.DeepEqual(clauses[0].LineNumbers, []int{1}) {
		t.Errorf("unexpected first clause: %+v", clauses[0])
	}
	if clauses[1].Content != "RUN echo hi" || !reflect.DeepEqual(clauses[1].LineNumbers, []int{2}) {
		t.Errorf("unexpected second clause: %+v", clauses[1])
	}
}

func TestSegment_LeadingCommentKeepsNumbering(t *testing.T) {
	clauses, err := Segment("# comment\nFROM x\n")
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(clauses) != 1 {
		t.Fatalf("expected 1 clause, got %d", len(clauses))
	}
	if !reflect.DeepEqual(clauses[0].LineNumbers, []int{2}) {
		t.Errorf("expected line numbers [2], got %v", clauses[0].LineNumbers)
	}
	if strings.Contains(clauses[0].Content, "comment") {
		t.Error("comment line leaked into a clause")
	}
}

func TestSegment_ConsecutiveStartersDoNotMerge(t *testing.T) {
	clauses, err := Segment("FROM a\nFROM b\n")
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(clauses))
	}
	for i, c := range clauses {
		if len(c.Lines) != 1 {
			t.Errorf("clause %d: expected a single line, got %d", i, len(c.Lines))
		}
	}
}

func TestSegment_ContinuationBeforeStarter(t *testing.T) {
	clauses, err := Segment("echo hi\nFROM x\n")
	if !errors.Is(err, entities.ErrMalformedScript) {
		t.Fatalf("expected ErrMalformedScript, got %v", err)
	}
	if clauses != nil {
		t.Errorf("expected no clauses, got %d", len(clauses))
	}
	if !strings.Contains(err.Error(), "line 1") {
		t.Errorf("error should name the offending line: %v", err)
	}
}

func TestSegmentLenient_Preamble(t *testing.T) {
	clauses := SegmentLenient("echo hi\nFROM x\n")
	if len(clauses) != 2 {
		t.Fatalf("expected preamble plus FROM, got %d clauses", len(clauses))
	}
	if clauses[0].Content != "echo hi" || clauses[1].Instruction != "FROM" {
		t.Errorf("unexpected clauses: %+v", clauses)
	}
}

func TestSegment_ContinuationLines(t *testing.T) {
	doc := "FROM debian\n\nRUN apt-get update && \\\n    apt-get install -y curl\n# tidy up\n  rm -rf /var/lib/apt/lists/*\nCMD [\"curl\"]"
	clauses, err := Segment(doc)
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(clauses) != 3 {
		t.Fatalf("expected 3 clauses, got %d", len(clauses))
	}
	if !reflect.DeepEqual(clauses[1].LineNumbers, []int{3, 4, 6}) {
		t.Errorf("unexpected RUN line numbers: %v", clauses[1].LineNumbers)
	}
	if !reflect.DeepEqual(clauses[2].LineNumbers, []int{7}) {
		t.Errorf("unexpected CMD line numbers: %v", clauses[2].LineNumbers)
	}
}

func TestSegment_PrefixMatchIsTextual(t *testing.T) {
	clauses, err := Segment("FROM a\nRUNX foo\n")
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(clauses) != 2 {
		t.Fatalf("RUNX should open its own clause, got %d clauses", len(clauses))
	}

	// Lower-case keywords are continuations.
	clauses, err = Segment("FROM a\nrun foo\n")
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(clauses) != 1 {
		t.Errorf("lower-case run should continue FROM, got %d clauses", len(clauses))
	}
}

func TestSegment_IndentedStarter(t *testing.T) {
	clauses, err := Segment("FROM a\n\t  RUN make\n")
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(clauses))
	}
	if clauses[1].Instruction != "RUN" {
		t.Errorf("expected RUN, got %s", clauses[1].Instruction)
	}
}

func TestSegment_CRLF(t *testing.T) {
	clauses, err := Segment("FROM a\r\nRUN b\r\n")
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(clauses) != 2 || clauses[0].Content != "FROM a" {
		t.Errorf("unexpected clauses: %+v", clauses)
	}
}

func TestSegment_Empty(t *testing.T) {
	for _, doc := range []string{"", "\n\n", "# only\n   \n"} {
		clauses, err := Segment(doc)
		if err != nil {
			t.Errorf("%q: unexpected error %v", doc, err)
		}
		if len(clauses) != 0 {
			t.Errorf("%q: expected no clauses, got %d", doc, len(clauses))
		}
	}
}

var segmentCorpus = []string{
	"FROM alpine:3.14\nRUN echo hi\n",
	"# syntax=docker/dockerfile:1\n\nFROM golang:1.22 AS build\nWORKDIR /src\nCOPY . .\nRUN go build \\\n  -o /out/app \\\n  ./cmd/app\n\nFROM gcr.io/distroless/static\nCOPY --from=build /out/app /app\nENTRYPOINT [\"/app\"]\n",
	"FROM python:3.12-slim\nENV PIP_NO_CACHE_DIR=1 \\\n    PYTHONUNBUFFERED=1\n   # indented comment\nRUN pip install flask==3.0.0 gunicorn\nEXPOSE 8000\nHEALTHCHECK CMD curl -f http://localhost:8000/ || exit 1\nUSER nobody\nCMD [\"gunicorn\", \"app:app\"]",
}

// significantLines lists the lines a segmentation must cover, in order.
func significantLines(doc string) []entities.Line {
	var lines []entities.Line
	for i, raw := range strings.Split(doc, "\n") {
		if isSignificant(raw) {
			lines = append(lines, entities.Line{Number: i + 1, Text: raw})
		}
	}
	return lines
}

func TestSegment_CoversSignificantLines(t *testing.T) {
	for _, doc := range segmentCorpus {
		clauses, err := Segment(doc)
		if err != nil {
			t.Fatalf("Segment failed: %v", err)
		}

		var got []entities.Line
		for _, c := range clauses {
			if len(c.Lines) == 0 {
				t.Fatal("empty clause")
			}
			if !IsStarter(c.Lines[0].Text) {
				t.Errorf("clause does not open with a starter: %q", c.Lines[0].Text)
			}
			got = append(got, c.Lines...)
		}

		if want := significantLines(doc); !reflect.DeepEqual(got, want) {
			t.Errorf("lines mismatch\n got: %v\nwant: %v", got, want)
		}
	}
}

func TestSegment_Idempotent(t *testing.T) {
	for _, doc := range segmentCorpus {
		first, err := Segment(doc)
		if err != nil {
			t.Fatalf("Segment failed: %v", err)
		}

		parts := make([]string, len(first))
		for i, c := range first {
			parts[i] = c.Content
		}
		second, err := Segment(strings.Join(parts, "\n"))
		if err != nil {
			t.Fatalf("re-segment failed: %v", err)
		}

		if len(first) != len(second) {
			t.Fatalf("clause count changed: %d -> %d", len(first), len(second))
		}
		for i := range first {
			if first[i].Content != second[i].Content {
				t.Errorf("clause %d boundary changed: %q -> %q", i, first[i].Content, second[i].Content)
			}
		}
	}
}
