package entities

import "encoding/json"

// EventKind tags a ProgressEvent variant.
type EventKind string

const (
	EventStarted        EventKind = "started"
	EventClauseSkeleton EventKind = "clause_skeleton"
	EventClauseEnriched EventKind = "clause_enriched"
	EventRewritten      EventKind = "rewritten"
	EventFailed         EventKind = "failed"
	EventCompleted      EventKind = "completed"
)

// Pipeline stages reported by failed events.
const (
	StageSegment = "segment"
	StageEnrich  = "enrich"
	StageRewrite = "rewrite"
)

// ProgressEvent is one unit of the ordered streaming protocol.
// Only the fields relevant to Kind are populated.
type ProgressEvent struct {
	Kind          EventKind `json:"type"`
	RunID         string    `json:"run_id,omitempty"`
	Technology    string    `json:"technology,omitempty"`
	Clauses       []Clause  `json:"clauses,omitempty"`
	Index         int       `json:"index"`
	Clause        *Clause   `json:"clause,omitempty"`
	OptimizedText string    `json:"optimized_dockerfile,omitempty"`
	Stage         string    `json:"stage,omitempty"`
	Message       string    `json:"message,omitempty"`
}

// Terminal reports whether no further events follow in the run.
func (e ProgressEvent) Terminal() bool {
	return e.Kind == EventCompleted || (e.Kind == EventFailed && e.Stage == StageSegment)
}

// MarshalJSON writes clauses on every skeleton event, even an empty one,
// and index only on clause_enriched events.
func (e ProgressEvent) MarshalJSON() ([]byte, error) {
	type wire struct {
		Kind          EventKind `json:"type"`
		RunID         string    `json:"run_id,omitempty"`
		Technology    string    `json:"technology,omitempty"`
		Clauses       *[]Clause `json:"clauses,omitempty"`
		Index         *int      `json:"index,omitempty"`
		Clause        *Clause   `json:"clause,omitempty"`
		OptimizedText string    `json:"optimized_dockerfile,omitempty"`
		Stage         string    `json:"stage,omitempty"`
		Message       string    `json:"message,omitempty"`
	}
	w := wire{
		Kind:          e.Kind,
		RunID:         e.RunID,
		Technology:    e.Technology,
		Clause:        e.Clause,
		OptimizedText: e.OptimizedText,
		Stage:         e.Stage,
		Message:       e.Message,
	}
	switch e.Kind {
	case EventClauseSkeleton:
		clauses := e.Clauses
		if clauses == nil {
			clauses = []Clause{}
		}
		w.Clauses = &clauses
	case EventClauseEnriched:
		w.Index = &e.Index
	}
	return json.Marshal(w)
}
