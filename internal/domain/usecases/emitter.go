package usecases

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
)

// ErrRunAbandoned is returned by Collect when the stream closes before Completed.
var ErrRunAbandoned = errors.New("analysis ended before completion")

// eventPhase ranks event kinds; a run never moves to a lower phase.
func eventPhase(kind entities.EventKind) int {
	switch kind {
	case entities.EventStarted:
		return 0
	case entities.EventClauseSkeleton:
		return 1
	case entities.EventClauseEnriched:
		return 2
	case entities.EventRewritten:
		return 3
	case entities.EventCompleted:
		return 4
	default:
		return -1
	}
}

// emitter writes one run's events to out in protocol order.
// It is owned by a single goroutine.
type emitter struct {
	ctx   context.Context
	out   chan<- entities.ProgressEvent
	runID string
	phase int

	// Out-of-order enriched clauses wait here until their predecessors are sent.
	buf    map[int]entities.Clause
	expect int
}

func newEmitter(ctx context.Context, out chan<- entities.ProgressEvent, runID string) *emitter {
	return &emitter{
		ctx:   ctx,
		out:   out,
		runID: runID,
		buf:   make(map[int]entities.Clause),
	}
}

// send delivers ev unless the run has been cancelled. It reports whether ev was sent.
func (e *emitter) send(ev entities.ProgressEvent) bool {
	if p := eventPhase(ev.Kind); p >= 0 {
		if p < e.phase {
			log.Printf("[ERROR] Run %s: dropping %s event after phase %d", e.runID, ev.Kind, e.phase)
			return false
		}
		e.phase = p
	}
	if e.ctx.Err() != nil {
		return false
	}

	ev.RunID = e.runID
	select {
	case e.out <- ev:
		return true
	case <-e.ctx.Done():
		return false
	}
}

// enriched records a finished clause and flushes every clause now in sequence.
func (e *emitter) enriched(index int, clause entities.Clause) {
	if index < e.expect {
		log.Printf("[ERROR] Run %s: clause %d enriched twice", e.runID, index)
		return
	}
	e.buf[index] = clause
	for {
		c, ok := e.buf[e.expect]
		if !ok {
			return
		}
		delete(e.buf, e.expect)
		if !e.send(entities.ProgressEvent{Kind: entities.EventClauseEnriched, Index: e.expect, Clause: &c}) {
			return
		}
		e.expect++
	}
}

// Collect folds a run's events into its AnalysisResult, discarding progress.
// A segmentation failure is returned as an error wrapping ErrMalformedScript.
func Collect(original string, events <-chan entities.ProgressEvent) (*entities.AnalysisResult, error) {
	result := &entities.AnalysisResult{
		OriginalText:  original,
		OptimizedText: original,
	}

	for ev := range events {
		switch ev.Kind {
		case entities.EventStarted:
			result.RunID = ev.RunID
			result.Technology = ev.Technology
		case entities.EventClauseSkeleton:
			result.Clauses = make([]entities.Clause, len(ev.Clauses))
			for i, c := range ev.Clauses {
				result.Clauses[i] = c.Clone()
			}
		case entities.EventClauseEnriched:
			if ev.Clause != nil && ev.Index >= 0 && ev.Index < len(result.Clauses) {
				result.Clauses[ev.Index] = ev.Clause.Clone()
			}
		case entities.EventRewritten:
			if ev.OptimizedText != "" {
				result.OptimizedText = ev.OptimizedText
			}
		case entities.EventFailed:
			if ev.Stage == entities.StageSegment {
				msg := strings.TrimPrefix(ev.Message, entities.ErrMalformedScript.Error()+": ")
				return nil, fmt.Errorf("%w: %s", entities.ErrMalformedScript, msg)
			}
		case entities.EventCompleted:
			return result, nil
		}
	}
	return nil, ErrRunAbandoned
}
