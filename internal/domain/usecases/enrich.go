package usecases

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
	"github.com/ubuitrago/ContainerShip/internal/domain/ports"
)

// Enricher attaches recommendations from every configured source to a clause.
type Enricher struct {
	sources []ports.Source
	timeout time.Duration
}

// NewEnricher creates an Enricher. Sources are composed local, web, security
// regardless of the order given; timeout applies to each source call.
func NewEnricher(sources []ports.Source, timeout time.Duration) *Enricher {
	ordered := append([]ports.Source(nil), sources...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return sourcePriority(ordered[i].Name()) < sourcePriority(ordered[j].Name())
	})
	return &Enricher{sources: ordered, timeout: timeout}
}

// Enrich returns a copy of clause with recommendations populated.
func (e *Enricher) Enrich(ctx context.Context, clause entities.Clause, technology string) entities.Clause {
	return e.EnrichQuery(ctx, queryFor(clause, technology, ""))
}

// EnrichQuery enriches q.Clause using the full query. It never fails: a
// source that errors or times out leaves a placeholder in its section.
func (e *Enricher) EnrichQuery(ctx context.Context, q entities.SourceQuery) entities.Clause {
	out := q.Clause.Clone()
	q.Clause = out.Clone()

	outcomes := make([]entities.EnrichmentOutcome, len(e.sources))
	var wg sync.WaitGroup
	for i, src := range e.sources {
		wg.Add(1)
		go func(i int, src ports.Source) {
			defer wg.Done()
			outcomes[i] = invokeSource(ctx, src, q, e.timeout)
		}(i, src)
	}
	wg.Wait()

	for _, o := range outcomes {
		if !o.OK() {
			log.Printf("[WARN] Source %s failed for lines %v after %s: %v", o.Source, out.LineNumbers, o.Elapsed.Round(time.Millisecond), o.Err)
		}
	}

	out.Outcomes = outcomes
	out.Recommendations = composeRecommendations(outcomes)
	return out
}

// composeRecommendations renders one labelled markdown section per outcome.
func composeRecommendations(outcomes []entities.EnrichmentOutcome) string {
	if len(outcomes) == 0 {
		return "_No knowledge sources configured._"
	}

	sections := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		label := sourceLabel(o.Source)
		var body string
		switch {
		case !o.OK():
			body = unavailablePlaceholder(label, o.Err)
		case strings.TrimSpace(o.Text) == "":
			body = fmt.Sprintf("_%s returned no results._", label)
		default:
			body = strings.TrimSpace(o.Text)
		}
		sections = append(sections, fmt.Sprintf("### %s\n\n%s", label, body))
	}
	return strings.Join(sections, "\n\n")
}

func unavailablePlaceholder(label string, err error) string {
	return fmt.Sprintf("_%s unavailable: %v_", label, err)
}
