package usecases

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
	"github.com/ubuitrago/ContainerShip/internal/domain/ports"
)

// PendingRecommendations is the placeholder carried by skeleton clauses.
const PendingRecommendations = "_Analysis in progress..._"

const (
	defaultConcurrency    = 4
	defaultRewriteTimeout = 2 * time.Minute
)

// PipelineConfig tunes a Pipeline. Zero values select defaults.
type PipelineConfig struct {
	// Concurrency caps the number of clauses enriched at once.
	Concurrency int
	// RewriteTimeout bounds the single rewrite call.
	RewriteTimeout time.Duration
}

// Pipeline analyzes Dockerfiles: segment, enrich every clause, rewrite.
type Pipeline struct {
	enricher       *Enricher
	rewriter       ports.Rewriter
	concurrency    int64
	rewriteTimeout time.Duration
}

// NewPipeline creates a Pipeline. The sources behind enricher and the
// rewriter are owned by the caller.
func NewPipeline(enricher *Enricher, rewriter ports.Rewriter, cfg PipelineConfig) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.RewriteTimeout <= 0 {
		cfg.RewriteTimeout = defaultRewriteTimeout
	}
	return &Pipeline{
		enricher:       enricher,
		rewriter:       rewriter,
		concurrency:    int64(cfg.Concurrency),
		rewriteTimeout: cfg.RewriteTimeout,
	}
}

// Run analyzes doc and blocks until the result is complete.
// Only malformed input (ErrMalformedScript) or cancellation return an error.
func (p *Pipeline) Run(ctx context.Context, doc string) (*entities.AnalysisResult, error) {
	result, err := Collect(doc, p.Stream(ctx, doc))
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return result, err
}

// Stream analyzes doc in the background and reports progress on the
// returned channel, which is closed when the run ends. Cancelling ctx
// abandons the run and releases every in-flight source call.
func (p *Pipeline) Stream(ctx context.Context, doc string) <-chan entities.ProgressEvent {
	out := make(chan entities.ProgressEvent, 16)
	go func() {
		defer close(out)
		p.run(ctx, doc, out)
	}()
	return out
}

func (p *Pipeline) run(ctx context.Context, doc string, out chan<- entities.ProgressEvent) {
	runID := uuid.NewString()
	em := newEmitter(ctx, out, runID)
	start := time.Now()

	technology := DetectTechnology(doc)
	log.Printf("[INFO] Run %s: started (technology=%s, %d bytes)", runID, technology, len(doc))
	em.send(entities.ProgressEvent{Kind: entities.EventStarted, Technology: technology})

	clauses, err := Segment(doc)
	if err != nil {
		log.Printf("[WARN] Run %s: segmentation failed: %v", runID, err)
		em.send(entities.ProgressEvent{Kind: entities.EventFailed, Stage: entities.StageSegment, Message: err.Error()})
		return
	}

	skeleton := make([]entities.Clause, len(clauses))
	for i, c := range clauses {
		skeleton[i] = c.Clone()
		skeleton[i].Recommendations = PendingRecommendations
	}
	if !em.send(entities.ProgressEvent{Kind: entities.EventClauseSkeleton, Clauses: skeleton}) {
		log.Printf("[INFO] Run %s: abandoned", runID)
		return
	}

	enrichStart := time.Now()
	enriched, ok := p.enrichAll(ctx, em, clauses, technology, BaseImage(doc))
	if !ok {
		log.Printf("[INFO] Run %s: abandoned during enrichment", runID)
		return
	}
	log.Printf("[INFO] Run %s: enriched %d clauses in %s", runID, len(enriched), time.Since(enrichStart).Round(time.Millisecond))

	rewriteStart := time.Now()
	optimized, err := p.rewrite(ctx, doc, technology, enriched)
	if ctx.Err() != nil {
		log.Printf("[INFO] Run %s: abandoned during rewrite", runID)
		return
	}
	if err != nil {
		log.Printf("[WARN] Run %s: %v", runID, err)
		em.send(entities.ProgressEvent{Kind: entities.EventFailed, Stage: entities.StageRewrite, Message: err.Error()})
	}
	log.Printf("[INFO] Run %s: rewrite finished in %s", runID, time.Since(rewriteStart).Round(time.Millisecond))

	em.send(entities.ProgressEvent{Kind: entities.EventRewritten, OptimizedText: optimized})
	em.send(entities.ProgressEvent{Kind: entities.EventCompleted})
	log.Printf("[INFO] Run %s: completed in %s", runID, time.Since(start).Round(time.Millisecond))
}

type enrichedClause struct {
	index  int
	clause entities.Clause
}

// enrichAll enriches clauses with at most p.concurrency in flight and emits
// them in index order. It returns false if ctx ends first.
func (p *Pipeline) enrichAll(ctx context.Context, em *emitter, clauses []entities.Clause, technology, baseImage string) ([]entities.Clause, bool) {
	// Buffered for every clause so workers never block after cancellation.
	results := make(chan enrichedClause, len(clauses))
	sem := semaphore.NewWeighted(p.concurrency)

	go func() {
		for i, c := range clauses {
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			go func(i int, q entities.SourceQuery) {
				defer sem.Release(1)
				results <- enrichedClause{index: i, clause: p.enricher.EnrichQuery(ctx, q)}
			}(i, queryFor(c.Clone(), technology, baseImage))
		}
	}()

	enriched := make([]entities.Clause, len(clauses))
	for received := 0; received < len(clauses); received++ {
		select {
		case r := <-results:
			enriched[r.index] = r.clause
			em.enriched(r.index, r.clause)
		case <-ctx.Done():
			return nil, false
		}
	}
	return enriched, ctx.Err() == nil
}

// rewrite produces the optimized text. On failure it returns the fallback
// text together with an error wrapping ErrRewriteFailed; the text is never empty.
func (p *Pipeline) rewrite(ctx context.Context, doc, technology string, clauses []entities.Clause) (string, error) {
	if p.rewriter == nil {
		err := fmt.Errorf("%w: no rewriter configured", entities.ErrRewriteFailed)
		return fallbackRewrite(doc, err), err
	}

	ctx, cancel := context.WithTimeout(ctx, p.rewriteTimeout)
	defer cancel()

	text, err := p.rewriter.Rewrite(ctx, doc, technology, clauses)
	if err != nil {
		err = fmt.Errorf("%w: %w", entities.ErrRewriteFailed, err)
		return fallbackRewrite(doc, err), err
	}
	if verr := validDockerfile(text); verr != nil {
		err = fmt.Errorf("%w: %w", entities.ErrRewriteFailed, verr)
		return fallbackRewrite(doc, err), err
	}
	return text, nil
}

// EnrichClause re-enriches the clause at index of doc, for clients that
// refresh a single clause after the initial run.
func (p *Pipeline) EnrichClause(ctx context.Context, doc string, index int) (*entities.Clause, error) {
	clauses, err := Segment(doc)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(clauses) {
		return nil, fmt.Errorf("%w: index %d of %d", entities.ErrClauseNotFound, index, len(clauses))
	}

	clause := p.enricher.EnrichQuery(ctx, queryFor(clauses[index], DetectTechnology(doc), BaseImage(doc)))
	return &clause, nil
}
