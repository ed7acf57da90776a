package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
	"github.com/ubuitrago/ContainerShip/internal/domain/ports"
)

// DefaultSourceTimeout bounds a single source call when none is configured.
const DefaultSourceTimeout = 30 * time.Second

type invokeResult struct {
	text string
	err  error
}

// invokeSource calls src with its own deadline and always returns an outcome.
// It returns as soon as the call finishes or ctx (or the timeout) is done;
// a call that ignores cancellation is left to finish on its own goroutine.
func invokeSource(ctx context.Context, src ports.Source, q entities.SourceQuery, timeout time.Duration) entities.EnrichmentOutcome {
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan invokeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invokeResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		text, err := src.Invoke(ctx, q)
		done <- invokeResult{text: text, err: err}
	}()

	outcome := entities.EnrichmentOutcome{Source: src.Name()}
	select {
	case res := <-done:
		outcome.Text, outcome.Err = res.text, res.err
	case <-ctx.Done():
		outcome.Err = ctx.Err()
	}
	outcome.Elapsed = time.Since(start)

	if outcome.Err != nil {
		outcome.Text = ""
		outcome.Err = fmt.Errorf("%w: %s: %w", entities.ErrSourceUnavailable, src.Name(), outcome.Err)
	}
	return outcome
}
