package ext

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// UpdateProcessor decides how concurrently fetched updates are processed.
type UpdateProcessor interface {
	// MaxConcurrentUpdates is the upper bound of updates processed at once.
	MaxConcurrentUpdates() int
	// ProcessUpdate runs fn for update, blocking until it finished.
	ProcessUpdate(ctx context.Context, update any, fn func(ctx context.Context) error) error
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// SimpleUpdateProcessor runs at most n updates at the same time.
type SimpleUpdateProcessor struct {
	max int
	sem *semaphore.Weighted
}

// NewSimpleUpdateProcessor returns a processor bounded to n concurrent updates.
func NewSimpleUpdateProcessor(n int) (*SimpleUpdateProcessor, error) {
	if n < 1 {
		return nil, fmt.Errorf("ext: max concurrent updates must be a positive integer, got %d", n)
	}
	return &SimpleUpdateProcessor{max: n, sem: semaphore.NewWeighted(int64(n))}, nil
}

// MaxConcurrentUpdates implements UpdateProcessor.
func (p *SimpleUpdateProcessor) MaxConcurrentUpdates() int { return p.max }

// ProcessUpdate implements UpdateProcessor.
func (p *SimpleUpdateProcessor) ProcessUpdate(ctx context.Context, _ any, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("ext: wait for update slot: %w", err)
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

// Initialize implements UpdateProcessor.
func (p *SimpleUpdateProcessor) Initialize(context.Context) error { return nil }

// Shutdown implements UpdateProcessor.
func (p *SimpleUpdateProcessor) Shutdown(context.Context) error { return nil }
