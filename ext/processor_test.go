package ext

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleUpdateProcessorRejectsInvalidLimit(t *testing.T) {
	t.Parallel()

	_, err := NewSimpleUpdateProcessor(0)
	require.Error(t, err)
}

func TestSimpleUpdateProcessorBoundsConcurrency(t *testing.T) {
	t.Parallel()

	p, err := NewSimpleUpdateProcessor(2)
	require.NoError(t, err)
	require.Equal(t, 2, p.MaxConcurrentUpdates())

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Go(func() {
			err := p.ProcessUpdate(context.Background(), i, func(context.Context) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		})
	}
	wg.Wait()
	require.LessOrEqual(t, peak.Load(), int32(2))
}

func TestSimpleUpdateProcessorHonoursContext(t *testing.T) {
	t.Parallel()

	p, err := NewSimpleUpdateProcessor(1)
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = p.ProcessUpdate(context.Background(), nil, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = p.ProcessUpdate(ctx, nil, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}
