package buffered

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarungka/streamcore/executor"
	"github.com/tarungka/streamcore/stream"
	"github.com/tarungka/streamcore/stream/accumulator"
)

func newDownstream(t *testing.T) stream.Aggregator {
	t.Helper()
	op, err := accumulator.NewGenerator().Create(stream.CreateOptions{})
	require.NoError(t, err)
	return op.(stream.Aggregator)
}

func TestBuffered_FlushMovesBufferedMessagesDownstream(t *testing.T) {
	pool := executor.New(2)
	defer pool.Stop()
	sem := executor.NewSemaphore(2 * pool.NumWorkers())
	downstream := newDownstream(t)

	agg := New(downstream, pool, sem, 16, nil, nil)
	agg.Process(1)
	agg.Process(2)

	agg.Flush()
	assert.Equal(t, []stream.Message{1, 2}, downstream.Deref())
}

func TestBuffered_OverflowSwapsAndFlushesOffThread(t *testing.T) {
	pool := executor.New(2)
	defer pool.Stop()
	sem := executor.NewSemaphore(2 * pool.NumWorkers())
	downstream := newDownstream(t)

	agg := New(downstream, pool, sem, 2, nil, nil)
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		go func(m int) {
			defer wg.Done()
			agg.Process(m)
		}(i)
	}
	wg.Wait()
	agg.Flush()

	assert.Len(t, downstream.Deref().([]stream.Message), 3)
}

func TestBuffered_HashRoutingIsStable(t *testing.T) {
	pool := executor.New(4)
	defer pool.Stop()
	sem := executor.NewSemaphore(2 * pool.NumWorkers())
	downstream := newDownstream(t)

	agg := New(downstream, pool, sem, 16, []byte("stable-key"), nil)
	first := agg.workerIndex()
	second := agg.workerIndex()
	assert.Equal(t, first, second)
}

func TestBuffered_AffinityOverridesHash(t *testing.T) {
	pool := executor.New(4)
	defer pool.Stop()
	sem := executor.NewSemaphore(2 * pool.NumWorkers())
	downstream := newDownstream(t)

	affinity := 2
	agg := New(downstream, pool, sem, 16, []byte("irrelevant"), &affinity)
	assert.Equal(t, 2, agg.workerIndex())
}

func TestBuffered_PresentsAsFullOperator(t *testing.T) {
	pool := executor.New(2)
	defer pool.Stop()
	sem := executor.NewSemaphore(2 * pool.NumWorkers())
	downstream := newDownstream(t)

	var op stream.Operator = New(downstream, pool, sem, 16, nil, nil)
	op.Process(1)
	op.Flush()
	assert.Equal(t, []stream.Message{1}, op.Deref())
	op.Reset()
	assert.Empty(t, op.Deref())
}
