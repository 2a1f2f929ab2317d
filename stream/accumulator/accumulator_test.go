package accumulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/streamcore/stream"
)

func TestAccumulator_CollectsInOrder(t *testing.T) {
	gen := NewGenerator()
	op, err := gen.Create(stream.CreateOptions{})
	require.NoError(t, err)
	agg := op.(stream.Aggregator)

	agg.ProcessAll([]stream.Message{1, 2})
	agg.ProcessAll([]stream.Message{3})
	assert.Equal(t, []stream.Message{1, 2, 3}, agg.Deref())

	agg.Reset()
	assert.Empty(t, agg.Deref())
}

func TestAccumulator_CombinerConcatenates(t *testing.T) {
	gen := NewGenerator()
	left, _ := gen.Create(stream.CreateOptions{})
	right, _ := gen.Create(stream.CreateOptions{})
	left.(stream.Aggregator).ProcessAll([]stream.Message{1, 2})
	right.(stream.Aggregator).ProcessAll([]stream.Message{3, 4})

	merged := gen.Combiner()(left.(stream.Aggregator).Deref(), right.(stream.Aggregator).Deref())
	assert.Equal(t, []stream.Message{1, 2, 3, 4}, merged)
}

func TestAccumulator_IsConcurrentAggregator(t *testing.T) {
	gen := NewGenerator()
	assert.True(t, gen.IsAggregator())
	assert.True(t, gen.IsConcurrent())
}
