package monoid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/streamcore/stream"
)

func TestNewGenerator_RequiresInitialAndCombine(t *testing.T) {
	_, err := NewGenerator(Config{})
	require.Error(t, err)

	_, err = NewGenerator(Config{Initial: func() any { return 0 }})
	require.Error(t, err)
}

func TestSum_AccumulatesAcrossBatches(t *testing.T) {
	gen, err := Sum()
	require.NoError(t, err)

	op, err := gen.Create(stream.CreateOptions{})
	require.NoError(t, err)
	agg := op.(stream.Aggregator)

	agg.ProcessAll([]stream.Message{1, 2, 3})
	agg.ProcessAll([]stream.Message{4})
	assert.Equal(t, float64(10), agg.Deref())

	agg.Reset()
	assert.Equal(t, float64(0), agg.Deref())
}

func TestSum_CombinerMergesTwoShards(t *testing.T) {
	gen, err := Sum()
	require.NoError(t, err)

	left, _ := gen.Create(stream.CreateOptions{})
	right, _ := gen.Create(stream.CreateOptions{})
	left.(stream.Aggregator).ProcessAll([]stream.Message{1, 2})
	right.(stream.Aggregator).ProcessAll([]stream.Message{3, 4})

	merged := gen.Combiner()(left.(stream.Aggregator).Deref(), right.(stream.Aggregator).Deref())
	assert.Equal(t, float64(10), merged)
}

func TestConfig_KeepOnReset(t *testing.T) {
	gen, err := NewGenerator(Config{
		Initial:     func() any { return 0 },
		Combine:     func(a, b any) any { return a.(int) + b.(int) },
		KeepOnReset: true,
	})
	require.NoError(t, err)

	op, _ := gen.Create(stream.CreateOptions{})
	agg := op.(stream.Aggregator)
	agg.ProcessAll([]stream.Message{1, 2})
	agg.Reset()
	assert.Equal(t, 3, agg.Deref())
}
