package split

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/streamcore/stream"
	"github.com/tarungka/streamcore/stream/accumulator"
)

func compileStub(d any) (stream.OperatorGenerator, error) {
	if g, ok := d.(stream.OperatorGenerator); ok {
		return g, nil
	}
	return accumulator.NewGenerator(), nil
}

func TestSplit_FansBatchToEveryBranch(t *testing.T) {
	gen, err := NewGenerator(map[string]any{
		"even": accumulator.NewGenerator(),
		"odd":  accumulator.NewGenerator(),
	}, compileStub)
	require.NoError(t, err)

	op, err := gen.Create(stream.CreateOptions{})
	require.NoError(t, err)
	agg := op.(stream.Aggregator)

	agg.ProcessAll([]stream.Message{1, 2, 3})
	snap := agg.Deref().(map[string]any)
	assert.Equal(t, []stream.Message{1, 2, 3}, snap["even"])
	assert.Equal(t, []stream.Message{1, 2, 3}, snap["odd"])
}

func TestSplit_CombinerMergesPointwise(t *testing.T) {
	gen, err := NewGenerator(map[string]any{
		"a": accumulator.NewGenerator(),
		"b": accumulator.NewGenerator(),
	}, compileStub)
	require.NoError(t, err)

	left, _ := gen.Create(stream.CreateOptions{})
	right, _ := gen.Create(stream.CreateOptions{})
	left.(stream.Aggregator).ProcessAll([]stream.Message{1})
	right.(stream.Aggregator).ProcessAll([]stream.Message{2})

	merged := gen.Combiner()(left.(stream.Aggregator).Deref(), right.(stream.Aggregator).Deref()).(map[string]any)
	assert.Equal(t, []stream.Message{1, 2}, merged["a"])
	assert.Equal(t, []stream.Message{1, 2}, merged["b"])
}

// fakeConcurrentNoCombiner claims IsConcurrent()==true with a nil
// Combiner directly, bypassing stream.NewAggregatorGenerator's own
// guard against that combination, to exercise split's independent
// check of the same invariant.
type fakeConcurrentNoCombiner struct{ id uuid.UUID }

func (f *fakeConcurrentNoCombiner) ID() uuid.UUID                   { return f.id }
func (f *fakeConcurrentNoCombiner) IsAggregator() bool               { return true }
func (f *fakeConcurrentNoCombiner) IsConcurrent() bool               { return true }
func (f *fakeConcurrentNoCombiner) Combiner() stream.Combiner        { return nil }
func (f *fakeConcurrentNoCombiner) Emitter() stream.Emitter          { return func(v any) any { return v } }
func (f *fakeConcurrentNoCombiner) Serializer() stream.Serializer     { return func(v any) any { return v } }
func (f *fakeConcurrentNoCombiner) Deserializer() stream.Deserializer { return func(v any) any { return v } }
func (f *fakeConcurrentNoCombiner) RecurTo(stream.OperatorGenerator)  {}
func (f *fakeConcurrentNoCombiner) Descriptor() any                   { return nil }
func (f *fakeConcurrentNoCombiner) Create(stream.CreateOptions) (stream.StreamOperator, error) {
	return accumulator.NewGenerator().Create(stream.CreateOptions{})
}

func TestSplit_MissingCombinerOnOneBranchForcesNonConcurrent(t *testing.T) {
	gen, err := NewGenerator(map[string]any{
		"even": accumulator.NewGenerator(),
		"odd":  &fakeConcurrentNoCombiner{id: uuid.New()},
	}, compileStub)
	require.NoError(t, err)
	assert.False(t, gen.IsConcurrent())
	assert.Nil(t, gen.Combiner())
}

func TestSplit_ResetClearsEveryBranch(t *testing.T) {
	gen, err := NewGenerator(map[string]any{"k": accumulator.NewGenerator()}, compileStub)
	require.NoError(t, err)
	op, _ := gen.Create(stream.CreateOptions{})
	agg := op.(stream.Aggregator)
	agg.ProcessAll([]stream.Message{1})
	agg.Reset()
	snap := agg.Deref().(map[string]any)
	assert.Empty(t, snap["k"])
}
