package compile

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarungka/streamcore/stream"
	"github.com/tarungka/streamcore/stream/monoid"
)

func sumGenerator(t *testing.T) stream.OperatorGenerator {
	t.Helper()
	gen, err := monoid.Sum()
	require.NoError(t, err)
	return gen
}

// fakeConcurrentNoCombiner claims IsConcurrent()==true with a nil
// Combiner directly, bypassing stream.NewAggregatorGenerator's own
// guard against that combination, to exercise Compile's independent
// check of the same invariant against a custom aggregator.
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
	return stream.NewAggregator(func([]stream.Message) {}, func() any { return nil }, nil, nil)
}

func TestCompile_ConcurrentAggregatorWithoutCombinerReportsNonConcurrent(t *testing.T) {
	gen, err := Compile(&fakeConcurrentNoCombiner{id: uuid.New()})
	require.NoError(t, err)
	assert.False(t, gen.IsConcurrent())
}

func TestCompile_MapThenSum(t *testing.T) {
	double := stream.MapOp(func(m stream.Message) stream.Message { return m.(int) * 2 })
	gen, err := Compile([]any{double, sumGenerator(t)})
	require.NoError(t, err)

	op, err := gen.Create(stream.CreateOptions{})
	require.NoError(t, err)

	op.ProcessAll([]stream.Message{1, 2, 3})
	assert.Equal(t, float64(12), Snapshot(op)) // (1+2+3)*2
}

func TestCompile_NoAggregatorAutoAppendsAccumulator(t *testing.T) {
	double := stream.MapOp(func(m stream.Message) stream.Message { return m.(int) * 2 })
	gen, err := Compile(double)
	require.NoError(t, err)
	assert.True(t, gen.IsAggregator())

	op, err := gen.Create(stream.CreateOptions{})
	require.NoError(t, err)
	op.ProcessAll([]stream.Message{1, 2})
	assert.Equal(t, []stream.Message{2, 4}, Snapshot(op))
}

func TestCompile_IsIdempotentOnAnAlreadyCompiledGenerator(t *testing.T) {
	gen, err := Compile(sumGenerator(t))
	require.NoError(t, err)

	again, err := Compile(gen)
	require.NoError(t, err)
	assert.Equal(t, gen.ID(), again.ID())
}

func TestCompile_UnrecognizedElementIsACompilationError(t *testing.T) {
	_, err := Compile(42)
	require.Error(t, err)
	assert.ErrorIs(t, err, stream.ErrCompilation)
}

func TestCompile_SplitBranchMap(t *testing.T) {
	isEven := func(m stream.Message) stream.Message { return m.(int)%2 == 0 }
	_ = isEven
	branches := map[string]any{
		"even": sumGenerator(t),
		"odd":  sumGenerator(t),
	}
	gen, err := Compile(branches)
	require.NoError(t, err)

	op, err := gen.Create(stream.CreateOptions{})
	require.NoError(t, err)
	op.ProcessAll([]stream.Message{1, 2, 3})

	snap := Snapshot(op).(map[string]any)
	assert.Equal(t, float64(6), snap["even"])
	assert.Equal(t, float64(6), snap["odd"])
}

func TestCompile_ConcurrentPreChainPreservesSum(t *testing.T) {
	double := stream.MapOp(func(m stream.Message) stream.Message { return m.(int) * 2 })
	gen, err := Compile([]any{double, sumGenerator(t)})
	require.NoError(t, err)
	assert.True(t, gen.IsConcurrent())

	op, err := gen.Create(stream.CreateOptions{})
	require.NoError(t, err)

	msgs := make([]stream.Message, 0, 100)
	for i := 1; i <= 100; i++ {
		msgs = append(msgs, i)
	}
	op.ProcessAll(msgs)
	assert.Equal(t, float64(10100), Snapshot(op)) // sum(1..100)*2
}

func TestCompile_FlushAndResetPropagate(t *testing.T) {
	gen, err := Compile(sumGenerator(t))
	require.NoError(t, err)
	op, err := gen.Create(stream.CreateOptions{})
	require.NoError(t, err)

	op.ProcessAll([]stream.Message{1, 2})
	op.(stream.Operator).Flush()
	op.Reset()
	assert.Equal(t, float64(0), Snapshot(op))
}
