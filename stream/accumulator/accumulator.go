// Package accumulator builds the terminal accumulator aggregator,
// auto-appended by the compiler when a descriptor names no aggregator
// of its own.
package accumulator

import (
	"sync"

	"github.com/tarungka/streamcore/stream"
)

type accumulator struct {
	mu   sync.Mutex
	msgs []stream.Message
}

func (a *accumulator) ProcessAll(msgs []stream.Message) {
	a.mu.Lock()
	a.msgs = append(a.msgs, msgs...)
	a.mu.Unlock()
}

func (a *accumulator) Deref() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]stream.Message, len(a.msgs))
	copy(out, a.msgs)
	return out
}

func (a *accumulator) Reset() {
	a.mu.Lock()
	a.msgs = nil
	a.mu.Unlock()
}

func (a *accumulator) Reducer() stream.Reducer { return nil }

func combine(a, b any) any {
	left, _ := a.([]stream.Message)
	right, _ := b.([]stream.Message)
	out := make([]stream.Message, 0, len(left)+len(right))
	out = append(out, left...)
	out = append(out, right...)
	return out
}

// NewGenerator builds the accumulator's OperatorGenerator: a concurrent
// aggregator whose snapshot is the ordered concatenation of every
// message observed since the last reset.
func NewGenerator() stream.OperatorGenerator {
	return stream.NewAggregatorGenerator(true, combine, nil, func(opts stream.CreateOptions) (stream.StreamOperator, error) {
		return &accumulator{}, nil
	})
}
