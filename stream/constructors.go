package stream

import "fmt"

// streamProcessor is a stateless-or-self-contained stage described
// entirely by a Reducer; it never receives a batch directly through
// ProcessAll; it participates in a pipeline only by being folded into
// the pre-aggregation reducer chain.
type streamProcessor struct {
	reducer Reducer
	resetFn func()
}

// NewProcessor builds a StreamOperator described entirely by a reducer.
// reducer must be non-nil; reset defaults to a no-op.
func NewProcessor(reducer Reducer, reset func()) (StreamOperator, error) {
	if reducer == nil {
		return nil, fmt.Errorf("%w: stream processor requires a reducer", ErrUsage)
	}
	if reset == nil {
		reset = func() {}
	}
	return &streamProcessor{reducer: reducer, resetFn: reset}, nil
}

func (p *streamProcessor) ProcessAll(msgs []Message) {}
func (p *streamProcessor) Reset()                    { p.resetFn() }
func (p *streamProcessor) Reducer() Reducer          { return p.reducer }

// AggregatorOperator is the concrete StreamOperator built by
// NewAggregator from user callbacks. It implements Operator in full
// (ProcessAll/Process/Flush/Reset/Deref), so it can terminate a
// pipeline directly or be wrapped by buffered.Aggregator upstream.
type AggregatorOperator struct {
	processFn func(msgs []Message)
	derefFn   func() any
	resetFn   func()
	flushFn   func()
}

// NewAggregator builds an AggregatorOperator from user callbacks.
// process and deref are required; reset and flush default to no-ops.
func NewAggregator(process func([]Message), deref func() any, reset func(), flush func()) (*AggregatorOperator, error) {
	if process == nil {
		return nil, fmt.Errorf("%w: stream aggregator requires a process callback", ErrUsage)
	}
	if deref == nil {
		return nil, fmt.Errorf("%w: stream aggregator requires a deref callback", ErrUsage)
	}
	if reset == nil {
		reset = func() {}
	}
	if flush == nil {
		flush = func() {}
	}
	return &AggregatorOperator{processFn: process, derefFn: deref, resetFn: reset, flushFn: flush}, nil
}

func (a *AggregatorOperator) ProcessAll(msgs []Message) { a.processFn(msgs) }
func (a *AggregatorOperator) Process(msg Message)       { a.processFn([]Message{msg}) }
func (a *AggregatorOperator) Reset()                    { a.resetFn() }
func (a *AggregatorOperator) Flush()                    { a.flushFn() }
func (a *AggregatorOperator) Reducer() Reducer          { return nil }
func (a *AggregatorOperator) Deref() any                { return a.derefFn() }

// ReducerOp builds a concurrent, non-aggregating generator described
// entirely by a user-supplied Reducer.
func ReducerOp(r Reducer) OperatorGenerator {
	return NewProcessorGenerator(true, func(opts CreateOptions) (StreamOperator, error) {
		return NewProcessor(r, nil)
	})
}

// MapOp builds a concurrent generator that maps fn over every message.
func MapOp(fn func(Message) Message) OperatorGenerator {
	return ReducerOp(Map(fn))
}

// MapcatOp builds a concurrent generator that maps fn over every
// message, flattening the results.
func MapcatOp(fn func(Message) []Message) OperatorGenerator {
	return ReducerOp(Mapcat(fn))
}
