package stream

// StreamOperator is the base runtime contract for a single stage of a
// compiled pipeline.
type StreamOperator interface {
	// ProcessAll folds a batch of messages into internal state.
	ProcessAll(msgs []Message)
	// Reset returns the operator to its post-construction state.
	Reset()
	// Reducer exposes a composable transformation over a lazy sequence
	// of messages. Aggregators report a nil Reducer: they terminate a
	// chain rather than transform it.
	Reducer() Reducer
}

// Aggregator is a StreamOperator whose accumulated state can be
// dereferenced as a point-in-time snapshot. The returned value must be
// treated as read-only by the caller; an aggregator is free to hand
// back internal state directly rather than a defensive copy.
type Aggregator interface {
	StreamOperator
	Deref() any
}

// Operator is the full capability surface of a compiled, instantiated
// pipeline: process/flush/reset/snapshot map directly onto
// ProcessAll/Process/Flush/Reset/Deref (snapshot additionally applies
// the compiled generator's emitter, see Emitted).
type Operator interface {
	Aggregator
	Process(msg Message)
	Flush()
}

// Emitted is implemented by operators that carry their compiled
// generator's emitter as ambient metadata, attached at Create time, so
// a caller can compute the emitted snapshot without re-consulting the
// generator that produced the operator.
type Emitted interface {
	Snapshot() any
}
