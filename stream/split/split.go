// Package split builds the keyed fan-out aggregator, mapping string
// keys to independently compiled sub-pipelines.
package split

import (
	"sort"

	"github.com/tarungka/streamcore/stream"
)

// CompileFn compiles a sub-descriptor into a generator. The compile
// package supplies this at call time so this package never imports
// compile (compile imports split, not the reverse).
type CompileFn func(descriptor any) (stream.OperatorGenerator, error)

type flusher interface{ Flush() }

type operator struct {
	subs map[string]stream.StreamOperator
	keys []string // sorted once at create time, stable iteration order
}

func (s *operator) ProcessAll(msgs []stream.Message) {
	for _, k := range s.keys {
		s.subs[k].ProcessAll(msgs)
	}
}

func (s *operator) Reset() {
	for _, k := range s.keys {
		s.subs[k].Reset()
	}
}

func (s *operator) Reducer() stream.Reducer { return nil }

func (s *operator) Deref() any {
	out := make(map[string]any, len(s.keys))
	for _, k := range s.keys {
		if agg, ok := s.subs[k].(stream.Aggregator); ok {
			out[k] = agg.Deref()
		}
	}
	return out
}

func (s *operator) Flush() {
	for _, k := range s.keys {
		if f, ok := s.subs[k].(flusher); ok {
			f.Flush()
		}
	}
}

// combiner point-wise merges two split snapshots. A key present in only
// one side is carried through unchanged; a key absent from both sides
// is sentinel-filtered (dropped) rather than appearing with a zero
// value. It is only built when every sub-generator has a combiner: a
// split with even one combiner-less branch has no combiner at all.
func combiner(keys []string, subGenerators map[string]stream.OperatorGenerator) stream.Combiner {
	return func(a, b any) any {
		left, _ := a.(map[string]any)
		right, _ := b.(map[string]any)
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			lv, lok := left[k]
			rv, rok := right[k]
			switch {
			case lok && rok:
				out[k] = subGenerators[k].Combiner()(lv, rv)
			case lok:
				out[k] = lv
			case rok:
				out[k] = rv
			}
		}
		return out
	}
}

func emitter(keys []string, subGenerators map[string]stream.OperatorGenerator) stream.Emitter {
	return func(v any) any {
		in, _ := v.(map[string]any)
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			if val, ok := in[k]; ok {
				out[k] = subGenerators[k].Emitter()(val)
			}
		}
		return out
	}
}

// NewGenerator compiles each sub-descriptor in branches independently
// via compileFn, then builds the split's combiner, emitter and create
// closure point-wise across the keyed sub-generators.
// Non-concurrent sub-generators are assigned a stable execution
// affinity at create time (the key's index in sorted key order) so any
// buffered aggregator in their chain dispatches to one shard for the
// life of the process.
func NewGenerator(branches map[string]any, compileFn CompileFn) (stream.OperatorGenerator, error) {
	keys := make([]string, 0, len(branches))
	for k := range branches {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	subGenerators := make(map[string]stream.OperatorGenerator, len(keys))
	for _, k := range keys {
		g, err := compileFn(branches[k])
		if err != nil {
			return nil, err
		}
		subGenerators[k] = g
	}

	concurrent := true
	allCombine := true
	for _, k := range keys {
		g := subGenerators[k]
		if !g.IsConcurrent() {
			concurrent = false
		}
		if g.Combiner() == nil {
			allCombine = false
		}
	}

	var comb stream.Combiner
	if allCombine {
		comb = combiner(keys, subGenerators)
	}
	emit := emitter(keys, subGenerators)

	// A split missing a combiner on even one branch can't be merged
	// concurrently as a whole, regardless of each branch's own
	// concurrency: downgrade to non-concurrent.
	concurrent = concurrent && allCombine

	gen := stream.NewAggregatorGenerator(concurrent, comb, emit, func(opts stream.CreateOptions) (stream.StreamOperator, error) {
		subs := make(map[string]stream.StreamOperator, len(keys))
		for i, k := range keys {
			subOpts := opts
			if !subGenerators[k].IsConcurrent() {
				affinity := i
				subOpts.ExecutionAffinity = &affinity
			}
			op, err := subGenerators[k].Create(subOpts)
			if err != nil {
				return nil, err
			}
			subs[k] = op
		}
		return &operator{subs: subs, keys: append([]string(nil), keys...)}, nil
	})
	return gen, nil
}
