// Package compile turns a descriptor into one fused, compiled
// OperatorGenerator: normalization,
// aggregation-frontier partitioning, fusion, and instantiation.
package compile

import (
	"fmt"

	"github.com/tarungka/streamcore/stream"
	"github.com/tarungka/streamcore/stream/split"
)

// GeneratorFactory marks a zero-arg factory the compiler must invoke to
// obtain a generator, distinguishing it from a plain unary map function
// (the descriptor element forms).
type GeneratorFactory func() stream.OperatorGenerator

// AsFactory tags fn so Coerce treats it as a GeneratorFactory instead
// of a map function.
func AsFactory(fn func() stream.OperatorGenerator) GeneratorFactory {
	return GeneratorFactory(fn)
}

// Coerce turns one descriptor element into a generator, following
// the normalization rule: identity for generators, invoke for
// marker-tagged factories, split for a keyed mapping, map_op for a
// plain unary function, and a CompilationError for anything else.
func Coerce(el any) (stream.OperatorGenerator, error) {
	switch v := el.(type) {
	case stream.OperatorGenerator:
		return v, nil
	case GeneratorFactory:
		return v(), nil
	case map[string]any:
		return split.NewGenerator(v, compileBranch)
	case func(stream.Message) stream.Message:
		return stream.MapOp(v), nil
	default:
		return nil, fmt.Errorf("%w: descriptor element of unrecognized shape: %T", stream.ErrCompilation, el)
	}
}

func compileBranch(d any) (stream.OperatorGenerator, error) {
	return Compile(d)
}

// Normalize coerces a descriptor into an ordered slice of generators. A
// descriptor that is itself a slice is treated as an ordered sequence
// of elements; anything else is treated as a single-element sequence.
func Normalize(descriptor any) ([]stream.OperatorGenerator, error) {
	seq, ok := descriptor.([]any)
	if !ok {
		seq = []any{descriptor}
	}
	out := make([]stream.OperatorGenerator, 0, len(seq))
	for _, el := range seq {
		g, err := Coerce(el)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
