// Package monoid builds aggregator generators from a zero value and an
// associative combine function.
package monoid

import (
	"fmt"
	"sync"

	"github.com/tarungka/streamcore/stream"
)

// Config describes a monoid aggregator: Initial produces the zero
// value, Combine folds two values (a cell and an incoming message, or
// two cells during a merge) into one. PreProcess optionally transforms
// a raw message before it is combined in; it defaults to identity.
// KeepOnReset, if true, makes Reset a no-op instead of reinitializing
// the cell.
type Config struct {
	Initial     func() any
	Combine     func(a, b any) any
	PreProcess  func(msg stream.Message) any
	KeepOnReset bool
}

type aggregator struct {
	cfg  Config
	mu   sync.Mutex
	cell any
}

func newAggregator(cfg Config) *aggregator {
	return &aggregator{cfg: cfg, cell: cfg.Initial()}
}

func (a *aggregator) ProcessAll(msgs []stream.Message) {
	pre := a.cfg.PreProcess
	if pre == nil {
		pre = func(m stream.Message) any { return m }
	}
	v := a.cfg.Initial()
	for _, m := range msgs {
		v = a.cfg.Combine(v, pre(m))
	}
	a.mu.Lock()
	a.cell = a.cfg.Combine(a.cell, v)
	a.mu.Unlock()
}

func (a *aggregator) Deref() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cell
}

func (a *aggregator) Reset() {
	if a.cfg.KeepOnReset {
		return
	}
	a.mu.Lock()
	a.cell = a.cfg.Initial()
	a.mu.Unlock()
}

func (a *aggregator) Reducer() stream.Reducer { return nil }

// NewGenerator builds the OperatorGenerator for a monoid aggregator.
// It always reports IsConcurrent() true: concurrency comes from running
// one instance per shard and merging their snapshots with Combine,
// which doubles as the generator's combiner.
func NewGenerator(cfg Config) (stream.OperatorGenerator, error) {
	if cfg.Initial == nil {
		return nil, fmt.Errorf("%w: monoid aggregator requires Initial", stream.ErrUsage)
	}
	if cfg.Combine == nil {
		return nil, fmt.Errorf("%w: monoid aggregator requires Combine", stream.ErrUsage)
	}
	combine := stream.Combiner(cfg.Combine)
	return stream.NewAggregatorGenerator(true, combine, nil, func(opts stream.CreateOptions) (stream.StreamOperator, error) {
		return newAggregator(cfg), nil
	}), nil
}

// Sum builds a monoid generator over numeric messages.
func Sum() (stream.OperatorGenerator, error) {
	return NewGenerator(Config{
		Initial: func() any { return float64(0) },
		Combine: func(a, b any) any { return toFloat(a) + toFloat(b) },
	})
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case float32:
		return float64(n)
	default:
		return 0
	}
}
