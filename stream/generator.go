package stream

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tarungka/streamcore/executor"
)

// Combiner merges two snapshots of the same aggregator shape into one,
// associatively and commutatively-up-to-snapshot.
type Combiner func(a, b any) any

// Emitter post-processes a snapshot at the pipeline's emit boundary.
// Identity by default.
type Emitter func(any) any

// Serializer and Deserializer describe a snapshot's exported wire
// shape. Identity by default: the core does not choose a format, it
// only passes these through to create() so a caller can supply real
// ones (JSON, msgpack, whatever the host process already uses).
type Serializer func(any) any
type Deserializer func(any) any

func identity(v any) any { return v }

// CreateOptions are recognized by OperatorGenerator.Create. Executor
// and Semaphore are this implementation's concrete substrate for the
// "parallel-fold realization" concurrency mode and the leased-semaphore
// substrate it runs against.
type CreateOptions struct {
	// AggregatorGeneratorWrapper transforms the aggregator generator
	// just before its own create, used for decorating (e.g. installing
	// a windowing wrapper via RecurTo).
	AggregatorGeneratorWrapper func(OperatorGenerator) OperatorGenerator
	// CompiledOperatorWrapper transforms the fully instantiated
	// top-level operator before it is returned to the caller.
	CompiledOperatorWrapper func(Operator, CreateOptions) Operator
	// ExecutionAffinity is an integer hint injected by split when
	// wrapping a non-concurrent sub-pipeline; it flows into the
	// buffered aggregator's worker index in place of a hash.
	ExecutionAffinity *int
	// Serialize/Deserialize are passed through to aggregators' create
	// functions untouched.
	Serialize   Serializer
	Deserialize Deserializer
	// Executor and Semaphore are this implementation's concrete
	// substrate for the parallel-fold realization of a pre-aggregation
	// chain and for any buffered aggregator instantiated during Create.
	// Unless both are set, a compiled generator falls back to a pool
	// sized to runtime.NumCPU() that it creates lazily and shares across
	// all of its own instantiations.
	Executor  *executor.Pool
	Semaphore *executor.Semaphore
}

// OperatorGenerator is a factory describing how to instantiate an
// operator, plus the static metadata the compiler consults while fusing
// a descriptor.
type OperatorGenerator interface {
	ID() uuid.UUID
	IsAggregator() bool
	IsConcurrent() bool
	Combiner() Combiner
	Emitter() Emitter
	Serializer() Serializer
	Deserializer() Deserializer
	// RecurTo installs a back-reference to an outer (e.g. windowing)
	// generator, looked up by id on demand rather than held as a
	// strong pointer; Go's tracing collector does not leak on the
	// resulting cycle, but looking it up by id keeps an inner
	// generator from single-handedly retaining its outer's whole
	// descriptor tree for its own lifetime.
	RecurTo(outer OperatorGenerator)
	Descriptor() any
	Create(opts CreateOptions) (StreamOperator, error)
}

// NewID mints a time-ordered v7 UUID for generator and task identity,
// falling back to a random v4 id on the rare entropy-read failure
// NewV7 can return.
func NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

var registry sync.Map // uuid.UUID -> OperatorGenerator

func register(g OperatorGenerator) { registry.Store(g.ID(), g) }

// Lookup resolves a generator previously registered by construction or
// RecurTo, by id.
func Lookup(id uuid.UUID) (OperatorGenerator, bool) {
	v, ok := registry.Load(id)
	if !ok {
		return nil, false
	}
	return v.(OperatorGenerator), true
}

// Generator is the common static-metadata implementation of
// OperatorGenerator; concrete generator constructors (stream/monoid,
// stream/accumulator, stream/split) build one through
// NewProcessorGenerator/NewAggregatorGenerator and supply its CreateFn.
// The compile package's fused generator is a separate type.
type Generator struct {
	id           uuid.UUID
	aggregator   bool
	concurrent   bool
	combiner     Combiner
	emitter      Emitter
	serializer   Serializer
	deserializer Deserializer
	descriptor   any
	outerID      uuid.UUID
	CreateFn     func(opts CreateOptions) (StreamOperator, error)
}

func (g *Generator) ID() uuid.UUID      { return g.id }
func (g *Generator) IsAggregator() bool { return g.aggregator }
func (g *Generator) IsConcurrent() bool { return g.concurrent }
func (g *Generator) Combiner() Combiner { return g.combiner }

func (g *Generator) Emitter() Emitter {
	if g.emitter == nil {
		return identity
	}
	return g.emitter
}

func (g *Generator) Serializer() Serializer {
	if g.serializer == nil {
		return identity
	}
	return g.serializer
}

func (g *Generator) Deserializer() Deserializer {
	if g.deserializer == nil {
		return identity
	}
	return g.deserializer
}

func (g *Generator) RecurTo(outer OperatorGenerator) {
	if outer == nil {
		g.outerID = uuid.Nil
		return
	}
	register(outer)
	g.outerID = outer.ID()
}

// Outer resolves the generator installed by the most recent RecurTo
// call, if any.
func (g *Generator) Outer() (OperatorGenerator, bool) {
	if g.outerID == uuid.Nil {
		return nil, false
	}
	return Lookup(g.outerID)
}

func (g *Generator) Descriptor() any      { return g.descriptor }
func (g *Generator) SetDescriptor(d any)  { g.descriptor = d }

func (g *Generator) Create(opts CreateOptions) (StreamOperator, error) {
	if g.CreateFn == nil {
		return nil, fmt.Errorf("%w: generator %s has no create function", ErrUsage, g.id)
	}
	return g.CreateFn(opts)
}

// NewProcessorGenerator builds a non-aggregating generator entirely
// described by create.
func NewProcessorGenerator(concurrent bool, create func(opts CreateOptions) (StreamOperator, error)) OperatorGenerator {
	g := &Generator{id: NewID(), concurrent: concurrent, aggregator: false, CreateFn: create}
	register(g)
	return g
}

// NewAggregatorGenerator builds an aggregating generator with the given
// combiner and emitter (either may be nil). A missing combiner always
// downgrades the generator to non-concurrent, regardless of the
// concurrent argument: a concurrent aggregator with no way to merge
// its shards back together cannot honor IsConcurrent's contract.
func NewAggregatorGenerator(concurrent bool, combiner Combiner, emitter Emitter, create func(opts CreateOptions) (StreamOperator, error)) OperatorGenerator {
	concurrent = concurrent && combiner != nil
	g := &Generator{id: NewID(), concurrent: concurrent, aggregator: true, combiner: combiner, emitter: emitter, CreateFn: create}
	register(g)
	return g
}
