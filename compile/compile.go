package compile

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tarungka/streamcore/buffered"
	"github.com/tarungka/streamcore/executor"
	"github.com/tarungka/streamcore/stream"
	"github.com/tarungka/streamcore/stream/accumulator"
)

// compiledMark tags generators already produced by Compile, so a
// repeat call is idempotent (normalization rule: a
// descriptor that is itself a compiled generator passes through
// unchanged).
var compiledMark sync.Map // uuid.UUID -> struct{}

func markCompiled(g stream.OperatorGenerator) { compiledMark.Store(g.ID(), struct{}{}) }

func isCompiled(g stream.OperatorGenerator) bool {
	_, ok := compiledMark.Load(g.ID())
	return ok
}

// Compile turns a descriptor into one fused, compiled OperatorGenerator.
func Compile(descriptor any) (stream.OperatorGenerator, error) {
	if g, ok := descriptor.(stream.OperatorGenerator); ok && isCompiled(g) {
		return g, nil
	}

	stages, err := Normalize(descriptor)
	if err != nil {
		return nil, err
	}

	pre, aggr, post, err := partition(stages)
	if err != nil {
		return nil, err
	}
	if aggr == nil {
		// No aggregator anywhere in the descriptor: append the terminal
		// accumulator and recompile.
		elements := make([]any, 0, len(stages)+1)
		for _, g := range stages {
			elements = append(elements, g)
		}
		elements = append(elements, accumulator.NewGenerator())
		return Compile(elements)
	}

	concurrent := allConcurrent(pre) && aggr.IsConcurrent() && aggr.Combiner() != nil

	var combiner stream.Combiner
	if allConcurrent(pre) {
		combiner = aggr.Combiner()
	}

	c := &compiled{
		id:         stream.NewID(),
		pre:        pre,
		aggr:       aggr,
		post:       post,
		concurrent: concurrent,
		combiner:   combiner,
		descriptor: descriptor,
	}
	c.emit = fuseEmit(aggr, post)
	markCompiled(c)
	return c, nil
}

func partition(stages []stream.OperatorGenerator) (pre []stream.OperatorGenerator, aggr stream.OperatorGenerator, post []stream.OperatorGenerator, err error) {
	i := 0
	for ; i < len(stages); i++ {
		if stages[i].IsAggregator() {
			aggr = stages[i]
			break
		}
		pre = append(pre, stages[i])
	}
	if aggr == nil {
		return pre, nil, nil, nil
	}
	post = stages[i+1:]
	return pre, aggr, post, nil
}

func allConcurrent(gens []stream.OperatorGenerator) bool {
	for _, g := range gens {
		if !g.IsConcurrent() {
			return false
		}
	}
	return true
}

// fuseEmit composes the aggregator's emitter with the post-stages'
// reducers: x -> postChain([aggr.emitter(x)])[0], where postChain
// applies the post-stage reducers left to right (the leftmost post
// stage acts first on the snapshot).
func fuseEmit(aggr stream.OperatorGenerator, post []stream.OperatorGenerator) stream.Emitter {
	aggrEmit := aggr.Emitter()
	if len(post) == 0 {
		return aggrEmit
	}
	return func(v any) any {
		seq := stream.Of([]stream.Message{aggrEmit(v)})
		for _, p := range post {
			op, err := p.Create(stream.CreateOptions{})
			if err != nil {
				continue
			}
			if r := op.Reducer(); r != nil {
				seq = r(seq)
			}
		}
		out := stream.Collect(seq)
		if len(out) == 0 {
			return nil
		}
		return out[0]
	}
}

// compiled is the fused OperatorGenerator returned by Compile.
type compiled struct {
	id         uuid.UUID
	pre        []stream.OperatorGenerator
	aggr       stream.OperatorGenerator
	post       []stream.OperatorGenerator
	concurrent bool
	combiner   stream.Combiner
	emit       stream.Emitter
	descriptor any
	outerID    uuid.UUID
}

func (c *compiled) ID() uuid.UUID             { return c.id }
func (c *compiled) IsAggregator() bool        { return true }
func (c *compiled) IsConcurrent() bool        { return c.concurrent }
func (c *compiled) Combiner() stream.Combiner { return c.combiner }
func (c *compiled) Emitter() stream.Emitter   { return c.emit }
func (c *compiled) Serializer() stream.Serializer     { return c.aggr.Serializer() }
func (c *compiled) Deserializer() stream.Deserializer { return c.aggr.Deserializer() }
func (c *compiled) RecurTo(outer stream.OperatorGenerator) { c.aggr.RecurTo(outer) }
func (c *compiled) Descriptor() any { return c.descriptor }

func (c *compiled) Create(opts stream.CreateOptions) (stream.StreamOperator, error) {
	return instantiate(c, opts)
}

// Instantiate compiles descriptor and creates it against opts in one
// call: the compile-then-create sequence a caller runs to go from a
// raw descriptor to a ready-to-use operator.
func Instantiate(descriptor any, opts stream.CreateOptions) (stream.Operator, error) {
	gen, err := Compile(descriptor)
	if err != nil {
		return nil, err
	}
	op, err := gen.Create(opts)
	if err != nil {
		return nil, err
	}
	streamOp, ok := op.(stream.Operator)
	if !ok {
		return nil, fmt.Errorf("%w: compiled descriptor did not produce a full operator", stream.ErrCompilation)
	}
	return streamOp, nil
}

type flusher interface{ Flush() }

// operator is the instantiated, running form of a compiled generator.
// It carries its generator's emitter as ambient metadata (stream.Emitted)
// so Snapshot never needs to re-consult the generator.
type operator struct {
	process    func(msgs []stream.Message)
	aggr       stream.Aggregator
	flushables []flusher
	resetAll   func()
	emit       stream.Emitter
}

func (o *operator) ProcessAll(msgs []stream.Message) { o.process(msgs) }

func (o *operator) Process(msg stream.Message) { o.process([]stream.Message{msg}) }

func (o *operator) Flush() {
	for _, f := range o.flushables {
		f.Flush()
	}
}

func (o *operator) Reset() { o.resetAll() }

func (o *operator) Reducer() stream.Reducer { return nil }

func (o *operator) Deref() any { return o.aggr.Deref() }

func (o *operator) Snapshot() any { return o.emit(o.aggr.Deref()) }

// Snapshot computes the emitted snapshot of op: deref() with the
// compiled generator's emitter applied, without requiring the caller to
// hold onto the generator that produced op.
func Snapshot(op stream.StreamOperator) any {
	if e, ok := op.(stream.Emitted); ok {
		return e.Snapshot()
	}
	if a, ok := op.(stream.Aggregator); ok {
		return a.Deref()
	}
	return nil
}

func instantiate(c *compiled, opts stream.CreateOptions) (stream.StreamOperator, error) {
	var preReducers []stream.Reducer
	for _, g := range c.pre {
		op, err := g.Create(opts)
		if err != nil {
			return nil, err
		}
		if r := op.Reducer(); r != nil {
			preReducers = append(preReducers, r)
		}
	}
	preChain := stream.ComposeAll(preReducers)

	aggrGen := c.aggr
	if opts.AggregatorGeneratorWrapper != nil {
		aggrGen = opts.AggregatorGeneratorWrapper(aggrGen)
	}
	aggrOp, err := aggrGen.Create(opts)
	if err != nil {
		return nil, err
	}
	aggr, ok := aggrOp.(stream.Aggregator)
	if !ok {
		return nil, fmt.Errorf("%w: aggregator generator did not produce an Aggregator", stream.ErrCompilation)
	}

	if opts.ExecutionAffinity != nil {
		pool, sem := poolFor(c, opts)
		aggrOp = buffered.New(aggr, pool, sem, buffered.DefaultCapacity, nil, opts.ExecutionAffinity)
		aggr = aggrOp.(stream.Aggregator)
	}

	var postOps []stream.StreamOperator
	for _, g := range c.post {
		op, err := g.Create(opts)
		if err != nil {
			return nil, err
		}
		postOps = append(postOps, op)
	}

	var flushables []flusher
	if f, ok := aggrOp.(flusher); ok {
		flushables = append(flushables, f)
	}
	for _, op := range postOps {
		if f, ok := op.(flusher); ok {
			flushables = append(flushables, f)
		}
	}

	process := buildBridge(c, preChain, aggr, opts)

	compiledOp := &operator{
		process: process,
		aggr:    aggr,
		flushables: flushables,
		resetAll: func() {
			aggr.Reset()
			for _, op := range postOps {
				op.Reset()
			}
		},
		emit: c.emit,
	}

	var result stream.Operator = compiledOp
	if opts.CompiledOperatorWrapper != nil {
		result = opts.CompiledOperatorWrapper(result, opts)
	}
	return result, nil
}

func buildBridge(c *compiled, preChain stream.Reducer, aggr stream.Aggregator, opts stream.CreateOptions) func(msgs []stream.Message) {
	if preChain == nil {
		return func(msgs []stream.Message) { aggr.ProcessAll(msgs) }
	}
	if !c.concurrent {
		return func(msgs []stream.Message) {
			aggr.ProcessAll(stream.Collect(preChain(stream.Of(msgs))))
		}
	}
	pool, sem := poolFor(c, opts)
	return func(msgs []stream.Message) {
		aggr.ProcessAll(parallelFold(pool, sem, preChain, msgs))
	}
}

// parallelFold shards msgs into contiguous slices across pool's
// workers, realizes chain once per shard concurrently, and concatenates
// the results in shard order, so the output keeps the input order.
func parallelFold(pool *executor.Pool, sem *executor.Semaphore, chain stream.Reducer, msgs []stream.Message) []stream.Message {
	n := pool.NumWorkers()
	if n <= 1 || len(msgs) <= 1 {
		return stream.Collect(chain(stream.Of(msgs)))
	}
	shardSize := (len(msgs) + n - 1) / n
	results := make([][]stream.Message, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		start := i * shardSize
		if start >= len(msgs) {
			break
		}
		end := start + shardSize
		if end > len(msgs) {
			end = len(msgs)
		}
		shard := msgs[start:end]
		idx := i
		wg.Add(1)
		pool.SubmitLeased(context.Background(), sem, idx, func(ctx context.Context) {
			defer wg.Done()
			results[idx] = stream.Collect(chain(stream.Of(shard)))
		})
	}
	wg.Wait()
	var out []stream.Message
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// poolFor returns opts.Executor/opts.Semaphore if supplied, else a
// pair lazily created and shared by every instantiation of c: a
// semaphore may be shared across many buffered_aggregator instances
// that belong to the same compiled pipeline.
func poolFor(c *compiled, opts stream.CreateOptions) (*executor.Pool, *executor.Semaphore) {
	if opts.Executor != nil && opts.Semaphore != nil {
		return opts.Executor, opts.Semaphore
	}
	return c.sharedExecutor()
}

var sharedExecutors sync.Map // uuid.UUID -> *executorPair

type executorPair struct {
	pool *executor.Pool
	sem  *executor.Semaphore
}

func (c *compiled) sharedExecutor() (*executor.Pool, *executor.Semaphore) {
	if v, ok := sharedExecutors.Load(c.id); ok {
		p := v.(*executorPair)
		return p.pool, p.sem
	}
	pool := executor.New(0)
	sem := executor.NewSemaphore(2 * pool.NumWorkers())
	actual, _ := sharedExecutors.LoadOrStore(c.id, &executorPair{pool: pool, sem: sem})
	p := actual.(*executorPair)
	return p.pool, p.sem
}
