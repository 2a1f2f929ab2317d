// Package buffered adapts a downstream aggregator so its per-message
// entry point is cheap and off-thread, batching messages into a
// capacity-bounded buffer and flushing it to the executor under a
// CAS-swap.
package buffered

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/tarungka/streamcore/executor"
	"github.com/tarungka/streamcore/stream"
)

// DefaultCapacity is the buffer size used when New is given capacity <= 0.
const DefaultCapacity = 1024

// FNVHash is the default shard-routing hash: FNV-1a over key's bytes.
func FNVHash(key []byte) uint64 {
	h := fnv.New64a()
	h.Write(key)
	return h.Sum64()
}

type accumulatorBuf struct {
	mu   sync.Mutex
	msgs []stream.Message
	cap  int
}

func newAccumulatorBuf(capacity int) *accumulatorBuf {
	return &accumulatorBuf{cap: capacity}
}

// append reports whether msg was accepted; false means the buffer is at
// capacity and the caller must swap in a fresh one.
func (b *accumulatorBuf) append(msg stream.Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.msgs) >= b.cap {
		return false
	}
	b.msgs = append(b.msgs, msg)
	return true
}

func (b *accumulatorBuf) drain() []stream.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.msgs
	b.msgs = nil
	return out
}

// Aggregator adapts downstream so Process(msg) is cheap: messages land
// in a fixed-capacity buffer and are flushed to the executor in
// batches. It implements stream.Operator in full, so it presents itself
// as an aggregator to any enclosing compilation.
type Aggregator struct {
	downstream stream.Aggregator
	pool       *executor.Pool
	sem        *executor.Semaphore
	limiter    *rate.Limiter
	capacity   int
	hashKey    []byte // nil means route to a random worker
	affinity   *int   // execution_affinity override, takes precedence over hashKey

	bufPtr atomic.Pointer[accumulatorBuf]
}

// New builds a buffered aggregator over downstream. pool and sem are
// expected to be shared with every other buffered aggregator compiled
// against the same pipeline, and so is the retry limiter: it is
// borrowed from pool rather than constructed per aggregator, so every
// buffered aggregator feeding the same pool backs off against one
// shared budget. hashKey, if non-nil, routes flush batches to
// worker(hash(hashKey) mod pool.NumWorkers()); if affinity is non-nil
// it overrides hashKey with a fixed worker index (a split-assigned
// execution affinity).
func New(downstream stream.Aggregator, pool *executor.Pool, sem *executor.Semaphore, capacity int, hashKey []byte, affinity *int) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	a := &Aggregator{
		downstream: downstream,
		pool:       pool,
		sem:        sem,
		limiter:    pool.RetryLimiter(),
		capacity:   capacity,
		hashKey:    hashKey,
		affinity:   affinity,
	}
	a.bufPtr.Store(newAccumulatorBuf(capacity))
	return a
}

func (a *Aggregator) workerIndex() int {
	if a.affinity != nil {
		return *a.affinity
	}
	if a.hashKey != nil {
		return int(FNVHash(a.hashKey) % uint64(a.pool.NumWorkers()))
	}
	return rand.IntN(a.pool.NumWorkers())
}

// Process is the cheap, single-message entry point.
func (a *Aggregator) Process(msg stream.Message) {
	a.ProcessCtx(context.Background(), msg)
}

// ProcessCtx is Process with an explicit context, so a caller already
// holding the exclusive lock (flush/reset) can avoid a self-deadlock on
// overflow; see dispatchFlush.
func (a *Aggregator) ProcessCtx(ctx context.Context, msg stream.Message) {
	for {
		buf := a.bufPtr.Load()
		if buf.append(msg) {
			return
		}
		fresh := newAccumulatorBuf(a.capacity)
		if a.bufPtr.CompareAndSwap(buf, fresh) {
			a.dispatchFlush(ctx, buf)
			continue
		}
		// Lost the CAS race: another goroutine swapped first. Back off
		// before retrying against whatever buffer is current now,
		// rate-limited rather than a bare spin.
		_ = a.limiter.Wait(ctx)
	}
}

// dispatchFlush flushes buf off-thread, unless ctx already holds the
// exclusive lock; in that case the calling goroutine already owns the
// barrier, so dispatching to a worker and waiting on it would
// self-deadlock; flush synchronously instead.
func (a *Aggregator) dispatchFlush(ctx context.Context, buf *accumulatorBuf) {
	drain := func(_ context.Context) { a.flushBuf(buf) }
	if executor.HeldExclusively(ctx) {
		drain(ctx)
		return
	}
	a.pool.SubmitLeased(ctx, a.sem, a.workerIndex(), drain)
}

func (a *Aggregator) flushBuf(buf *accumulatorBuf) {
	msgs := buf.drain()
	if len(msgs) == 0 {
		return
	}
	a.downstream.ProcessAll(msgs)
}

// ProcessAll folds an entire batch through the per-message buffer path.
func (a *Aggregator) ProcessAll(msgs []stream.Message) {
	for _, m := range msgs {
		a.Process(m)
	}
}

// Flush acquires the exclusive lock, synchronously drains the current
// buffer, and flushes downstream if it is itself flushable.
func (a *Aggregator) Flush() {
	_ = a.sem.Exclusive(context.Background(), func(ctx context.Context) {
		buf := a.bufPtr.Swap(newAccumulatorBuf(a.capacity))
		a.flushBuf(buf)
		if f, ok := any(a.downstream).(interface{ Flush() }); ok {
			f.Flush()
		}
	})
}

func (a *Aggregator) Reset()         { a.downstream.Reset() }
func (a *Aggregator) Deref() any     { return a.downstream.Deref() }
func (a *Aggregator) Reducer() stream.Reducer { return nil }
