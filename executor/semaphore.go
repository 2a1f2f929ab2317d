package executor

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// contextKey namespaces the thread-ambient values carried across
// Submit by the submitting goroutine and re-bound by the worker
// goroutine that runs the submitted closure.
type contextKey int

const (
	taskIDKey contextKey = iota
	exclusiveKey
)

// Semaphore is a leased permit set: a counting semaphore of logical-task
// permits, plus an exclusive-lock barrier used by flush/reset.
type Semaphore struct {
	weighted *semaphore.Weighted
	weight   int64
	mu       sync.Mutex
	leases   map[uuid.UUID]int
}

// NewSemaphore builds a Semaphore with permits logical-task permits.
func NewSemaphore(permits int) *Semaphore {
	return &Semaphore{
		weighted: semaphore.NewWeighted(int64(permits)),
		weight:   int64(permits),
		leases:   make(map[uuid.UUID]int),
	}
}

// newTaskID mints a time-ordered v7 id for a logical task lease,
// falling back to a random v4 id on the rare entropy-read failure
// NewV7 can return.
func newTaskID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// Lease acquires (or joins) a logical task permit for ctx, blocking if
// none is free. If ctx already runs inside a task, Lease joins it
// (increments its lease count) without touching the semaphore at all.
// The returned context carries the task id; the release func must be
// called exactly once when the caller's unit of work completes.
func (s *Semaphore) Lease(ctx context.Context) (context.Context, func(), error) {
	if id, ok := ctx.Value(taskIDKey).(uuid.UUID); ok {
		s.join(id)
		return ctx, func() { s.release(id) }, nil
	}
	if err := s.weighted.Acquire(ctx, 1); err != nil {
		return ctx, func() {}, err
	}
	id := newTaskID()
	s.join(id)
	return context.WithValue(ctx, taskIDKey, id), func() { s.release(id) }, nil
}

// TryLease is the non-blocking counterpart of Lease, for callers that
// must never suspend (SubmitLeased uses the blocking Lease). ok is
// false when ctx runs outside any task and no fresh permit is
// immediately available; the caller should treat that as a capacity
// stall.
func (s *Semaphore) TryLease(ctx context.Context) (context.Context, func(), bool) {
	if id, ok := ctx.Value(taskIDKey).(uuid.UUID); ok {
		s.join(id)
		return ctx, func() { s.release(id) }, true
	}
	if !s.weighted.TryAcquire(1) {
		return ctx, func() {}, false
	}
	id := newTaskID()
	s.join(id)
	return context.WithValue(ctx, taskIDKey, id), func() { s.release(id) }, true
}

func (s *Semaphore) join(id uuid.UUID) {
	s.mu.Lock()
	s.leases[id]++
	s.mu.Unlock()
}

func (s *Semaphore) release(id uuid.UUID) {
	s.mu.Lock()
	s.leases[id]--
	done := s.leases[id] <= 0
	if done {
		delete(s.leases, id)
	}
	s.mu.Unlock()
	if done {
		s.weighted.Release(1)
	}
}

// Exclusive acquires every permit as a barrier (used by flush/reset)
// unless ctx is already inside an exclusive section, in which case it
// runs fn in place without re-acquiring (nested calls on the same
// logical path never self-deadlock).
func (s *Semaphore) Exclusive(ctx context.Context, fn func(ctx context.Context)) error {
	if HeldExclusively(ctx) {
		fn(ctx)
		return nil
	}
	if err := s.weighted.Acquire(ctx, s.weight); err != nil {
		return err
	}
	defer s.weighted.Release(s.weight)
	fn(context.WithValue(ctx, exclusiveKey, true))
	return nil
}

// HeldExclusively reports whether ctx is already inside an Exclusive
// section on some semaphore's logical path.
func HeldExclusively(ctx context.Context) bool {
	held, _ := ctx.Value(exclusiveKey).(bool)
	return held
}
