// Package rendezvous provides the counting signals the actors synchronize on.
package rendezvous

import (
	"context"
	"fmt"

	"github.com/pingcap/errors"
	"golang.org/x/sync/semaphore"
)

// Semaphore is a counting semaphore that starts at zero. Post increments the
// count and Wait blocks until the count covers the request, then decrements it.
// A post is never lost: posting before anyone waits is allowed.
//
// The count is bounded by the capacity given to NewSemaphore. Posting past it
// means the protocol handed out more signals than there can be consumers, which
// is a bug, so Post panics.
type Semaphore struct {
	name     string
	capacity int
	sem      *semaphore.Weighted
}

// NewSemaphore creates a semaphore with a zero count that can hold at most
// capacity outstanding posts.
func NewSemaphore(name string, capacity int) *Semaphore {
	if capacity < 0 {
		panic(fmt.Sprintf("rendezvous: negative capacity %d for %s", capacity, name))
	}
	sem := semaphore.NewWeighted(int64(capacity))
	// drain the weighted semaphore so that Release acts as post
	if !sem.TryAcquire(int64(capacity)) {
		panic(fmt.Sprintf("rendezvous: cannot drain fresh semaphore %s", name))
	}
	return &Semaphore{name: name, capacity: capacity, sem: sem}
}

// Name returns the name given at construction.
func (s *Semaphore) Name() string {
	return s.name
}

// Post adds n signals.
func (s *Semaphore) Post(n int) {
	if n <= 0 {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			panic(fmt.Sprintf("rendezvous: %s posted past capacity %d: %v", s.name, s.capacity, r))
		}
	}()
	s.sem.Release(int64(n))
}

// Wait consumes n signals, blocking until they are available or ctx is done.
func (s *Semaphore) Wait(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if n > s.capacity {
		return errors.Errorf("rendezvous: %s wait for %d exceeds capacity %d", s.name, n, s.capacity)
	}
	if err := s.sem.Acquire(ctx, int64(n)); err != nil {
		return errors.Annotatef(err, "wait on %s", s.name)
	}
	return nil
}
