package request

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// RunGroupConcurrencyLimit is the maximum number of concurrent requests in one RunGroup.
const RunGroupConcurrencyLimit = 32

// RunGroup collects requests by the Add method, RunAndWait sends them concurrently.
//
// Sending stops at the first unsuccessful request, its error is returned by RunAndWait.
// Requests waiting for a free slot are then skipped.
//
// Use WaitGroup to send requests immediately or to collect all errors.
type RunGroup struct {
	ctx   context.Context
	group *errgroup.Group
	sem   *semaphore.Weighted

	lock    *sync.Mutex
	running bool
	pending []Sendable
}

// NewRunGroup creates a new RunGroup.
func NewRunGroup(ctx context.Context) *RunGroup {
	return NewRunGroupWithLimit(ctx, RunGroupConcurrencyLimit)
}

// NewRunGroupWithLimit creates a new RunGroup with the concurrent requests limit.
func NewRunGroupWithLimit(ctx context.Context, limit int64) *RunGroup {
	group, ctx := errgroup.WithContext(ctx)
	return &RunGroup{ctx: ctx, group: group, sem: semaphore.NewWeighted(limit), lock: &sync.Mutex{}}
}

// Add schedules the request.
// It is queued until RunAndWait is called, after that, for example from a listener, it is sent immediately.
func (g *RunGroup) Add(request Sendable) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if !g.running {
		g.pending = append(g.pending, request)
		return
	}
	g.start(request)
}

// RunAndWait sends all scheduled requests and waits until all of them, including added ones, are completed.
func (g *RunGroup) RunAndWait() error {
	g.lock.Lock()
	g.running = true
	for _, request := range g.pending {
		g.start(request)
	}
	g.pending = nil
	g.lock.Unlock()
	return g.group.Wait()
}

func (g *RunGroup) start(request Sendable) {
	g.group.Go(func() error {
		if err := g.sem.Acquire(g.ctx, 1); err != nil {
			// A previous request failed
			return err
		}
		defer g.sem.Release(1)
		if err := g.ctx.Err(); err != nil {
			return err
		}
		return request.SendOrErr(g.ctx)
	})
}
