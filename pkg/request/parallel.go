package request

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// ParallelRequests is a Sendable that sends all requests concurrently.
type ParallelRequests []Sendable

// Parallel wraps requests to one Sendable.
func Parallel(requests ...Sendable) ParallelRequests {
	return requests
}

// SendOrErr sends all requests and returns all errors that have occurred, if any.
func (v ParallelRequests) SendOrErr(ctx context.Context) error {
	wg := NewWaitGroup(ctx)
	for _, r := range v {
		wg.Send(r)
	}
	return wg.Wait()
}

// ExecuteParallel executes requests of the same types concurrently, at most limit at once.
// Results are returned in the order of the requests, each carries its own status or failure.
// The error aggregates configuration errors only, the Result of such a request is nil.
func ExecuteParallel[S, E any](ctx context.Context, limit int, requests ...*HTTPRequest[S, E]) ([]*Result[S, E], error) {
	results := make([]*Result[S, E], len(requests))

	lock := &sync.Mutex{}
	errs := &multierror.Error{}

	group := &errgroup.Group{}
	if limit > 0 {
		group.SetLimit(limit)
	}
	for i, r := range requests {
		group.Go(func() error {
			result, err := r.Execute(ctx)
			if err != nil {
				lock.Lock()
				errs = multierror.Append(errs, err)
				lock.Unlock()
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = group.Wait()

	if len(errs.Errors) == 1 {
		return results, errs.Errors[0]
	}
	return results, errs.ErrorOrNil()
}
