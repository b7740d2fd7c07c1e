// Package workpool runs data parallel work over a fixed number of
// goroutines. Results are kept in input order so folding them produces the
// same aggregate no matter how the work was scheduled.
package workpool

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool limits the number of goroutines running a parallel pass.
type Pool struct {
	size int
}

// New constructs a pool of the specified size. A size of zero or less uses
// the number of available CPUs.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}

	return &Pool{size: size}
}

// Size returns the number of goroutines the pool runs at most.
func (p *Pool) Size() int {
	return p.size
}

// Map calls fn for every item in parallel and returns the results in the
// order of the items. The first error stops new work from being scheduled
// and is returned.
func Map[T any, R any](p *Pool, items []T, fn func(int, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))

	var g errgroup.Group
	g.SetLimit(p.size)

	for i, item := range items {
		g.Go(func() error {
			r, err := fn(i, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// MapReduce calls fn for every item in parallel and folds the results with
// reduce in the order of the items, starting from zero.
func MapReduce[T any, R any](p *Pool, items []T, fn func(int, T) R, zero R, reduce func(R, R) R) R {
	results, _ := Map(p, items, func(i int, item T) (R, error) {
		return fn(i, item), nil
	})

	acc := zero
	for _, r := range results {
		acc = reduce(acc, r)
	}

	return acc
}

// Each calls fn for every item in parallel and waits for all of them.
func Each[T any](p *Pool, items []T, fn func(int, T)) {
	Map(p, items, func(i int, item T) (struct{}, error) {
		fn(i, item)
		return struct{}{}, nil
	})
}
