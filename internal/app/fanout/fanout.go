// Package fanout runs a fixed number of independent operations concurrently
// and folds them into one outcome.
//
// Results are stored by issue index, never by completion order. The first
// failure settles the whole operation; results that arrive after that are
// dropped. Run returns as soon as the outcome is known and does not wait for
// stragglers, so fn must own the cleanup of anything it creates late.
package fanout

import (
	"context"
	"sync"
	"sync/atomic"
)

// failure is a single-assignment error cell.
type failure struct {
	once sync.Once
	err  error
	set  atomic.Bool
}

func (f *failure) trip(err error) bool {
	tripped := false
	f.once.Do(func() {
		f.err = err
		f.set.Store(true)
		tripped = true
	})
	return tripped
}

func (f *failure) get() error {
	if !f.set.Load() {
		return nil
	}
	return f.err
}

// Run calls fn for every index in [0, n) concurrently and returns the n results
// in index order, or the first error observed.
func Run[T any](ctx context.Context, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	if n <= 0 {
		return []T{}, nil
	}

	slots := make([]T, n)
	var remaining atomic.Int64
	remaining.Store(int64(n))

	var fail failure
	done := make(chan struct{})
	var settle sync.Once
	finish := func() { settle.Do(func() { close(done) }) }

	for i := range n {
		go func(i int) {
			v, err := fn(ctx, i)
			if err != nil {
				if fail.trip(err) {
					finish()
				}
				return
			}
			slots[i] = v
			if remaining.Add(-1) == 0 {
				finish()
			}
		}(i)
	}

	select {
	case <-done:
	case <-ctx.Done():
		select {
		case <-done:
		default:
			fail.trip(ctx.Err())
			finish()
		}
	}

	if err := fail.get(); err != nil {
		return nil, err
	}
	return slots, nil
}
