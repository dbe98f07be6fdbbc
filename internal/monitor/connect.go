package monitor

import "context"

// awaitConnect runs dial in the background and waits for it or for ctx.
// A dial that succeeds after ctx is done is handed to drop, so the link
// it opened does not stay up unowned.
func awaitConnect[T any](ctx context.Context, dial func() (T, error), drop func(T)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := dial()
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				drop(r.v)
			}
		}()
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}
