package retry

import "context"

// DoTyped is a type-safe generic wrapper around Retryer.DoWithResult.
//
//	text, err := retry.DoTyped(r, ctx, func() (string, error) {
//	    return backend.Send(ctx, req)
//	})
func DoTyped[T any](r Retryer, ctx context.Context, fn func() (T, error)) (T, error) {
	result, err := r.DoWithResult(ctx, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
