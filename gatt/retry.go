// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package gatt

import "context"

// Result is the outcome of Retry. Err is nil on success.
type Result[T any] struct {
	Value    T
	Attempts int
	Err      error
}

// Retry calls op until it succeeds, returns an error retryable rejects, the
// context is done, or attempts calls have been made. At least one call is
// always made.
func Retry[T any](ctx context.Context, attempts int, retryable func(error) bool, op func(ctx context.Context, attempt int) (T, error)) Result[T] {
	if attempts < 1 {
		attempts = 1
	}
	var res Result[T]
	for res.Attempts < attempts {
		res.Attempts++
		res.Value, res.Err = op(ctx, res.Attempts)
		if res.Err == nil || ctx.Err() != nil || !retryable(res.Err) {
			break
		}
	}
	return res
}
