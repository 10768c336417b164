// Package retry holds the two retry shapes used during extraction:
// Until re-runs an action with a recovery step while its result looks
// like a placeholder, and Backoff re-runs a failing call with capped
// exponential delays.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxTriesError is returned by Until when every attempt produced a
// value the predicate rejected. Last is the final observed value.
type MaxTriesError[T any] struct {
	Tries int
	Last  T
}

func (e *MaxTriesError[T]) Error() string {
	return fmt.Sprintf("retry: still failing after %d tries, last value %v", e.Tries, e.Last)
}

func (e *MaxTriesError[T]) exhausted() {}

type exhaustion interface {
	exhausted()
}

// IsExhausted reports whether err wraps a MaxTriesError of any type.
func IsExhausted(err error) bool {
	var e exhaustion
	return errors.As(err, &e)
}

// Until runs action and, while predicate(result) holds, runs recovery and
// tries again, for at most maxTries attempts. recovery only runs between
// attempts. An error from action is returned immediately.
func Until[T any](
	ctx context.Context,
	action func(context.Context) (T, error),
	predicate func(T) bool,
	recovery func(context.Context) error,
	maxTries int,
) (T, error) {
	if maxTries < 1 {
		maxTries = 1
	}

	var last T
	for try := 1; try <= maxTries; try++ {
		if try > 1 {
			if err := ctx.Err(); err != nil {
				return last, err
			}
			if recovery != nil {
				if err := recovery(ctx); err != nil {
					return last, fmt.Errorf("recover before try %d: %w", try, err)
				}
			}
		}

		v, err := action(ctx)
		if err != nil {
			return v, err
		}
		if !predicate(v) {
			return v, nil
		}
		last = v
	}
	return last, &MaxTriesError[T]{Tries: maxTries, Last: last}
}

// IsInlineData reports whether an image source is an inline placeholder
// rather than a real URL.
func IsInlineData(src string) bool {
	s := strings.TrimSpace(strings.ToLower(src))
	return strings.HasPrefix(s, "data:") || strings.Contains(s, ";base64,")
}

// AnyInline reports whether any source is an inline placeholder.
func AnyInline(srcs []string) bool {
	for _, s := range srcs {
		if IsInlineData(s) {
			return true
		}
	}
	return false
}
