package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const placeholder = "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP"

func sequence(values ...string) (func(context.Context) (string, error), *int) {
	calls := 0
	return func(context.Context) (string, error) {
		v := values[min(calls, len(values)-1)]
		calls++
		return v, nil
	}, &calls
}

func TestUntilSucceedsAfterRecoveries(t *testing.T) {
	action, calls := sequence(placeholder, placeholder, "https://img.example.com/a.jpg")
	recoveries := 0

	got, err := Until(context.Background(), action, IsInlineData, func(context.Context) error {
		recoveries++
		return nil
	}, 5)

	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/a.jpg", got)
	assert.Equal(t, 3, *calls)
	assert.Equal(t, 2, recoveries)
}

func TestUntilExhaustsAndSurfacesLastValue(t *testing.T) {
	action, calls := sequence(placeholder+"1", placeholder+"2", placeholder+"3", placeholder+"4", placeholder+"5")
	recoveries := 0

	_, err := Until(context.Background(), action, IsInlineData, func(context.Context) error {
		recoveries++
		return nil
	}, 5)

	var maxErr *MaxTriesError[string]
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 5, maxErr.Tries)
	assert.Equal(t, placeholder+"5", maxErr.Last)
	assert.Equal(t, 5, *calls)
	assert.Equal(t, 4, recoveries)
	assert.True(t, IsExhausted(err))
	assert.True(t, IsExhausted(fmt.Errorf("detail images: %w", err)))
}

func TestUntilNoRecoveryOnFirstSuccess(t *testing.T) {
	action, calls := sequence("https://img.example.com/a.jpg")
	recovered := false

	_, err := Until(context.Background(), action, IsInlineData, func(context.Context) error {
		recovered = true
		return nil
	}, 5)

	require.NoError(t, err)
	assert.Equal(t, 1, *calls)
	assert.False(t, recovered)
}

func TestUntilActionErrorAbortsImmediately(t *testing.T) {
	boom := errors.New("element detached")
	calls := 0
	_, err := Until(context.Background(), func(context.Context) ([]string, error) {
		calls++
		return nil, boom
	}, AnyInline, nil, 5)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.False(t, IsExhausted(err))
}

func TestUntilRecoverErrorIsReturned(t *testing.T) {
	action, _ := sequence(placeholder)
	boom := errors.New("scroll failed")
	_, err := Until(context.Background(), action, IsInlineData, func(context.Context) error {
		return boom
	}, 3)
	assert.ErrorIs(t, err, boom)
}

func TestUntilTreatsNonPositiveTriesAsOne(t *testing.T) {
	action, calls := sequence(placeholder)
	_, err := Until(context.Background(), action, IsInlineData, nil, 0)
	assert.True(t, IsExhausted(err))
	assert.Equal(t, 1, *calls)
}

func TestIsInlineData(t *testing.T) {
	assert.True(t, IsInlineData(placeholder))
	assert.True(t, IsInlineData("  DATA:image/png;base64,AAAA"))
	assert.True(t, IsInlineData("blob;base64,AAAA"))
	assert.False(t, IsInlineData("https://img.example.com/a.jpg"))
	assert.False(t, IsInlineData(""))
	assert.True(t, AnyInline([]string{"https://a", placeholder}))
	assert.False(t, AnyInline(nil))
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Max: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, b.Delay(0))
	assert.Equal(t, 100*time.Millisecond, b.Delay(1))
	assert.Equal(t, 200*time.Millisecond, b.Delay(2))
	assert.Equal(t, 300*time.Millisecond, b.Delay(3))
	assert.Equal(t, defaultBase, Backoff{}.Delay(1))
}

func TestBackoffDoRetriesRetryableErrors(t *testing.T) {
	timeout := errors.New("select timeout")
	calls, retries := 0, 0
	b := Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond, Attempts: 3, OnRetry: func(int, error) { retries++ }}

	err := b.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return timeout
		}
		return nil
	}, func(err error) bool { return errors.Is(err, timeout) })

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestBackoffDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("no such option")
	calls := 0
	err := Backoff{Base: time.Millisecond, Attempts: 3}.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	}, func(err error) bool { return false })

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestBackoffDoGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	err := Backoff{Base: time.Millisecond, Attempts: 2}.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("flaky")
	}, nil)

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}
