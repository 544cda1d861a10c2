// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ai

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStream creates a fragmentStream with short watchdog timeouts.
func newTestStream() *fragmentStream {
	_, cancel := context.WithCancel(context.Background())
	fs := newFragmentStream(cancel, nil)
	fs.firstTimeout = 200 * time.Millisecond
	fs.stallTimeout = 200 * time.Millisecond
	return fs
}

// TestFragmentStream_OrderedDelivery verifies fragments come out in
// producer order and the stream ends with io.EOF.
func TestFragmentStream_OrderedDelivery(t *testing.T) {
	t.Parallel()

	fs := newTestStream()
	go func() {
		fs.send("a")
		fs.send("b")
		fs.send("c")
		fs.finish()
	}()

	ctx := context.Background()
	var got []string
	for {
		text, err := fs.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, text)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)

	// Exhausted streams keep returning the terminal error.
	_, err := fs.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

// TestFragmentStream_MidStreamFailure verifies a producer failure
// surfaces after the fragments that preceded it.
func TestFragmentStream_MidStreamFailure(t *testing.T) {
	t.Parallel()

	fs := newTestStream()
	wantErr := &ProviderError{Provider: ProviderGroq, Err: errors.New("boom")}
	go func() {
		fs.send("partial")
		fs.fail(wantErr)
	}()

	ctx := context.Background()
	text, err := fs.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "partial", text)

	_, err = fs.Next(ctx)
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ProviderGroq, provErr.Provider)
}

// TestFragmentStream_StallTimeout verifies that a silent producer trips
// the watchdog instead of hanging the consumer.
func TestFragmentStream_StallTimeout(t *testing.T) {
	t.Parallel()

	fs := newTestStream()

	_, err := fs.Next(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestFragmentStream_CancelBeatsBufferedFragments verifies that a
// cancelled consumer never sees another fragment, even when plenty are
// already buffered. Without strict priority the buffered channel wins
// the select about half the time.
func TestFragmentStream_CancelBeatsBufferedFragments(t *testing.T) {
	t.Parallel()

	for trial := 0; trial < 50; trial++ {
		fs := newTestStream()
		for i := 0; i < 10; i++ {
			require.True(t, fs.send("buffered"))
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := fs.Next(ctx)
		require.ErrorIs(t, err, context.Canceled,
			"buffered fragments must not be delivered after cancellation")
	}
}

// TestFragmentStream_CloseBeatsBufferedFragments verifies the same
// priority for Close: queued fragments are discarded, not delivered.
func TestFragmentStream_CloseBeatsBufferedFragments(t *testing.T) {
	t.Parallel()

	for trial := 0; trial < 50; trial++ {
		fs := newTestStream()
		for i := 0; i < 10; i++ {
			require.True(t, fs.send("buffered"))
		}
		require.NoError(t, fs.Close())

		assert.False(t, fs.send("late"), "send after Close must report a dead consumer")

		_, err := fs.Next(context.Background())
		require.ErrorIs(t, err, ErrStreamStopped)
	}
}

// TestFragmentStream_ConsumerCancel verifies context cancellation
// unblocks Next.
func TestFragmentStream_ConsumerCancel(t *testing.T) {
	t.Parallel()

	fs := newTestStream()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := fs.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestFragmentStream_Close verifies Close unblocks a pending producer
// and terminates the consumer with ErrStreamStopped.
func TestFragmentStream_Close(t *testing.T) {
	t.Parallel()

	fs := newTestStream()
	require.NoError(t, fs.Close())
	assert.NoError(t, fs.Close(), "Close must be idempotent")

	assert.False(t, fs.send("late"), "send after Close must report a dead consumer")

	_, err := fs.Next(context.Background())
	assert.ErrorIs(t, err, ErrStreamStopped)
}

// TestCollect verifies draining a stream into its concatenated output.
func TestCollect(t *testing.T) {
	t.Parallel()

	fs := newTestStream()
	go func() {
		fs.send("Hello, ")
		fs.send("world")
		fs.send("!")
		fs.finish()
	}()

	got, err := Collect(context.Background(), fs)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", got)
}

// TestCollect_Error verifies Collect returns the partial prefix along
// with the terminal error.
func TestCollect_Error(t *testing.T) {
	t.Parallel()

	fs := newTestStream()
	go func() {
		fs.send("par")
		fs.fail(errors.New("vendor died"))
	}()

	got, err := Collect(context.Background(), fs)
	assert.Error(t, err)
	assert.Equal(t, "par", got)
}
