// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ai

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Stream watchdog defaults. A vendor that sends nothing for this long is
// treated as failed rather than holding the consumer open forever.
const (
	// DefaultFirstFragmentTimeout bounds the wait for the first fragment.
	DefaultFirstFragmentTimeout = 30 * time.Second

	// DefaultStallTimeout bounds the gap between consecutive fragments.
	DefaultStallTimeout = 60 * time.Second
)

// FragmentStream is a pull iterator over the incremental output of a
// streamed completion.
//
// # Description
//
// Next blocks until the next fragment is available and returns it, or
// returns io.EOF after the final fragment of a successful stream, or a
// non-EOF error if the stream failed mid-flight. Once Next returns any
// error the stream is exhausted and further calls return the same error.
// Close releases the underlying vendor connection and is safe to call at
// any time, including concurrently with Next; abandoning a stream without
// draining it requires only Close.
type FragmentStream interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// fragment is one producer-side item: either text or a terminal error.
type fragment struct {
	text string
	err  error
}

// fragmentStream is the channel-backed FragmentStream both adapters use.
// A producer goroutine pushes fragments with send/fail/finish; the
// consumer pulls them through Next with watchdog timeouts.
type fragmentStream struct {
	ch       chan fragment
	done     chan struct{}
	cancel   context.CancelFunc
	closeFn  func() error
	received bool
	final    error

	firstTimeout time.Duration
	stallTimeout time.Duration
}

var _ FragmentStream = (*fragmentStream)(nil)

// newFragmentStream creates a stream whose producer side is fed by the
// adapter. cancel aborts the vendor request; closeFn releases the vendor
// response body and may be nil.
func newFragmentStream(cancel context.CancelFunc, closeFn func() error) *fragmentStream {
	return &fragmentStream{
		ch:           make(chan fragment, 16),
		done:         make(chan struct{}),
		cancel:       cancel,
		closeFn:      closeFn,
		firstTimeout: DefaultFirstFragmentTimeout,
		stallTimeout: DefaultStallTimeout,
	}
}

// send delivers one fragment to the consumer. It returns false once the
// consumer has closed the stream, at which point the producer should
// stop. Close takes priority over channel capacity, so a producer can
// never claim delivery after the consumer is gone.
func (s *fragmentStream) send(text string) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.ch <- fragment{text: text}:
		return true
	case <-s.done:
		return false
	}
}

// finish marks a successful end of stream.
func (s *fragmentStream) finish() {
	select {
	case s.ch <- fragment{err: io.EOF}:
	case <-s.done:
	}
}

// fail marks a mid-stream failure. err must be non-nil.
func (s *fragmentStream) fail(err error) {
	select {
	case s.ch <- fragment{err: err}:
	case <-s.done:
	}
}

// Next returns the next fragment, io.EOF at a successful end, or the
// terminal error of a failed stream.
//
// Cancellation and Close take priority over buffered fragments: once
// the consumer's context is cancelled or the stream is closed, Next
// never returns another fragment, no matter how many are queued.
func (s *fragmentStream) Next(ctx context.Context) (string, error) {
	if s.final != nil {
		return "", s.final
	}

	select {
	case <-s.done:
		s.final = ErrStreamStopped
		return "", s.final
	default:
	}
	if err := ctx.Err(); err != nil {
		s.final = err
		s.cancel()
		return "", s.final
	}

	timeout := s.firstTimeout
	if s.received {
		timeout = s.stallTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-s.ch:
		if f.err != nil {
			s.final = f.err
			s.cancel()
			return "", f.err
		}
		s.received = true
		return f.text, nil
	case <-timer.C:
		s.final = fmt.Errorf("stream stalled after %s: %w", timeout, context.DeadlineExceeded)
		s.cancel()
		return "", s.final
	case <-ctx.Done():
		s.final = ctx.Err()
		s.cancel()
		return "", s.final
	case <-s.done:
		s.final = ErrStreamStopped
		return "", s.final
	}
}

// Close aborts the vendor request and releases its resources. Safe to
// call more than once.
func (s *fragmentStream) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	s.cancel()
	if s.closeFn != nil {
		return s.closeFn()
	}
	return nil
}

// Collect drains a stream to completion and returns the concatenated
// output. The stream is closed before Collect returns regardless of
// outcome.
func Collect(ctx context.Context, stream FragmentStream) (string, error) {
	defer stream.Close()

	var sb strings.Builder
	for {
		text, err := stream.Next(ctx)
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(text)
	}
}
