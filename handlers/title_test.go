// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

// TestDeriveTitle_FirstSentence verifies that a short first sentence
// becomes the title as-is.
func TestDeriveTitle_FirstSentence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Hello", DeriveTitle("Hello! How are you?"))
	assert.Equal(t, "Explain quicksort in simple terms", DeriveTitle("Explain quicksort in simple terms"))
	assert.Equal(t, "What is Go", DeriveTitle("What is Go? I keep hearing about it."))
}

// TestDeriveTitle_Empty verifies the fixed placeholder for empty and
// terminator-only input.
func TestDeriveTitle_Empty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, FallbackTitle, DeriveTitle(""))
	assert.Equal(t, FallbackTitle, DeriveTitle("!!!"))
	assert.Equal(t, FallbackTitle, DeriveTitle("...  ?!"))
}

// TestDeriveTitle_LongSentence verifies the first-four-words fallback
// for an over-long first sentence.
func TestDeriveTitle_LongSentence(t *testing.T) {
	t.Parallel()

	msg := "Please give me a very detailed explanation of the history of distributed systems"
	got := DeriveTitle(msg)
	assert.Equal(t, "Please give me a", got)
	assert.LessOrEqual(t, len(got), 50)
}

// TestDeriveTitle_Truncation verifies the 47-character truncation with
// ellipsis when even four words are too long.
func TestDeriveTitle_Truncation(t *testing.T) {
	t.Parallel()

	msg := strings.Repeat("abcdefghijklmnopqrst", 4) // one 80-char word
	got := DeriveTitle(msg)
	assert.Len(t, got, 50)
	assert.True(t, strings.HasSuffix(got, "..."))
}

// TestDeriveTitle_MultibyteTruncation verifies truncation counts runes,
// so multibyte input never yields a title cut inside a character.
func TestDeriveTitle_MultibyteTruncation(t *testing.T) {
	t.Parallel()

	msg := strings.Repeat("分散システムの歴史について詳しく教えてください", 4)
	got := DeriveTitle(msg)
	assert.True(t, utf8.ValidString(got), "truncation must not split a rune")
	assert.Equal(t, 50, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))

	short := "こんにちは! 元気ですか?"
	assert.Equal(t, "こんにちは", DeriveTitle(short))
}

// TestDeriveTitle_Deterministic verifies purity: the same input always
// yields the same output.
func TestDeriveTitle_Deterministic(t *testing.T) {
	t.Parallel()

	msg := "Summarize the plot of Hamlet. Then compare it to Macbeth."
	assert.Equal(t, DeriveTitle(msg), DeriveTitle(msg))
}
