// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"strings"
	"unicode/utf8"
)

// FallbackTitle is returned when no title can be derived.
const FallbackTitle = "New Chat"

// titleMaxLen is the length above which a candidate title is shortened.
const titleMaxLen = 50

// DeriveTitle derives a conversation title from its first user message.
//
// # Description
//
// Pure function of the message text. The text is split on sentence
// terminators (. ! ?) and the first non-empty sentence becomes the
// title; if that exceeds 50 characters the first four whitespace
// separated words are used instead; if still too long the result is
// truncated to 47 characters plus an ellipsis. Lengths and truncation
// count runes, never bytes, so multibyte input cannot produce an
// invalid UTF-8 title. Empty or terminator-only input yields
// FallbackTitle.
func DeriveTitle(message string) string {
	if message == "" {
		return FallbackTitle
	}

	var first string
	for _, s := range strings.FieldsFunc(message, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if strings.TrimSpace(s) != "" {
			first = s
			break
		}
	}
	if first == "" {
		return FallbackTitle
	}

	title := strings.TrimSpace(first)
	if utf8.RuneCountInString(title) > titleMaxLen {
		words := strings.Fields(title)
		if len(words) > 4 {
			words = words[:4]
		}
		title = strings.Join(words, " ")
	}
	if runes := []rune(title); len(runes) > titleMaxLen {
		title = string(runes[:titleMaxLen-3]) + "..."
	}
	return title
}
