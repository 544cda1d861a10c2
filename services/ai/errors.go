// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ai

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the provider pipeline. Callers classify
// failures with errors.Is / errors.As rather than string matching.
var (
	// ErrUnsupportedProvider is returned when a request names a provider
	// this build does not know.
	ErrUnsupportedProvider = errors.New("unsupported AI provider")

	// ErrCredentialMissing is returned when the named provider exists but
	// no credential is configured for it.
	ErrCredentialMissing = errors.New("provider credential missing")

	// ErrStreamStopped is returned by a stream whose consumer cancelled it.
	ErrStreamStopped = errors.New("stream stopped")
)

// ValidationError reports a request rejected before any vendor call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ProviderError wraps a failure from an upstream AI vendor. Provider is
// the logical provider name, StatusCode the vendor HTTP status when one
// was received (0 for transport failures).
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
