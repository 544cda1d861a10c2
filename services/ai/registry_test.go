// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ai

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegistry_CachesPerProviderAndKey verifies one adapter per
// (provider, credential) pair.
func TestRegistry_CachesPerProviderAndKey(t *testing.T) {
	t.Parallel()

	r := NewRegistry(RegistryConfig{})

	a, err := r.Provider(ProviderGroq, "key-1")
	require.NoError(t, err)
	b, err := r.Provider(ProviderGroq, "key-1")
	require.NoError(t, err)
	assert.Same(t, a, b, "same pair must reuse the cached adapter")

	c, err := r.Provider(ProviderGroq, "key-2")
	require.NoError(t, err)
	assert.NotSame(t, a, c, "a different credential is a different adapter")

	d, err := r.Provider(ProviderGemini, "key-1")
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, d.Name())

	assert.Equal(t, 3, r.Size())
}

// TestRegistry_UnsupportedProvider verifies the closed provider set.
func TestRegistry_UnsupportedProvider(t *testing.T) {
	t.Parallel()

	r := NewRegistry(RegistryConfig{})

	_, err := r.Provider("openai", "key")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
	assert.Equal(t, 0, r.Size())
}

// TestRegistry_MissingCredential verifies an empty key is rejected
// before construction.
func TestRegistry_MissingCredential(t *testing.T) {
	t.Parallel()

	r := NewRegistry(RegistryConfig{})

	_, err := r.Provider(ProviderGemini, "")
	assert.ErrorIs(t, err, ErrCredentialMissing)
}

// TestRegistry_ConcurrentFirstUse verifies that racing first requests
// for the same pair retain exactly one adapter.
func TestRegistry_ConcurrentFirstUse(t *testing.T) {
	t.Parallel()

	r := NewRegistry(RegistryConfig{})

	const goroutines = 32
	results := make([]Provider, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := r.Provider(ProviderGroq, "shared-key")
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, r.Size())
	for i := 1; i < goroutines; i++ {
		assert.Same(t, results[0], results[i])
	}
}
