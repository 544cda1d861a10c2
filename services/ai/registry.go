// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ai

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// RegistryConfig holds the construction parameters shared by every
// adapter the registry builds. The URL and client overrides exist for
// tests; production callers leave them zero.
type RegistryConfig struct {
	GroqBaseURL   string
	GeminiBaseURL string
	HTTPClient    *http.Client
	Timeout       time.Duration
}

// Registry caches provider adapters keyed by (provider, credential).
//
// # Description
//
// Adapters are stateless but carry a credential, so the registry builds
// one per distinct (provider, credential) pair and reuses it for every
// later request with the same pair. Construction is deduplicated with
// singleflight so concurrent first requests produce exactly one adapter.
// The registry is a constructed dependency, not a package singleton;
// callers that need isolation (tests, multi-tenant setups) hold their
// own instance.
type Registry struct {
	cfg RegistryConfig

	mu        sync.RWMutex
	providers map[string]Provider
	group     singleflight.Group
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		cfg:       cfg,
		providers: make(map[string]Provider),
	}
}

// Provider returns the adapter for the named provider and credential,
// building and caching it on first use.
//
// # Outputs
//
//   - Provider: The cached or newly built adapter.
//   - error: ErrUnsupportedProvider for an unknown name,
//     ErrCredentialMissing for an empty apiKey. A failed construction is
//     not cached; the next call retries.
func (r *Registry) Provider(name, apiKey string) (Provider, error) {
	if !SupportedProvider(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrCredentialMissing, name)
	}

	key := name + "_" + apiKey

	r.mu.RLock()
	p, ok := r.providers[key]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		r.mu.RLock()
		p, ok := r.providers[key]
		r.mu.RUnlock()
		if ok {
			return p, nil
		}

		built, err := r.build(name, apiKey)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.providers[key] = built
		r.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Provider), nil
}

// Size returns the number of cached adapters.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// build constructs a fresh adapter. Panics from adapter constructors
// cannot happen here because the credential was already checked.
func (r *Registry) build(name, apiKey string) (p Provider, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("provider construction failed: %v", rec)
		}
	}()

	switch name {
	case ProviderGroq:
		return NewGroqProvider(GroqConfig{
			APIKey:     apiKey,
			BaseURL:    r.cfg.GroqBaseURL,
			HTTPClient: r.cfg.HTTPClient,
			Timeout:    r.cfg.Timeout,
		}), nil
	case ProviderGemini:
		return NewGeminiProvider(GeminiConfig{
			APIKey:  apiKey,
			BaseURL: r.cfg.GeminiBaseURL,
			Timeout: r.cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
}
