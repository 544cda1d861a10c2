// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads service configuration and provider credentials
// from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Environment variable names for provider credentials.
const (
	EnvGroqAPIKey   = "GROQ_API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
)

// Config holds the service configuration. All values come from the
// environment with defaults suitable for local development.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// DataDir is the directory for BadgerDB files.
	DataDir string

	// AuthToken, when non-empty, enables static bearer token auth on
	// every API route.
	AuthToken string

	// RequestTimeout bounds non-streaming provider calls.
	RequestTimeout time.Duration

	// TracingEnabled turns on OTLP trace export.
	TracingEnabled bool

	// OTLPEndpoint is the OTLP gRPC collector address.
	OTLPEndpoint string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		Port:           getEnv("INTELLICHAT_PORT", "8090"),
		DataDir:        getEnv("INTELLICHAT_DATA_DIR", "./data"),
		AuthToken:      os.Getenv("INTELLICHAT_AUTH_TOKEN"),
		RequestTimeout: getEnvDuration("INTELLICHAT_REQUEST_TIMEOUT", 120*time.Second),
		TracingEnabled: getEnvBool("INTELLICHAT_TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("INTELLICHAT_OTLP_ENDPOINT", "localhost:4317"),
		LogLevel:       getEnv("INTELLICHAT_LOG_LEVEL", "info"),
	}
}

// EnvCredentials resolves provider credentials from the environment on
// every lookup, so a key rotated in the environment of a new process
// needs no code change.
type EnvCredentials struct{}

// Credential returns the API key for the named provider and whether one
// is set.
func (EnvCredentials) Credential(provider string) (string, bool) {
	var key string
	switch provider {
	case "groq":
		key = os.Getenv(EnvGroqAPIKey)
	case "gemini":
		key = os.Getenv(EnvGeminiAPIKey)
	}
	return key, key != ""
}

// StaticCredentials is a fixed provider-to-key map. Used by tests and
// single-tenant deployments that inject keys directly.
type StaticCredentials map[string]string

// Credential returns the mapped key for the named provider.
func (c StaticCredentials) Credential(provider string) (string, bool) {
	key, ok := c[provider]
	return key, ok && key != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
