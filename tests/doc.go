// Package tests holds shared fixtures and mocks for the Ephemera backend
// tests, plus the integration, e2e and live API suites behind build tags.
// This file keeps the tag-only testing dependencies in go.mod.
package tests

import (
	// Testing dependencies used only behind build tags
	_ "github.com/testcontainers/testcontainers-go"
	_ "github.com/testcontainers/testcontainers-go/wait"
)
