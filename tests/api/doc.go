// Package api contains tests that run against a real backend server.
//
// These tests require the backend server to be running before execution.
// They drive every public endpoint through the Go client.
//
// Usage:
//
//	# Start the backend server first
//	EPHEMERA_HOST=localhost:8080 go run ./cmd/server
//
//	# Then run the API tests
//	go test -tags=api ./tests/api/... -v
//
// Environment Variables:
//
//	API_BASE_URL  - Base URL of the API server (default: http://localhost:8080)
//	EPHEMERA_HOST - Host the server is bound to (default: localhost:8080)
//	API_KEY       - Admin API key (default: test-api-key-for-development-only-32chars)
package api
