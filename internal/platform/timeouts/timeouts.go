// Package timeouts defines shared timeout constants used across the service.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// UpstreamRequest caps a single call to the identity provider or profile store.
const UpstreamRequest = 10 * time.Second

// PendingOAuthFlow bounds how long an OAuth state stays redeemable.
const PendingOAuthFlow = 10 * time.Minute
