// Package auth provides API key authentication for the console's HTTP API
// and WebSocket stream.
//
// APIKeyMiddleware reads the key from a configurable header (default
// "x-api-key") or, for browser WebSocket clients that cannot set headers,
// from the "api_key" query parameter. Auth is skipped when mode is not
// "apikey" or the key is unset.
package auth
