// Package config loads the console configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - HTTPPort         - port for the REST API and WebSocket hub (default 8080)
//   - Bus              - NATS connection events and status arrive on
//   - Auth.Mode        - "apikey" or "none"
//   - Auth.KeyEnv      - environment variable holding the expected API key
//   - Auth.Header      - HTTP header name (default "x-api-key")
//   - Events.Capacity  - recent events kept in memory (default 1000)
//   - Events.TTL       - maximum age of a kept event (default 24h)
//   - Status.TTL       - how long a topic's status stays live (default 10m)
//   - Notify.MinLevel  - lowest level forwarded to webhooks (default 7)
//   - Archive.DSNEnv   - environment variable with a Postgres DSN; empty disables
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
