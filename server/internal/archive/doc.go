// Package archive writes every received event to Postgres.
//
// The archive is optional; the console runs without it when no DSN is
// configured. Inserts happen on a single background goroutine so a slow
// database never stalls the bus subscriber.
package archive
