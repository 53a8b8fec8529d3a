package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SlightlyLoony/Monitor/pkg/types"
)

const (
	queueSize     = 1024
	insertTimeout = 5 * time.Second
)

const createTable = `CREATE TABLE IF NOT EXISTS monitor_events (
	id         TEXT PRIMARY KEY,
	tag        TEXT NOT NULL,
	source     TEXT NOT NULL,
	type       TEXT NOT NULL,
	subject    TEXT NOT NULL,
	message    TEXT NOT NULL,
	level      SMALLINT NOT NULL,
	emitted_at TIMESTAMPTZ NOT NULL
)`

const insertEvent = `INSERT INTO monitor_events (id, tag, source, type, subject, message, level, emitted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`

// execer is the part of *pgxpool.Pool the archive uses.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Archive queues events and inserts them into monitor_events.
type Archive struct {
	db    execer
	pool  *pgxpool.Pool // nil in tests
	queue chan types.Event
}

// Open connects to dsn, verifies the connection and creates the table.
func Open(ctx context.Context, dsn string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	a, err := newArchive(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	a.pool = pool
	return a, nil
}

func newArchive(ctx context.Context, db execer) (*Archive, error) {
	if _, err := db.Exec(ctx, createTable); err != nil {
		return nil, fmt.Errorf("archive: create table: %w", err)
	}
	return &Archive{db: db, queue: make(chan types.Event, queueSize)}, nil
}

// HandleEvent queues ev for insertion.
func (a *Archive) HandleEvent(ev types.Event) {
	select {
	case a.queue <- ev:
	default:
		slog.Warn("archive: queue full, dropping event", "tag", ev.Tag, "id", ev.ID)
	}
}

// Run inserts queued events until ctx is cancelled.
func (a *Archive) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.queue:
			if err := a.insert(ctx, ev); err != nil {
				slog.Error("archive: insert failed", "id", ev.ID, "tag", ev.Tag, "err", err)
			}
		}
	}
}

func (a *Archive) insert(ctx context.Context, ev types.Event) error {
	ctx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()
	_, err := a.db.Exec(ctx, insertEvent,
		ev.ID, ev.Tag, ev.Source, ev.Type, ev.Subject, ev.Message, ev.Level, ev.Time())
	if err != nil {
		return fmt.Errorf("archive: insert: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (a *Archive) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
