// Package store implements the durable relational Store of §4.1: games,
// branches, rounds, and tags, with foreign keys enforced and nested
// transactions. Grounded on the teacher's choice of mattn/go-sqlite3 as
// the SQLite driver (go.mod, pkg/connector/memory_sessions.go) used
// directly through database/sql rather than through the mautrix-specific
// dbutil wrapper, whose construction/upgrade API isn't exercised
// anywhere in the retrieved pack (see DESIGN.md).
package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/faithleysath/aigmbot/internal/clock"
)

const healthCheckInterval = 60 * time.Second

// Store owns the single logical SQLite connection described by §5:
// "one logical connection; transactions serialize writes; busy-timeout
// 5 s for contention." MaxOpenConns is pinned to 1 so every Begin/Conn
// call serializes naturally through the connection pool, which is what
// makes the nested-savepoint transaction scheme in txn.go safe without
// an explicit mutex.
type Store struct {
	db    *sql.DB
	log   zerolog.Logger
	clock clock.Clock

	cancelHealthCheck context.CancelFunc
}

// Open creates (or reuses) the SQLite file at path, applies schema, and
// starts the background connection-health loop.
func Open(path string, log zerolog.Logger, c clock.Clock) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	if c == nil {
		c = clock.Real{}
	}

	s := &Store{db: db, log: log.With().Str("component", "store").Logger(), clock: c}
	s.startHealthCheck()
	return s, nil
}

// startHealthCheck pings the connection at a bounded interval, matching
// §4.1's "Connection health is rechecked at a bounded interval (~60 s)."
func (s *Store) startHealthCheck() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelHealthCheck = cancel
	go func() {
		ticker := time.NewTicker(healthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
				if err := s.db.PingContext(pingCtx); err != nil {
					s.log.Warn().Err(err).Msg("store connection health check failed")
				}
				cancelPing()
			}
		}
	}()
}

// Close stops the health-check loop and closes the connection.
func (s *Store) Close() error {
	if s.cancelHealthCheck != nil {
		s.cancelHealthCheck()
	}
	return s.db.Close()
}

func (s *Store) now() int64 {
	return s.clock.Now().Unix()
}
