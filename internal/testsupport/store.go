// Package testsupport holds small fixtures shared by multiple packages'
// tests: a disposable on-disk Store and a frozen clock, grounded on
// the teacher's pkg/cron/service_test.go convention of a fresh
// temp-backed store per test rather than a shared global.
package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/faithleysath/aigmbot/internal/clock"
	"github.com/faithleysath/aigmbot/internal/store"
)

// NewStore opens a fresh SQLite-backed Store in t's temp directory,
// closed automatically via t.Cleanup.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aigmbot.db")
	st, err := store.Open(path, zerolog.Nop(), clock.Real{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// NewFrozenClock returns a deterministic clock starting now.
func NewFrozenClock() *clock.Frozen {
	return clock.NewFrozen(clock.Real{}.Now())
}
