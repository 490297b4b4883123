package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/faithleysath/aigmbot/internal/clock"
)

const (
	flushCoalesceDelay        = 500 * time.Millisecond
	defaultPendingTimeout     = 300 * time.Second
	voteEntryTTL              = 24 * time.Hour
	voteSweepMinInterval      = 1 * time.Hour
)

// Cache is VolatileCache (§4.2): a single in-memory aggregate guarded by
// a coarse mutation lock, with persistence guarded by a separate I/O
// lock. Lock order is always mutation -> io, never the reverse: every
// call path that touches ioMu already holds mu first, so a reversed
// acquisition can never occur.
type Cache struct {
	mu   sync.Mutex
	ioMu sync.Mutex

	pending map[string]*PendingProposal          // keyed by preview message id
	votes   map[string]map[string]*VoteEntry      // group id -> message id -> entry
	tokens  map[string]*WebStartToken             // token -> info

	path  string
	clock clock.Clock
	log   zerolog.Logger

	loaded bool
	dirty  bool
	timer  *time.Timer

	lastVoteSweep time.Time
}

// New constructs an empty Cache backed by the JSON file at path.
func New(path string, log zerolog.Logger, c clock.Clock) *Cache {
	if c == nil {
		c = clock.Real{}
	}
	return &Cache{
		pending: make(map[string]*PendingProposal),
		votes:   make(map[string]map[string]*VoteEntry),
		tokens:  make(map[string]*WebStartToken),
		path:    path,
		clock:   c,
		log:     log.With().Str("component", "volatile_cache").Logger(),
	}
}

// save is called with mu already held by the caller (every mutating
// method below acquires mu first, then calls save before returning).
// A non-forced call coalesces into a single deferred flush ~500ms out;
// a forced call cancels any pending deferred flush and writes
// synchronously, holding ioMu while mu is still held by the caller —
// the one path where both locks nest, always in mutation -> io order.
func (c *Cache) save(forced bool) {
	c.dirty = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if !forced {
		c.timer = time.AfterFunc(flushCoalesceDelay, c.flushFromTimer)
		return
	}
	c.flushLocked()
}

// flushFromTimer runs in its own goroutine once the coalescing window
// elapses; it re-acquires mu before touching state, preserving the
// mutation -> io lock order.
func (c *Cache) flushFromTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		// Already superseded by a forced save.
		return
	}
	c.timer = nil
	c.flushLocked()
}

// flushLocked requires mu held; it snapshots under mu, then performs the
// actual file write under ioMu.
func (c *Cache) flushLocked() {
	snapshot := c.snapshotLocked()
	c.ioMu.Lock()
	defer c.ioMu.Unlock()
	if err := writeFile(c.path, snapshot); err != nil {
		c.log.Warn().Err(err).Msg("volatile cache flush failed; will retry on next save")
		return
	}
	c.dirty = false
}

// Close drains any outstanding flush and performs a final write if a
// save was indicated but never got to run (§4.2 "On shutdown...").
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.dirty {
		c.flushLocked()
	}
	return nil
}

// Flush forces an immediate synchronous write, bypassing coalescing.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.save(true)
	return nil
}

func (c *Cache) now() time.Time {
	return c.clock.Now()
}
