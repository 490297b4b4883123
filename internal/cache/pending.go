package cache

import (
	"context"
	"time"
)

// PutPendingProposal records a bot-posted preview awaiting
// reaction-confirmation, keyed by the preview message id (§3).
func (c *Cache) PutPendingProposal(ctx context.Context, messageID string, p PendingProposal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p.CreateTime = c.now()
	c.pending[messageID] = &p
	c.save(false)
}

// GetPendingProposal returns a snapshot of the proposal keyed by
// messageID, or false if absent.
func (c *Cache) GetPendingProposal(ctx context.Context, messageID string) (PendingProposal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[messageID]
	if !ok {
		return PendingProposal{}, false
	}
	return *p, true
}

// RemovePendingProposal deletes a single proposal, e.g. on confirm/cancel.
func (c *Cache) RemovePendingProposal(ctx context.Context, messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[messageID]; !ok {
		return
	}
	delete(c.pending, messageID)
	c.save(false)
}

// CleanupExpiredPendingGames atomically removes every pending proposal
// older than timeout and returns the set of removed message ids, so a
// racing reaction on one of them observes its removal (§4.2, Testable
// Property 11).
func (c *Cache) CleanupExpiredPendingGames(ctx context.Context, timeout time.Duration) map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timeout <= 0 {
		timeout = defaultPendingTimeout
	}
	now := c.now()
	removed := make(map[string]struct{})
	for msgID, p := range c.pending {
		if now.Sub(p.CreateTime) >= timeout {
			delete(c.pending, msgID)
			removed[msgID] = struct{}{}
		}
	}
	if len(removed) > 0 {
		c.save(false)
	}
	return removed
}
