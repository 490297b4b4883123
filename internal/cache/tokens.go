package cache

import (
	"context"
	"time"

	"github.com/rs/xid"
)

// webStartTokenTTL bounds how long a minted web-start token remains
// redeemable (§3 "short-lived single-use token").
const webStartTokenTTL = 10 * time.Minute

// MintWebStartToken creates a single-use token binding a web-submitted
// scenario draft to (groupID, userID). Tokens are not part of the
// persisted cache.json layout (§6 lists only pending_new_games and
// vote_cache) — they are short-lived enough that losing them on
// restart is acceptable.
func (c *Cache) MintWebStartToken(ctx context.Context, groupID, userID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	token := xid.New().String()
	c.tokens[token] = &WebStartToken{GroupID: groupID, UserID: userID, CreatedAt: c.now()}
	return token
}

// ConsumeWebStartToken redeems and deletes a token atomically, returning
// false if it is missing or expired.
func (c *Cache) ConsumeWebStartToken(ctx context.Context, token string) (WebStartToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tokens[token]
	if !ok {
		return WebStartToken{}, false
	}
	delete(c.tokens, token)
	if c.now().Sub(t.CreatedAt) > webStartTokenTTL {
		return WebStartToken{}, false
	}
	return *t, true
}
