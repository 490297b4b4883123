package cache

import (
	"context"
	"time"
)

// RecordVote applies a single reaction mutation (§4.2, Testable
// Property 6). Adding the same (group,msg,emoji,user) twice is a no-op
// after the first; removing restores the prior membership. Votes are
// recorded even for a frozen game — the caller decides whether to act
// on them (§4.6.7 state machine: "never lose a reaction").
func (c *Cache) RecordVote(ctx context.Context, groupID, messageID string, emojiID int64, userID string, isAdd bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byMsg, ok := c.votes[groupID]
	if !ok {
		byMsg = make(map[string]*VoteEntry)
		c.votes[groupID] = byMsg
	}
	entry, ok := byMsg[messageID]
	if !ok {
		entry = &VoteEntry{Votes: make(map[int64]map[string]struct{})}
		byMsg[messageID] = entry
	}
	voters, ok := entry.Votes[emojiID]
	if !ok {
		voters = make(map[string]struct{})
		entry.Votes[emojiID] = voters
	}
	if isAdd {
		voters[userID] = struct{}{}
	} else {
		delete(voters, userID)
	}
	entry.Timestamp = c.now()

	c.maybeSweepVotesLocked()
	c.save(false)
}

// SetVoteContent lazily fills in the cached text of a custom-input
// candidate message (§3, §9 "Lazy content fetch").
func (c *Cache) SetVoteContent(ctx context.Context, groupID, messageID, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byMsg, ok := c.votes[groupID]
	if !ok {
		byMsg = make(map[string]*VoteEntry)
		c.votes[groupID] = byMsg
	}
	entry, ok := byMsg[messageID]
	if !ok {
		entry = &VoteEntry{Votes: make(map[int64]map[string]struct{})}
		byMsg[messageID] = entry
	}
	entry.Content = &content
	entry.Timestamp = c.now()
	c.save(false)
}

// GetVoteEntry returns a snapshot of the vote tally for (groupID,
// messageID), or nil if there is none.
func (c *Cache) GetVoteEntry(ctx context.Context, groupID, messageID string) *VoteEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	byMsg, ok := c.votes[groupID]
	if !ok {
		return nil
	}
	return byMsg[messageID].Clone()
}

// ClearChannelVotes drops every vote entry for a group, e.g. on
// checkout_head or game detach.
func (c *Cache) ClearChannelVotes(ctx context.Context, groupID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.votes[groupID]; !ok {
		return
	}
	delete(c.votes, groupID)
	c.save(false)
}

// DropVoteEntry removes a single message's vote tally, e.g. when a
// custom-input candidate is cancelled or recalled.
func (c *Cache) DropVoteEntry(ctx context.Context, groupID, messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byMsg, ok := c.votes[groupID]
	if !ok {
		return
	}
	if _, ok := byMsg[messageID]; !ok {
		return
	}
	delete(byMsg, messageID)
	if len(byMsg) == 0 {
		delete(c.votes, groupID)
	}
	c.save(false)
}

// maybeSweepVotesLocked requires mu held. It expires vote entries older
// than 24h, running at most once per hour, triggered opportunistically
// by a vote mutation (§4.2).
func (c *Cache) maybeSweepVotesLocked() {
	now := c.now()
	if !c.lastVoteSweep.IsZero() && now.Sub(c.lastVoteSweep) < voteSweepMinInterval {
		return
	}
	c.lastVoteSweep = now

	for groupID, byMsg := range c.votes {
		for msgID, entry := range byMsg {
			if now.Sub(entry.Timestamp) >= voteEntryTTL {
				delete(byMsg, msgID)
			}
		}
		if len(byMsg) == 0 {
			delete(c.votes, groupID)
		}
	}
}

// SweepExpiredVotes runs the same hourly expiration pass on demand, for
// a cron-driven background sweep independent of mutation traffic.
func (c *Cache) SweepExpiredVotes(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastVoteSweep = time.Time{} // force the pass regardless of interval
	c.maybeSweepVotesLocked()
	c.save(false)
}
