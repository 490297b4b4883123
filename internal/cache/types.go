// Package cache implements VolatileCache (§4.2): the in-memory,
// disk-backed cache of pending game-creation proposals, per-message
// vote tallies, and one-time web-start tokens.
package cache

import "time"

// PendingProposal is a bot-posted preview awaiting reaction-confirmation
// (§3).
type PendingProposal struct {
	UserID       string
	SystemPrompt string
	MessageID    string
	CreateTime   time.Time
}

// VoteEntry is the per-(group,message) vote tally snapshot (§3). Votes
// maps an emoji id to the set of user ids who reacted with it.
type VoteEntry struct {
	Content   *string
	Votes     map[int64]map[string]struct{}
	Timestamp time.Time
}

// Clone returns a snapshot of e safe for callers to read without
// locking: fresh set copies, shared strings/timestamps (§4.2 "Accessors
// return snapshots").
func (e *VoteEntry) Clone() *VoteEntry {
	if e == nil {
		return nil
	}
	votes := make(map[int64]map[string]struct{}, len(e.Votes))
	for emoji, voters := range e.Votes {
		voterSet := make(map[string]struct{}, len(voters))
		for v := range voters {
			voterSet[v] = struct{}{}
		}
		votes[emoji] = voterSet
	}
	return &VoteEntry{Content: e.Content, Votes: votes, Timestamp: e.Timestamp}
}

// WebStartToken associates a web-submitted scenario draft with the
// originating (group, user) (§3).
type WebStartToken struct {
	GroupID   string
	UserID    string
	CreatedAt time.Time
}
