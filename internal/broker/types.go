package broker

import "time"

// Preset is a decrypted, in-memory LLM credential set belonging to one
// owner (§4.3).
type Preset struct {
	OwnerID string
	Name    string
	Model   string
	BaseURL string
	APIKey  string
}

// ActiveBinding is a first-come-first-served, possibly expiring lease
// on one owner's preset for a channel.
type ActiveBinding struct {
	OwnerID    string
	PresetName string
	BoundAt    time.Time
	ExpireAt   *time.Time
}

// FallbackBinding is a permanent, non-expiring per-channel binding used
// when no active binding applies.
type FallbackBinding struct {
	OwnerID    string
	PresetName string
}

// Resolution is what Resolve returns: the effective binding for a
// channel, or neither if nothing applies.
type Resolution struct {
	Active   *ActiveBinding
	Fallback *FallbackBinding
}

// Preset returns the owner/name pair the resolution would use, preferring
// the active binding over the fallback, or false if neither is set.
func (r Resolution) Preset() (ownerID, name string, ok bool) {
	if r.Active != nil {
		return r.Active.OwnerID, r.Active.PresetName, true
	}
	if r.Fallback != nil {
		return r.Fallback.OwnerID, r.Fallback.PresetName, true
	}
	return "", "", false
}

type binding struct {
	Active   *ActiveBinding
	Fallback *FallbackBinding
}
