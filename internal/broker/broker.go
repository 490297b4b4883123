// Package broker implements LLMBroker (§4.3): per-user LLM preset
// storage with encryption at rest, and per-channel active/fallback
// credential bindings. Persistence follows the teacher's
// LoadCronStore/SaveCronStore idiom (pkg/cron/store.go): JSON with a
// tolerant loader and an atomic temp-file-then-rename writer.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/faithleysath/aigmbot/internal/clock"
	"github.com/faithleysath/aigmbot/internal/engineerr"
)

// Broker is LLMBroker.
type Broker struct {
	mu sync.Mutex

	presetsPath   string
	cipherKeyPath string
	cipherKey     []byte

	// userPresets[ownerID][presetName] holds the encrypted form.
	userPresets map[string]map[string]encryptedPreset
	// groupBindings[channelID] holds the active/fallback lease.
	groupBindings map[string]*binding

	clock clock.Clock
	log   zerolog.Logger
}

type encryptedPreset struct {
	Model           string `json:"model"`
	BaseURL         string `json:"base_url"`
	EncryptedAPIKey string `json:"api_key"`
}

// New constructs a Broker backed by presetsPath (llm_presets.json) and
// cipherKeyPath (.secret.key), loading or generating the key
// immediately (§9 "only the symmetric cipher key file is process-wide
// state; it is loaded at startup and never reloaded").
func New(presetsPath, cipherKeyPath string, log zerolog.Logger, c clock.Clock) (*Broker, error) {
	key, err := LoadOrCreateCipherKey(cipherKeyPath)
	if err != nil {
		return nil, fmt.Errorf("broker: loading cipher key: %w", err)
	}
	if c == nil {
		c = clock.Real{}
	}
	return &Broker{
		presetsPath:   presetsPath,
		cipherKeyPath: cipherKeyPath,
		cipherKey:     key,
		userPresets:   make(map[string]map[string]encryptedPreset),
		groupBindings: make(map[string]*binding),
		clock:         c,
		log:           log.With().Str("component", "llm_broker").Logger(),
	}, nil
}

func (b *Broker) now() time.Time { return b.clock.Now() }

// AddPreset validates and stores p, encrypting its API key. An existing
// preset with the same (owner, name) is overwritten.
func (b *Broker) AddPreset(ctx context.Context, p Preset) error {
	if err := validatePreset(p); err != nil {
		return err
	}
	cipherText, err := Encrypt(b.cipherKey, p.APIKey)
	if err != nil {
		return &engineerr.StorageIO{Op: "encrypt_preset", Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	byName, ok := b.userPresets[p.OwnerID]
	if !ok {
		byName = make(map[string]encryptedPreset)
		b.userPresets[p.OwnerID] = byName
	}
	byName[p.Name] = encryptedPreset{Model: p.Model, BaseURL: p.BaseURL, EncryptedAPIKey: cipherText}
	return b.save(ctx)
}

// RemovePreset deletes (ownerID, name) unless some channel's active or
// fallback binding still references it, in which case it refuses and
// returns the referrer channel ids (§4.3).
func (b *Broker) RemovePreset(ctx context.Context, ownerID, name string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var referrers []string
	for groupID, bnd := range b.groupBindings {
		if bnd.Active != nil && bnd.Active.OwnerID == ownerID && bnd.Active.PresetName == name {
			referrers = append(referrers, groupID)
			continue
		}
		if bnd.Fallback != nil && bnd.Fallback.OwnerID == ownerID && bnd.Fallback.PresetName == name {
			referrers = append(referrers, groupID)
		}
	}
	if len(referrers) > 0 {
		return referrers, &engineerr.Conflict{Kind: engineerr.ConflictChannelBusy, Name: name}
	}

	byName, ok := b.userPresets[ownerID]
	if !ok {
		return nil, &engineerr.NotFound{Kind: engineerr.NotFoundGame, Key: name}
	}
	if _, ok := byName[name]; !ok {
		return nil, &engineerr.NotFound{Kind: engineerr.NotFoundGame, Key: name}
	}
	delete(byName, name)
	if len(byName) == 0 {
		delete(b.userPresets, ownerID)
	}
	return nil, b.save(ctx)
}

// GetPreset decrypts and returns (ownerID, name), or an error if it
// doesn't exist or fails to decrypt.
func (b *Broker) GetPreset(ownerID, name string) (Preset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getPresetLocked(ownerID, name)
}

func (b *Broker) getPresetLocked(ownerID, name string) (Preset, error) {
	byName, ok := b.userPresets[ownerID]
	if !ok {
		return Preset{}, &engineerr.NotFound{Kind: engineerr.NotFoundGame, Key: name}
	}
	enc, ok := byName[name]
	if !ok {
		return Preset{}, &engineerr.NotFound{Kind: engineerr.NotFoundGame, Key: name}
	}
	plain, err := Decrypt(b.cipherKey, enc.EncryptedAPIKey)
	if err != nil {
		return Preset{}, &engineerr.DecryptionFailure{PresetName: name, Err: err}
	}
	return Preset{OwnerID: ownerID, Name: name, Model: enc.Model, BaseURL: enc.BaseURL, APIKey: plain}, nil
}

// ListPresets decrypts every preset owned by ownerID, silently omitting
// any whose decryption fails (§4.3, §7 DecryptionFailure policy).
func (b *Broker) ListPresets(ownerID string) []Preset {
	b.mu.Lock()
	defer b.mu.Unlock()

	byName := b.userPresets[ownerID]
	out := make([]Preset, 0, len(byName))
	for name := range byName {
		p, err := b.getPresetLocked(ownerID, name)
		if err != nil {
			b.log.Warn().Str("owner_id", ownerID).Str("preset", name).Err(err).Msg("omitting preset from listing")
			continue
		}
		out = append(out, p)
	}
	return out
}

// BindActive leases name to group on behalf of owner for duration (per
// ParseDuration). Refuses when another user currently holds a valid
// active binding on the channel; refreshes when the caller already
// owns it (§4.3, Testable Property 10).
func (b *Broker) BindActive(ctx context.Context, groupID, ownerID, name string, durationArg string) error {
	if _, err := b.GetPreset(ownerID, name); err != nil {
		return err
	}
	dur, permanent, err := ParseDuration(durationArg)
	if err != nil {
		return &engineerr.Validation{Field: "duration", Hint: err.Error()}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bnd, ok := b.groupBindings[groupID]
	if !ok {
		bnd = &binding{}
		b.groupBindings[groupID] = bnd
	}
	b.lazyExpireLocked(bnd)

	if bnd.Active != nil && bnd.Active.OwnerID != ownerID {
		return &engineerr.Conflict{Kind: engineerr.ConflictChannelBusy, Name: bnd.Active.OwnerID}
	}

	now := b.now()
	var expireAt *time.Time
	if !permanent {
		t := now.Add(dur)
		expireAt = &t
	}
	bnd.Active = &ActiveBinding{OwnerID: ownerID, PresetName: name, BoundAt: now, ExpireAt: expireAt}
	return b.save(ctx)
}

// SetFallback sets a permanent fallback binding for group, validating
// the preset exists (§4.3).
func (b *Broker) SetFallback(ctx context.Context, groupID, ownerID, name string) error {
	if _, err := b.GetPreset(ownerID, name); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	bnd, ok := b.groupBindings[groupID]
	if !ok {
		bnd = &binding{}
		b.groupBindings[groupID] = bnd
	}
	bnd.Fallback = &FallbackBinding{OwnerID: ownerID, PresetName: name}
	return b.save(ctx)
}

// ClearFallback removes group's fallback binding, if any.
func (b *Broker) ClearFallback(ctx context.Context, groupID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bnd, ok := b.groupBindings[groupID]
	if !ok || bnd.Fallback == nil {
		return nil
	}
	bnd.Fallback = nil
	return b.save(ctx)
}

// Unbind clears group's active binding, regardless of owner (an
// admin/host operation; CommandSurface enforces the permission check).
func (b *Broker) Unbind(ctx context.Context, groupID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bnd, ok := b.groupBindings[groupID]
	if !ok || bnd.Active == nil {
		return nil
	}
	bnd.Active = nil
	return b.save(ctx)
}

// Resolve returns the effective binding for groupID: the active
// binding if present and unexpired, else the fallback, else neither.
// Observing an expired active binding lazily clears it in memory;
// write-through to disk is deferred to the next save-triggering op
// (§4.3) to keep this read off the hot-path I/O.
func (b *Broker) Resolve(groupID string) Resolution {
	b.mu.Lock()
	defer b.mu.Unlock()

	bnd, ok := b.groupBindings[groupID]
	if !ok {
		return Resolution{}
	}
	b.lazyExpireLocked(bnd)
	return Resolution{Active: bnd.Active, Fallback: bnd.Fallback}
}

// lazyExpireLocked requires mu held; clears bnd.Active in memory if its
// expiry has passed.
func (b *Broker) lazyExpireLocked(bnd *binding) {
	if bnd.Active == nil || bnd.Active.ExpireAt == nil {
		return
	}
	if !b.now().Before(*bnd.Active.ExpireAt) {
		bnd.Active = nil
	}
}

// ResolvePreset resolves groupID's effective binding and decrypts the
// referenced preset in one call, the common path GameEngine uses.
func (b *Broker) ResolvePreset(groupID string) (Preset, error) {
	res := b.Resolve(groupID)
	ownerID, name, ok := res.Preset()
	if !ok {
		return Preset{}, &engineerr.Validation{Field: "preset", Hint: "no active or fallback LLM binding for this channel"}
	}
	return b.GetPreset(ownerID, name)
}
