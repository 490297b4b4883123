// Package channelconfig persists per-channel flags (§6 channel_config.json),
// notably advanced_mode. Persistence follows the same atomic
// temp-file-then-rename idiom as internal/cache and internal/broker,
// grounded on the teacher's pkg/cron/store.go LoadCronStore/SaveCronStore.
package channelconfig

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"github.com/rs/zerolog"

	"github.com/faithleysath/aigmbot/internal/engineerr"
)

// Flags is one channel's persisted configuration.
type Flags struct {
	AdvancedMode bool `json:"advanced_mode"`
}

// Store holds per-channel Flags in memory, backed by channel_config.json.
type Store struct {
	mu      sync.Mutex
	path    string
	byGroup map[string]Flags
	log     zerolog.Logger
}

// New constructs a Store backed by path.
func New(path string, log zerolog.Logger) *Store {
	return &Store{
		path:    path,
		byGroup: make(map[string]Flags),
		log:     log.With().Str("component", "channel_config").Logger(),
	}
}

// Load reads channel_config.json, tolerating a missing or unparsable file.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &engineerr.StorageIO{Op: "load_channel_config", Err: err}
	}
	var model map[string]Flags
	if err := json5.Unmarshal(data, &model); err != nil {
		s.log.Warn().Err(err).Msg("channel_config.json unreadable; starting empty")
		return nil
	}
	s.byGroup = model
	return nil
}

func (s *Store) save() error {
	payload, err := json5.MarshalIndent(s.byGroup, "", "  ")
	if err != nil {
		return &engineerr.StorageIO{Op: "encode_channel_config", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return &engineerr.StorageIO{Op: "mkdir_channel_config", Err: err}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return &engineerr.StorageIO{Op: "write_channel_config", Err: err}
	}
	return os.Rename(tmp, s.path)
}

// AdvancedMode reports groupID's current advanced-mode flag.
func (s *Store) AdvancedMode(groupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byGroup[groupID].AdvancedMode
}

// SetAdvancedMode updates and persists groupID's advanced-mode flag.
func (s *Store) SetAdvancedMode(ctx context.Context, groupID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	flags := s.byGroup[groupID]
	flags.AdvancedMode = enabled
	s.byGroup[groupID] = flags
	return s.save()
}
