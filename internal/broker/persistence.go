package broker

import (
	"context"
	"os"
	"path/filepath"
	"time"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"

	"github.com/faithleysath/aigmbot/internal/engineerr"
)

// fileModel is the JSON shape of llm_presets.json (§6).
type fileModel struct {
	UserPresets   map[string]map[string]encryptedPreset `json:"user_presets"`
	GroupBindings map[string]bindingFile                `json:"group_bindings"`
}

type bindingFile struct {
	Active   *activeBindingFile   `json:"active"`
	Fallback *fallbackBindingFile `json:"fallback"`
}

type activeBindingFile struct {
	OwnerID    string  `json:"owner_id"`
	PresetName string  `json:"preset_name"`
	BoundAt    string  `json:"bound_at"`
	ExpireAt   *int64  `json:"expire_at"`
}

type fallbackBindingFile struct {
	OwnerID    string `json:"owner_id"`
	PresetName string `json:"preset_name"`
}

// Load reads llm_presets.json into memory, tolerating a missing file
// (fresh start) or one that fails to parse (logged, starts empty).
func (b *Broker) Load(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.presetsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &engineerr.StorageIO{Op: "load_presets", Err: err}
	}

	var model fileModel
	if err := json5.Unmarshal(data, &model); err != nil {
		b.log.Warn().Err(err).Msg("llm_presets.json unreadable; starting empty")
		return nil
	}

	if model.UserPresets != nil {
		b.userPresets = model.UserPresets
	}
	for groupID, bf := range model.GroupBindings {
		bnd := &binding{}
		if bf.Active != nil {
			boundAt, _ := time.Parse(time.RFC3339, bf.Active.BoundAt)
			var expireAt *time.Time
			if bf.Active.ExpireAt != nil {
				t := time.Unix(*bf.Active.ExpireAt, 0).UTC()
				expireAt = &t
			}
			bnd.Active = &ActiveBinding{
				OwnerID:    bf.Active.OwnerID,
				PresetName: bf.Active.PresetName,
				BoundAt:    boundAt,
				ExpireAt:   expireAt,
			}
		}
		if bf.Fallback != nil {
			bnd.Fallback = &FallbackBinding{OwnerID: bf.Fallback.OwnerID, PresetName: bf.Fallback.PresetName}
		}
		b.groupBindings[groupID] = bnd
	}
	return nil
}

// save requires mu held. Writes llm_presets.json atomically (temp file
// then rename) and chmods the final file 0600 (§4.3).
func (b *Broker) save(ctx context.Context) error {
	model := fileModel{
		UserPresets:   b.userPresets,
		GroupBindings: make(map[string]bindingFile, len(b.groupBindings)),
	}
	for groupID, bnd := range b.groupBindings {
		var bf bindingFile
		if bnd.Active != nil {
			var expireAt *int64
			if bnd.Active.ExpireAt != nil {
				v := bnd.Active.ExpireAt.Unix()
				expireAt = &v
			}
			bf.Active = &activeBindingFile{
				OwnerID:    bnd.Active.OwnerID,
				PresetName: bnd.Active.PresetName,
				BoundAt:    bnd.Active.BoundAt.Format(time.RFC3339),
				ExpireAt:   expireAt,
			}
		}
		if bnd.Fallback != nil {
			bf.Fallback = &fallbackBindingFile{OwnerID: bnd.Fallback.OwnerID, PresetName: bnd.Fallback.PresetName}
		}
		model.GroupBindings[groupID] = bf
	}

	payload, err := json5.MarshalIndent(model, "", "  ")
	if err != nil {
		return &engineerr.StorageIO{Op: "encode_presets", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(b.presetsPath), 0o755); err != nil {
		return &engineerr.StorageIO{Op: "mkdir_presets", Err: err}
	}
	tmp := b.presetsPath + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return &engineerr.StorageIO{Op: "write_presets", Err: err}
	}
	if err := os.Rename(tmp, b.presetsPath); err != nil {
		return &engineerr.StorageIO{Op: "rename_presets", Err: err}
	}
	return os.Chmod(b.presetsPath, 0o600)
}
