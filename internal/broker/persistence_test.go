package broker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/faithleysath/aigmbot/internal/clock"
)

func TestLoad_TolerantOfMissingFile(t *testing.T) {
	dir := t.TempDir()
	b, err := New(filepath.Join(dir, "llm_presets.json"), filepath.Join(dir, "cipher.key"), zerolog.Nop(), clock.Real{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load on a missing file should be a no-op, got %v", err)
	}
	if len(b.ListPresets("u1")) != 0 {
		t.Error("expected no presets after loading a nonexistent file")
	}
}

func TestLoad_TolerantOfCorruptFile(t *testing.T) {
	dir := t.TempDir()
	presetsPath := filepath.Join(dir, "llm_presets.json")
	if err := os.WriteFile(presetsPath, []byte("{not valid json5"), 0o600); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	b, err := New(presetsPath, filepath.Join(dir, "cipher.key"), zerolog.Nop(), clock.Real{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load on a corrupt file should be tolerated, got %v", err)
	}
	if len(b.ListPresets("u1")) != 0 {
		t.Error("expected an empty store after a corrupt file load")
	}
}

func TestSave_SetsRestrictivePermissions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	presetsPath := filepath.Join(dir, "llm_presets.json")
	b, err := New(presetsPath, filepath.Join(dir, "cipher.key"), zerolog.Nop(), clock.Real{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.AddPreset(ctx, validPreset("u1", "main")); err != nil {
		t.Fatalf("AddPreset: %v", err)
	}

	info, err := os.Stat(presetsPath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("llm_presets.json mode = %o, want 0600", perm)
	}
}
