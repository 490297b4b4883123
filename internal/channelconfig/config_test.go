package channelconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestAdvancedMode_DefaultsFalse(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "channel_config.json"), zerolog.Nop())
	if s.AdvancedMode("group1") {
		t.Error("expected advanced mode to default to false for an unknown channel")
	}
}

func TestSetAdvancedMode_PersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "channel_config.json")

	s1 := New(path, zerolog.Nop())
	if err := s1.SetAdvancedMode(ctx, "group1", true); err != nil {
		t.Fatalf("SetAdvancedMode: %v", err)
	}
	if !s1.AdvancedMode("group1") {
		t.Fatal("expected advanced mode to be enabled immediately")
	}

	s2 := New(path, zerolog.Nop())
	if err := s2.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s2.AdvancedMode("group1") {
		t.Error("expected advanced mode to survive a reload")
	}
	if s2.AdvancedMode("group2") {
		t.Error("expected an unrelated channel to remain false")
	}
}

func TestLoad_TolerantOfMissingAndCorruptFile(t *testing.T) {
	ctx := context.Background()

	missing := New(filepath.Join(t.TempDir(), "channel_config.json"), zerolog.Nop())
	if err := missing.Load(ctx); err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}

	path := filepath.Join(t.TempDir(), "channel_config.json")
	if err := os.WriteFile(path, []byte("{not valid"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	corrupt := New(path, zerolog.Nop())
	if err := corrupt.Load(ctx); err != nil {
		t.Fatalf("Load on corrupt file should be tolerated, got %v", err)
	}
	if corrupt.AdvancedMode("group1") {
		t.Error("expected an empty store after a corrupt file load")
	}
}
