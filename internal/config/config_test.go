package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_SetsDocumentedDefaults(t *testing.T) {
	cfg := Default("/data")
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.LLM.MaxAttempts != 2 || cfg.LLM.BaseDelay != time.Second || cfg.LLM.MaxDelay != 30*time.Second {
		t.Errorf("unexpected LLM defaults: %+v", cfg.LLM)
	}
	if cfg.LLM.PoolMaxSize != 20 || cfg.LLM.PoolIdleTimeout != time.Hour {
		t.Errorf("unexpected LLM pool defaults: %+v", cfg.LLM)
	}
	if cfg.Cache.FlushInterval != 5*time.Second || cfg.Cache.VoteTTL != 24*time.Hour {
		t.Errorf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.Broker.PresetsPath != "/data/llm_presets.json" || cfg.Broker.CipherKeyPath != "/data/llm_cipher.key" {
		t.Errorf("unexpected broker defaults: %+v", cfg.Broker)
	}
}

func TestLoad_TolerantOfMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "/data")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected defaults to apply when the config file is missing, got %+v", cfg)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlBody := "log_level: debug\nroot_user_ids: [\"u1\", \"u2\"]\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("seed config file: %v", err)
	}

	cfg, err := Load(path, "/data")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if len(cfg.RootUserIDs) != 2 || cfg.RootUserIDs[0] != "u1" {
		t.Errorf("unexpected root_user_ids: %v", cfg.RootUserIDs)
	}
	// unset fields still fall back to Default(dataDir)
	if cfg.Broker.PresetsPath != "/data/llm_presets.json" {
		t.Errorf("expected untouched fields to retain their default, got %q", cfg.Broker.PresetsPath)
	}
}

func TestLoad_EnvOverridesTakePriorityOverYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o644); err != nil {
		t.Fatalf("seed config file: %v", err)
	}

	t.Setenv("AIGMBOT_LOG_LEVEL", "warn")
	t.Setenv("AIGMBOT_ROOT_USER_IDS", "root1,root2")
	t.Setenv("AIGMBOT_LLM_MAX_ATTEMPTS", "5")
	t.Setenv("AIGMBOT_WEB_PUBLIC_BASE_URL", "https://bot.example.com")

	cfg, err := Load(path, "/data")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want env override warn", cfg.LogLevel)
	}
	if len(cfg.RootUserIDs) != 2 || cfg.RootUserIDs[1] != "root2" {
		t.Errorf("unexpected root_user_ids: %v", cfg.RootUserIDs)
	}
	if cfg.LLM.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.LLM.MaxAttempts)
	}
	if cfg.Web.PublicBaseURL != "https://bot.example.com" {
		t.Errorf("PublicBaseURL = %q", cfg.Web.PublicBaseURL)
	}
}

func TestApplyEnvOverrides_IgnoresUnparsableMaxAttempts(t *testing.T) {
	cfg := Default("/data")
	t.Setenv("AIGMBOT_LLM_MAX_ATTEMPTS", "not-a-number")
	applyEnvOverrides(&cfg)
	if cfg.LLM.MaxAttempts != 2 {
		t.Errorf("expected an unparsable override to be ignored, got %d", cfg.LLM.MaxAttempts)
	}
}
