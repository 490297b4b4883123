// Package config loads the process-level configuration: a YAML file on
// disk with environment-variable overrides, grounded on the teacher's
// direct gopkg.in/yaml.v3 struct-tag style (pkg/connector/config.go)
// without its mautrix-specific configupgrade machinery, which has no
// home in a standalone bot.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration object.
type Config struct {
	DataDir     string `yaml:"data_dir"`
	LogLevel    string `yaml:"log_level"`
	RootUserIDs []string `yaml:"root_user_ids"`

	LLM LLMConfig `yaml:"llm"`

	Cache       CacheConfig       `yaml:"cache"`
	Broker      BrokerConfig      `yaml:"broker"`
	Web         WebConfig         `yaml:"web"`
}

// LLMConfig configures the retry behavior of internal/llmclient.
// PoolMaxSize and PoolIdleTimeout are parsed but not passed on: the
// client pool always uses llmclient's DefaultPoolMaxSize and
// DefaultIdleTimeout.
type LLMConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	PoolMaxSize    int           `yaml:"pool_max_size"`
	PoolIdleTimeout time.Duration `yaml:"pool_idle_timeout"`
}

// CacheConfig configures internal/cache's persisted-state location.
// FlushInterval and VoteTTL are parsed but not passed on: the cache uses
// its own fixed flush delay and vote expiry.
type CacheConfig struct {
	Path          string        `yaml:"path"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	VoteTTL       time.Duration `yaml:"vote_ttl"`
}

// BrokerConfig configures internal/broker's persisted-state locations.
type BrokerConfig struct {
	PresetsPath   string `yaml:"presets_path"`
	CipherKeyPath string `yaml:"cipher_key_path"`
}

// WebConfig configures the (out-of-scope-implementation) web-start surface.
type WebConfig struct {
	PublicBaseURL string `yaml:"public_base_url"`
}

// Default returns a Config with every field at its documented default,
// rooted under dataDir.
func Default(dataDir string) Config {
	return Config{
		DataDir:  dataDir,
		LogLevel: "info",
		LLM: LLMConfig{
			MaxAttempts:     2,
			BaseDelay:       time.Second,
			MaxDelay:        30 * time.Second,
			CallTimeout:     60 * time.Second,
			PoolMaxSize:     20,
			PoolIdleTimeout: time.Hour,
		},
		Cache: CacheConfig{
			Path:          dataDir + "/cache.json",
			FlushInterval: 5 * time.Second,
			VoteTTL:       24 * time.Hour,
		},
		Broker: BrokerConfig{
			PresetsPath:   dataDir + "/llm_presets.json",
			CipherKeyPath: dataDir + "/llm_cipher.key",
		},
	}
}

// Load reads a YAML config file at path (if it exists), applies it over
// Default(dataDir), then applies AIGMBOT_-prefixed environment variable
// overrides (including any loaded from a .env file in the working
// directory, mirroring the teacher's deployment convention of keeping
// secrets out of the committed config).
func Load(path, dataDir string) (Config, error) {
	_ = godotenv.Load() // optional; absent .env is not an error

	cfg := Default(dataDir)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("AIGMBOT_DATA_DIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := os.LookupEnv("AIGMBOT_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("AIGMBOT_ROOT_USER_IDS"); ok {
		cfg.RootUserIDs = strings.Split(v, ",")
	}
	if v, ok := os.LookupEnv("AIGMBOT_LLM_MAX_ATTEMPTS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.MaxAttempts = n
		}
	}
	if v, ok := os.LookupEnv("AIGMBOT_WEB_PUBLIC_BASE_URL"); ok {
		cfg.Web.PublicBaseURL = v
	}
}
