// Package config loads the process bootstrap configuration: everything
// that is fixed at startup, as opposed to the runtime settings in
// internal/appconfig.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config is loaded once at start and passed by reference into every
// component that needs it.
type Config struct {
	Bind     string
	Port     int
	DataDir  string
	LogLevel zerolog.Level

	// Cookie codec keys (hash 64 bytes, block 32 bytes).
	SessionHashKey  []byte
	SessionBlockKey []byte

	// Fixed-window login throttle.
	LoginRateLimit  int
	LoginRateWindow time.Duration
}

func (c Config) DBPath() string        { return filepath.Join(c.DataDir, "wolweb.db") }
func (c Config) SettingsPath() string  { return filepath.Join(c.DataDir, "settings.conf") }
func (c Config) RateLimitPath() string { return filepath.Join(c.DataDir, "ratelimit.json") }

// Load reads configuration from the environment (WOLWEB_ prefix) and an
// optional config file. Session keys are generated and persisted under
// the data dir on first boot when not provided, so sessions survive
// restarts.
func Load(configFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("wolweb")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("bind", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("data_dir", "./data")
	v.SetDefault("log_level", "info")
	v.SetDefault("login_rate_limit", 10)
	v.SetDefault("login_rate_window", "15m")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	level, err := zerolog.ParseLevel(v.GetString("log_level"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid log level %q: %w", v.GetString("log_level"), err)
	}

	cfg := Config{
		Bind:            v.GetString("bind"),
		Port:            v.GetInt("port"),
		DataDir:         v.GetString("data_dir"),
		LogLevel:        level,
		LoginRateLimit:  v.GetInt("login_rate_limit"),
		LoginRateWindow: v.GetDuration("login_rate_window"),
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return Config{}, fmt.Errorf("creating data dir: %w", err)
	}

	cfg.SessionHashKey, cfg.SessionBlockKey, err = sessionKeys(v, cfg.DataDir)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// sessionKeys reads hex-encoded keys from the environment, falling back
// to a key file under the data dir that is created on first boot.
func sessionKeys(v *viper.Viper, dataDir string) (hashKey, blockKey []byte, err error) {
	if hk, bk := v.GetString("session_hash_key"), v.GetString("session_block_key"); hk != "" && bk != "" {
		hashKey, err = hex.DecodeString(hk)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid session hash key: %w", err)
		}
		blockKey, err = hex.DecodeString(bk)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid session block key: %w", err)
		}
		return hashKey, blockKey, nil
	}

	path := filepath.Join(dataDir, "session.key")
	if data, rerr := os.ReadFile(path); rerr == nil {
		parts := strings.Fields(string(data))
		if len(parts) == 2 {
			if hashKey, err = hex.DecodeString(parts[0]); err == nil {
				if blockKey, err = hex.DecodeString(parts[1]); err == nil {
					return hashKey, blockKey, nil
				}
			}
		}
		// fall through and regenerate on any parse failure
	}

	hashKey = securecookie.GenerateRandomKey(64)
	blockKey = securecookie.GenerateRandomKey(32)
	if hashKey == nil || blockKey == nil {
		return nil, nil, fmt.Errorf("generating session keys")
	}
	content := hex.EncodeToString(hashKey) + "\n" + hex.EncodeToString(blockKey) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return nil, nil, fmt.Errorf("persisting session keys: %w", err)
	}
	return hashKey, blockKey, nil
}
