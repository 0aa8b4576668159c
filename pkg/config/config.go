package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/snaps/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	override   string
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{
		ddm:      dotdir.NewManager(),
		override: override,
	}

	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// Without a resolved .snaps/ directory LoadConfig returns defaults and
	// SaveConfig creates ~/.snaps/ on demand.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns every supported configuration key in TOML
// section order.
func ValidConfigKeys() []string {
	out := make([]string, 0, len(keyOrder))
	for _, k := range keyOrder {
		if _, ok := configKeys[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads config.toml from the target .snaps/ directory.
// If the file does not exist, returns NewDefaultConfig() so callers always
// receive a fully-populated Config. Fields set in the file override the
// defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return ParseConfigTOML(data)
}

// SaveConfig persists the configuration to config.toml in the target
// .snaps/ directory, creating ~/.snaps/ when none exists yet.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		dir, err := c.ddm.Ensure(c.override)
		if err != nil {
			return err
		}
		c.targetPath = filepath.Join(dir, configFile)
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// Value returns the string form of key on an already loaded config.
func (cfg *Config) Value(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}
	return info.get(cfg), nil
}

// ParseConfigTOML parses raw TOML bytes into a Config on top of the defaults.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}

// Value sources reported by Source.
const (
	SourceEnv     = "env"
	SourceFile    = "config.toml"
	SourceDefault = "default"
)

// EnvName returns the environment variable that overrides key,
// e.g. "vector_store.provider" -> "SNAPS_VECTOR_STORE_PROVIDER".
func EnvName(key string) string {
	return "SNAPS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Source reports where the effective value of key comes from, ignoring
// command-line flags: the environment, the config file or the defaults.
func (c *Configer) Source(key string) (string, error) {
	if _, ok := os.LookupEnv(EnvName(key)); ok {
		return SourceEnv, nil
	}
	if c.targetPath == "" {
		return SourceDefault, nil
	}

	var raw map[string]any
	meta, err := toml.DecodeFile(c.targetPath, &raw)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SourceDefault, nil
		}
		return "", fmt.Errorf("reading config: %w", err)
	}

	if meta.IsDefined(strings.Split(key, ".")...) {
		return SourceFile, nil
	}
	return SourceDefault, nil
}
