package emu

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"gblink/link"
)

type Config struct {
	General GeneralConfig `toml:"general"`
	Link    link.Config   `toml:"link"`
}

type GeneralConfig struct {
	// CGB enables the color model serial port, with its fast clock.
	CGB         bool `toml:"cgb"`
	DoubleSpeed bool `toml:"double_speed"`
	// FramesLimit stops emulation after that many frames, 0 means no limit.
	FramesLimit int64 `toml:"frames_limit"`
}

func DefaultConfig() Config {
	return Config{Link: link.DefaultConfig()}
}

// ConfigDir returns the gblink configuration directory, creating it if
// needed.
var ConfigDir = sync.OnceValues(func() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir = filepath.Join(dir, "gblink")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %v", dir, err)
	}
	return dir, nil
})

const cfgFilename = "config.toml"

func configPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, cfgFilename), nil
}

// LoadConfigOrDefault loads the configuration at path, or from the gblink
// config directory if path is empty. A missing file gives the default
// configuration.
func LoadConfigOrDefault(path string) (Config, error) {
	cfg := DefaultConfig()
	path, err := configPath(path)
	if err != nil {
		return cfg, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return DefaultConfig(), fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg at path, or into the gblink config directory if
// path is empty.
func SaveConfig(path string, cfg Config) error {
	path, err := configPath(path)
	if err != nil {
		return err
	}
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}
