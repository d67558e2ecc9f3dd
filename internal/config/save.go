package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// SaveConfig writes the configuration to path, choosing the format by
// extension (TOML when unknown). An existing file is backed up first.
func SaveConfig(cfg *Config, path string) error {
	data, err := Encode(cfg, filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if _, err := backupConfig(path); err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Encode renders cfg in the format named by ext (".toml", ".json", ".yaml").
func Encode(cfg *Config, ext string) ([]byte, error) {
	snapshot := cfg.Clone()

	switch ext {
	case ".json":
		return json.MarshalIndent(snapshot, "", "  ")
	case ".yaml", ".yml":
		return yaml.Marshal(snapshot)
	default:
		var buf bytes.Buffer
		buf.WriteString("# keytrail configuration\n\n")
		if err := toml.NewEncoder(&buf).Encode(snapshot); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

// backupConfig copies an existing config file aside before it is replaced.
func backupConfig(configPath string) (string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}

	backupPath := configPath + ".backup-" + time.Now().Format("20060102-150405")
	if err := os.WriteFile(backupPath, data, 0600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return backupPath, nil
}
