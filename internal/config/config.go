// Package config handles configuration loading, validation, and management for keytrail.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"

	"keytrail/internal/warning"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete recorder configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Recording configures where and how session logs are written.
	Recording RecordingConfig `toml:"recording" json:"recording" yaml:"recording"`

	// Cipher configures the line cipher key.
	Cipher CipherConfig `toml:"cipher" json:"cipher" yaml:"cipher"`

	// Buffer configures the warning section.
	Buffer BufferConfig `toml:"buffer" json:"buffer" yaml:"buffer"`

	// Warnings configures the anomaly trackers.
	Warnings WarningsConfig `toml:"warnings" json:"warnings" yaml:"warnings"`

	// Hotkeys configures the debug key tracker.
	Hotkeys HotkeysConfig `toml:"hotkeys" json:"hotkeys" yaml:"hotkeys"`

	// Export configures where saved logs are copied.
	Export ExportConfig `toml:"export" json:"export" yaml:"export"`

	// Storage configures the metadata database.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Notify configures the overlay sink.
	Notify NotifyConfig `toml:"notify" json:"notify" yaml:"notify"`

	// Settings lists third-party settings files embedded in log headers.
	Settings SettingsConfig `toml:"settings" json:"settings" yaml:"settings"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// RecordingConfig holds session log configuration.
type RecordingConfig struct {
	// LogDir is the directory session logs are written to.
	LogDir string `toml:"log_dir" json:"log_dir" yaml:"log_dir" env:"KEYTRAIL_LOG_DIR"`

	// SyncMode determines fsync behavior: "off", "normal", "full".
	SyncMode string `toml:"sync_mode" json:"sync_mode" yaml:"sync_mode" env:"KEYTRAIL_SYNC_MODE"`

	// Separator frames the settings header and footer blocks.
	Separator string `toml:"separator" json:"separator" yaml:"separator"`

	// QueueLimit bounds transitions buffered between ticks. 0 is unbounded.
	QueueLimit int `toml:"queue_limit" json:"queue_limit" yaml:"queue_limit"`
}

// CipherConfig holds the line cipher key material.
type CipherConfig struct {
	// Passphrase is mixed into the key. Prefer the environment variable.
	Passphrase string `toml:"passphrase" json:"passphrase" yaml:"passphrase" env:"KEYTRAIL_CIPHER_PASSPHRASE"`

	// Salt separates key spaces between installations.
	Salt string `toml:"salt" json:"salt" yaml:"salt" env:"KEYTRAIL_CIPHER_SALT"`
}

// BufferConfig holds warning section configuration.
type BufferConfig struct {
	// FlushThreshold is the pending line count that triggers a flush.
	FlushThreshold int `toml:"flush_threshold" json:"flush_threshold" yaml:"flush_threshold"`
}

// WarningsConfig holds anomaly tracker configuration.
type WarningsConfig struct {
	// DrainThreshold is the combined pending warning count at which warnings
	// move from the trackers into the buffer.
	DrainThreshold int `toml:"drain_threshold" json:"drain_threshold" yaml:"drain_threshold"`

	Speed SpeedConfig `toml:"speed" json:"speed" yaml:"speed"`
	Hit   HitConfig   `toml:"hit" json:"hit" yaml:"hit"`
}

// SpeedConfig mirrors warning.SpeedConfig.
type SpeedConfig struct {
	LookbackMs int64 `toml:"lookback_ms" json:"lookback_ms" yaml:"lookback_ms"`
	MaxSamples int   `toml:"max_samples" json:"max_samples" yaml:"max_samples"`
}

// HitConfig mirrors warning.HitConfig.
type HitConfig struct {
	LookbackMs  int64 `toml:"lookback_ms" json:"lookback_ms" yaml:"lookback_ms"`
	MinRun      int   `toml:"min_run" json:"min_run" yaml:"min_run"`
	ToleranceMs int64 `toml:"tolerance_ms" json:"tolerance_ms" yaml:"tolerance_ms"`
	MaxGapMs    int64 `toml:"max_gap_ms" json:"max_gap_ms" yaml:"max_gap_ms"`
}

// SpeedTracker returns the tracker configuration.
func (w WarningsConfig) SpeedTracker() warning.SpeedConfig {
	return warning.SpeedConfig{LookbackMs: w.Speed.LookbackMs, MaxSamples: w.Speed.MaxSamples}
}

// HitTracker returns the tracker configuration.
func (w WarningsConfig) HitTracker() warning.HitConfig {
	return warning.HitConfig{
		LookbackMs:  w.Hit.LookbackMs,
		MinRun:      w.Hit.MinRun,
		ToleranceMs: w.Hit.ToleranceMs,
		MaxGapMs:    w.Hit.MaxGapMs,
	}
}

// HotkeysConfig holds debug hotkey configuration.
type HotkeysConfig struct {
	// DebugKeys are key IDs whose presses are recorded as activations.
	DebugKeys []string `toml:"debug_keys" json:"debug_keys" yaml:"debug_keys" env:"KEYTRAIL_DEBUG_KEYS" envSeparator:","`
}

// ExportConfig holds saved-log export configuration.
type ExportConfig struct {
	// Root is the export tree root.
	Root string `toml:"root" json:"root" yaml:"root" env:"KEYTRAIL_EXPORT_ROOT"`

	// AutoExport copies each log into the tree when its session closes.
	AutoExport bool `toml:"auto_export" json:"auto_export" yaml:"auto_export" env:"KEYTRAIL_AUTO_EXPORT"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// Path is the path to the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path" env:"KEYTRAIL_STORAGE_PATH"`
}

// NotifyConfig holds overlay configuration.
type NotifyConfig struct {
	// Toasts enables the "log saved" toast.
	Toasts bool `toml:"toasts" json:"toasts" yaml:"toasts"`

	// ToastSeconds is how long a toast stays up.
	ToastSeconds int `toml:"toast_seconds" json:"toast_seconds" yaml:"toast_seconds"`

	// Desktop routes toasts to the desktop notification service.
	Desktop bool `toml:"desktop" json:"desktop" yaml:"desktop" env:"KEYTRAIL_DESKTOP_NOTIFY"`
}

// SettingsConfig holds settings provider configuration.
type SettingsConfig struct {
	// Files are TOML, YAML, or JSON files summarized into the log header.
	Files []string `toml:"files" json:"files" yaml:"files"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level" env:"KEYTRAIL_LOG_LEVEL"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format" env:"KEYTRAIL_LOG_FORMAT"`

	// Output is the log output: "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path" env:"KEYTRAIL_LOG_PATH"`

	// MaxSizeMB is the maximum size of a log file before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the maximum number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()
	speed := warning.DefaultSpeedConfig()
	hit := warning.DefaultHitConfig()

	return &Config{
		Version: Version,
		Recording: RecordingConfig{
			LogDir:     filepath.Join(dir, "sessions"),
			SyncMode:   "normal",
			Separator:  "----------",
			QueueLimit: 4096,
		},
		Cipher: CipherConfig{
			Passphrase: "",
			Salt:       "keytrail",
		},
		Buffer: BufferConfig{
			FlushThreshold: 10,
		},
		Warnings: WarningsConfig{
			DrainThreshold: 5,
			Speed:          SpeedConfig{LookbackMs: speed.LookbackMs, MaxSamples: speed.MaxSamples},
			Hit: HitConfig{
				LookbackMs:  hit.LookbackMs,
				MinRun:      hit.MinRun,
				ToleranceMs: hit.ToleranceMs,
				MaxGapMs:    hit.MaxGapMs,
			},
		},
		Hotkeys: HotkeysConfig{
			DebugKeys: []string{"F1", "F2", "F3", "F4", "F5", "F6", "F7", "F8", "F9", "F10", "F11", "F12"},
		},
		Export: ExportConfig{
			Root:       filepath.Join(dir, "export"),
			AutoExport: false,
		},
		Storage: StorageConfig{
			Path: filepath.Join(dir, "keytrail.db"),
		},
		Notify: NotifyConfig{
			Toasts:       true,
			ToastSeconds: 3,
			Desktop:      false,
		},
		Settings: SettingsConfig{
			Files: []string{},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "keytrail.log"),
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension; JSON files
// are additionally checked against the embedded schema.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates all necessary directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Recording.LogDir,
		filepath.Dir(c.Storage.Path),
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DataDir returns the base keytrail data directory.
// Uses platform-specific paths or the KEYTRAIL_DATA_DIR environment override.
func DataDir() string {
	if envDir := os.Getenv("KEYTRAIL_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies KEYTRAIL_* environment variable overrides.
// Unset variables leave the loaded values untouched.
func (c *Config) ApplyEnvOverrides() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version:   c.Version,
		Recording: c.Recording,
		Cipher:    c.Cipher,
		Buffer:    c.Buffer,
		Warnings:  c.Warnings,
		Hotkeys:   c.Hotkeys,
		Export:    c.Export,
		Storage:   c.Storage,
		Notify:    c.Notify,
		Settings:  c.Settings,
		Logging:   c.Logging,
	}
	clone.Hotkeys.DebugKeys = append([]string{}, c.Hotkeys.DebugKeys...)
	clone.Settings.Files = append([]string{}, c.Settings.Files...)

	return clone
}
