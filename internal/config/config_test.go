package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func useTempDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("KEYTRAIL_DATA_DIR", dir)
	return dir
}

func TestDefaultConfig(t *testing.T) {
	dir := useTempDataDir(t)
	cfg := DefaultConfig()

	if cfg.Version != Version {
		t.Errorf("expected version %d, got %d", Version, cfg.Version)
	}
	if !strings.HasPrefix(cfg.Recording.LogDir, dir) {
		t.Errorf("log dir should live under data dir: %s", cfg.Recording.LogDir)
	}
	if !strings.HasPrefix(cfg.Storage.Path, dir) {
		t.Errorf("storage path should live under data dir: %s", cfg.Storage.Path)
	}
	if cfg.Buffer.FlushThreshold != 10 {
		t.Errorf("expected flush threshold 10, got %d", cfg.Buffer.FlushThreshold)
	}
	if len(cfg.Hotkeys.DebugKeys) != 12 {
		t.Errorf("expected 12 debug keys, got %d", len(cfg.Hotkeys.DebugKeys))
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected path ending with config.toml, got %s", path)
	}
	if !strings.Contains(path, "keytrail") {
		t.Errorf("config path should contain keytrail: %s", path)
	}
}

func TestLoadNonexistent(t *testing.T) {
	useTempDataDir(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing", "config.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Recording.SyncMode != "normal" {
		t.Errorf("expected default sync mode, got %s", cfg.Recording.SyncMode)
	}
}

func TestLoadFormats(t *testing.T) {
	useTempDataDir(t)

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "config.toml",
			content: `
[recording]
sync_mode = "full"

[warnings]
drain_threshold = 3

[warnings.speed]
max_samples = 12

[hotkeys]
debug_keys = ["F9", "NoClip"]
`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `
recording:
  sync_mode: full
warnings:
  drain_threshold: 3
  speed:
    max_samples: 12
hotkeys:
  debug_keys: [F9, NoClip]
`,
		},
		{
			name:    "json",
			file:    "config.json",
			content: `{"recording":{"sync_mode":"full"},"warnings":{"drain_threshold":3,"speed":{"max_samples":12}},"hotkeys":{"debug_keys":["F9","NoClip"]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Recording.SyncMode != "full" {
				t.Errorf("sync mode: got %s", cfg.Recording.SyncMode)
			}
			if cfg.Warnings.DrainThreshold != 3 {
				t.Errorf("drain threshold: got %d", cfg.Warnings.DrainThreshold)
			}
			if cfg.Warnings.Speed.MaxSamples != 12 {
				t.Errorf("max samples: got %d", cfg.Warnings.Speed.MaxSamples)
			}
			if cfg.Warnings.Speed.LookbackMs != 1000 {
				t.Errorf("unset lookback should keep default, got %d", cfg.Warnings.Speed.LookbackMs)
			}
			if len(cfg.Hotkeys.DebugKeys) != 2 || cfg.Hotkeys.DebugKeys[1] != "NoClip" {
				t.Errorf("debug keys: got %v", cfg.Hotkeys.DebugKeys)
			}
		})
	}
}

func TestLoadJSONRejectedBySchema(t *testing.T) {
	useTempDataDir(t)

	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", `{"recording":{"sync_mode":"full","bogus":1}}`},
		{"bad enum", `{"recording":{"sync_mode":"sometimes"}}`},
		{"below minimum", `{"buffer":{"flush_threshold":0}}`},
		{"wrong type", `{"notify":{"toasts":"yes"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected schema validation error")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	useTempDataDir(t)
	t.Setenv("KEYTRAIL_LOG_DIR", "/tmp/keytrail-sessions")
	t.Setenv("KEYTRAIL_CIPHER_PASSPHRASE", "from-env")
	t.Setenv("KEYTRAIL_DEBUG_KEYS", "F1,F2")
	t.Setenv("KEYTRAIL_AUTO_EXPORT", "true")
	t.Setenv("KEYTRAIL_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnvOverrides(); err != nil {
		t.Fatalf("ApplyEnvOverrides failed: %v", err)
	}

	if cfg.Recording.LogDir != "/tmp/keytrail-sessions" {
		t.Errorf("log dir: got %s", cfg.Recording.LogDir)
	}
	if cfg.Cipher.Passphrase != "from-env" {
		t.Errorf("passphrase: got %s", cfg.Cipher.Passphrase)
	}
	if len(cfg.Hotkeys.DebugKeys) != 2 {
		t.Errorf("debug keys: got %v", cfg.Hotkeys.DebugKeys)
	}
	if !cfg.Export.AutoExport {
		t.Error("auto export should be on")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level: got %s", cfg.Logging.Level)
	}
	if cfg.Recording.SyncMode != "normal" {
		t.Errorf("unset variables must not clobber values, got sync mode %q", cfg.Recording.SyncMode)
	}
}

func TestEnvOverrideInvalid(t *testing.T) {
	useTempDataDir(t)
	t.Setenv("KEYTRAIL_AUTO_EXPORT", "maybe")

	if err := DefaultConfig().ApplyEnvOverrides(); err == nil {
		t.Error("expected parse error for invalid bool")
	}
}

func TestValidate(t *testing.T) {
	useTempDataDir(t)

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"sync mode", func(c *Config) { c.Recording.SyncMode = "always" }, "recording.sync_mode"},
		{"separator", func(c *Config) { c.Recording.Separator = "a\nb" }, "recording.separator"},
		{"flush threshold", func(c *Config) { c.Buffer.FlushThreshold = 0 }, "buffer.flush_threshold"},
		{"drain threshold", func(c *Config) { c.Warnings.DrainThreshold = 0 }, "warnings.drain_threshold"},
		{"hit gap", func(c *Config) { c.Warnings.Hit.MaxGapMs = 5000 }, "warnings.hit.max_gap_ms"},
		{"debug key", func(c *Config) { c.Hotkeys.DebugKeys = []string{"F1", "a|b"} }, "hotkeys.debug_keys[1]"},
		{"export root", func(c *Config) { c.Export.AutoExport = true; c.Export.Root = "" }, "export.root"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"log output", func(c *Config) { c.Logging.Output = "file"; c.Logging.FilePath = "" }, "logging.file_path"},
		{"toast", func(c *Config) { c.Notify.ToastSeconds = 600 }, "notify.toast_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			found := false
			for _, v := range verrs {
				if v.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.field, verrs)
			}
		})
	}
}

func TestCheckWarnings(t *testing.T) {
	useTempDataDir(t)
	cfg := DefaultConfig()
	cfg.Settings.Files = []string{filepath.Join(t.TempDir(), "absent.toml")}

	all := Check(cfg)
	if all.HasErrors() {
		t.Errorf("expected warnings only, got %v", all.Errors())
	}
	if len(all.Warnings()) != 2 {
		t.Errorf("expected passphrase and settings warnings, got %v", all.Warnings())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("warnings must not fail validation: %v", err)
	}
}

func TestSaveAndReload(t *testing.T) {
	useTempDataDir(t)

	for _, ext := range []string{".toml", ".json", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config"+ext)

			cfg := DefaultConfig()
			cfg.Recording.SyncMode = "off"
			cfg.Warnings.Hit.MinRun = 4
			cfg.Settings.Files = []string{"mods/a.toml"}

			if err := SaveConfig(cfg, path); err != nil {
				t.Fatalf("SaveConfig failed: %v", err)
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.Recording.SyncMode != "off" {
				t.Errorf("sync mode: got %s", loaded.Recording.SyncMode)
			}
			if loaded.Warnings.Hit.MinRun != 4 {
				t.Errorf("min run: got %d", loaded.Warnings.Hit.MinRun)
			}
			if len(loaded.Settings.Files) != 1 {
				t.Errorf("settings files: got %v", loaded.Settings.Files)
			}

			// Second save backs up the first.
			if err := SaveConfig(cfg, path); err != nil {
				t.Fatalf("second SaveConfig failed: %v", err)
			}
			matches, _ := filepath.Glob(path + ".backup-*")
			if len(matches) != 1 {
				t.Errorf("expected one backup, got %v", matches)
			}
		})
	}
}

func TestLoadOrCreate(t *testing.T) {
	useTempDataDir(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	_, created, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if !created {
		t.Error("expected file to be created")
	}

	_, created, err = LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if created {
		t.Error("expected existing file to be loaded")
	}
}

func TestClone(t *testing.T) {
	useTempDataDir(t)
	cfg := DefaultConfig()
	clone := cfg.Clone()

	clone.Hotkeys.DebugKeys[0] = "changed"
	if cfg.Hotkeys.DebugKeys[0] == "changed" {
		t.Error("clone shares debug key slice")
	}
}

func TestTrackerConfigs(t *testing.T) {
	useTempDataDir(t)
	cfg := DefaultConfig()
	cfg.Warnings.Speed.MaxSamples = 7
	cfg.Warnings.Hit.ToleranceMs = 9

	if got := cfg.Warnings.SpeedTracker().MaxSamples; got != 7 {
		t.Errorf("speed max samples: got %d", got)
	}
	if got := cfg.Warnings.HitTracker().ToleranceMs; got != 9 {
		t.Errorf("hit tolerance: got %d", got)
	}
}

func TestLoaderWatch(t *testing.T) {
	useTempDataDir(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[buffer]\nflush_threshold = 4\n"), 0600); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(path)
	defer loader.Close()

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Buffer.FlushThreshold != 4 {
		t.Fatalf("flush threshold: got %d", cfg.Buffer.FlushThreshold)
	}

	changed := make(chan *Config, 1)
	loader.OnChange(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})
	if err := loader.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("[buffer]\nflush_threshold = 9\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changed:
		if c.Buffer.FlushThreshold != 9 {
			t.Errorf("reloaded flush threshold: got %d", c.Buffer.FlushThreshold)
		}
		if loader.Config().Buffer.FlushThreshold != 9 {
			t.Error("loader did not keep the reloaded config")
		}
	case err := <-loader.Errors():
		t.Fatalf("watch error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
