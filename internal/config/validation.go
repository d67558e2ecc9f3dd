package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets callers match any validation failure with errors.Is(err, ErrInvalidConfig).
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig && len(e) > 0
}

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool {
	warningFields := []string{
		"cipher.passphrase", // default passphrase still works
		"settings.files",    // settings files may appear later
	}
	for _, f := range warningFields {
		if strings.HasPrefix(e.Field, f) {
			return true
		}
	}
	return false
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// ValidateConfig validates the configuration. Only error-level problems are
// returned; use Check to see warnings as well.
func ValidateConfig(c *Config) error {
	errs := Check(c).Errors()
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Check returns every validation problem, warnings included.
func Check(c *Config) ValidationErrors {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateRecording(&c.Recording)...)
	errs = append(errs, validateCipher(&c.Cipher)...)
	errs = append(errs, validateBuffer(&c.Buffer)...)
	errs = append(errs, validateWarnings(&c.Warnings)...)
	errs = append(errs, validateHotkeys(&c.Hotkeys)...)
	errs = append(errs, validateExport(&c.Export)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateNotify(&c.Notify)...)
	errs = append(errs, validateSettings(&c.Settings)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	return errs
}

func validateRecording(r *RecordingConfig) ValidationErrors {
	var errs ValidationErrors

	if expandPath(r.LogDir) == "" {
		errs = append(errs, ValidationError{Field: "recording.log_dir", Message: "log directory is required"})
	}

	switch r.SyncMode {
	case "off", "normal", "full":
	default:
		errs = append(errs, ValidationError{
			Field:   "recording.sync_mode",
			Message: fmt.Sprintf("invalid sync mode: %s (valid: off, normal, full)", r.SyncMode),
		})
	}

	if r.Separator == "" || strings.ContainsAny(r.Separator, "\r\n") {
		errs = append(errs, ValidationError{Field: "recording.separator", Message: "separator must be a non-empty single line"})
	}

	if r.QueueLimit < 0 {
		errs = append(errs, ValidationError{Field: "recording.queue_limit", Message: "queue limit cannot be negative"})
	}

	return errs
}

func validateCipher(c *CipherConfig) ValidationErrors {
	var errs ValidationErrors
	if c.Passphrase == "" {
		errs = append(errs, ValidationError{
			Field:   "cipher.passphrase",
			Message: "no passphrase set; logs use the built-in default key",
		})
	}
	return errs
}

func validateBuffer(b *BufferConfig) ValidationErrors {
	var errs ValidationErrors
	if b.FlushThreshold < 1 {
		errs = append(errs, ValidationError{Field: "buffer.flush_threshold", Message: "flush threshold must be at least 1"})
	}
	return errs
}

func validateWarnings(w *WarningsConfig) ValidationErrors {
	var errs ValidationErrors

	if w.DrainThreshold < 1 {
		errs = append(errs, ValidationError{Field: "warnings.drain_threshold", Message: "drain threshold must be at least 1"})
	}

	if w.Speed.LookbackMs < 1 {
		errs = append(errs, ValidationError{Field: "warnings.speed.lookback_ms", Message: "lookback must be at least 1ms"})
	}
	if w.Speed.MaxSamples < 1 {
		errs = append(errs, ValidationError{Field: "warnings.speed.max_samples", Message: "max samples must be at least 1"})
	}

	if w.Hit.LookbackMs < 1 {
		errs = append(errs, ValidationError{Field: "warnings.hit.lookback_ms", Message: "lookback must be at least 1ms"})
	}
	if w.Hit.MinRun < 1 {
		errs = append(errs, ValidationError{Field: "warnings.hit.min_run", Message: "min run must be at least 1"})
	}
	if w.Hit.ToleranceMs < 0 {
		errs = append(errs, ValidationError{Field: "warnings.hit.tolerance_ms", Message: "tolerance cannot be negative"})
	}
	if w.Hit.MaxGapMs < 1 {
		errs = append(errs, ValidationError{Field: "warnings.hit.max_gap_ms", Message: "max gap must be at least 1ms"})
	}
	if w.Hit.MaxGapMs > w.Hit.LookbackMs {
		errs = append(errs, ValidationError{
			Field:   "warnings.hit.max_gap_ms",
			Message: fmt.Sprintf("max gap %dms exceeds lookback %dms", w.Hit.MaxGapMs, w.Hit.LookbackMs),
		})
	}

	return errs
}

func validateHotkeys(h *HotkeysConfig) ValidationErrors {
	var errs ValidationErrors
	for i, k := range h.DebugKeys {
		if strings.TrimSpace(k) == "" || strings.Contains(k, "|") {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("hotkeys.debug_keys[%d]", i),
				Message: "key ID must be non-empty and contain no '|'",
			})
		}
	}
	return errs
}

func validateExport(e *ExportConfig) ValidationErrors {
	var errs ValidationErrors
	if e.AutoExport && expandPath(e.Root) == "" {
		errs = append(errs, ValidationError{Field: "export.root", Message: "export root is required when auto_export is on"})
	}
	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors
	if expandPath(s.Path) == "" {
		errs = append(errs, ValidationError{Field: "storage.path", Message: "database path is required"})
	}
	return errs
}

func validateNotify(n *NotifyConfig) ValidationErrors {
	var errs ValidationErrors
	if n.ToastSeconds < 0 || n.ToastSeconds > 60 {
		errs = append(errs, *RangeError("notify.toast_seconds", 0, 60))
	}
	return errs
}

func validateSettings(s *SettingsConfig) ValidationErrors {
	var errs ValidationErrors
	for i, f := range s.Files {
		path := expandPath(f)
		if path == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("settings.files[%d]", i), Message: "path cannot be empty"})
			continue
		}
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("settings.files[%d]", i),
				Message: fmt.Sprintf("%s is not readable yet: %v", path, err),
			})
		}
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output writes to a file",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 0 {
		errs = append(errs, ValidationError{Field: "logging.max_size_mb", Message: "max size cannot be negative"})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{Field: "logging.max_backups", Message: "max backups cannot be negative"})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{Field: "logging.max_age_days", Message: "max age cannot be negative"})
	}

	return errs
}

// Helper functions

// ExpandPath resolves a leading "~/" to the user's home directory.
func ExpandPath(path string) string {
	return expandPath(path)
}

func expandPath(path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
