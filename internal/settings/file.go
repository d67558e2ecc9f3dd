package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileProvider reads a third-party settings file and flattens it into sorted
// "key = value" lines. The format is chosen by extension: .toml, .yaml/.yml,
// or .json.
type FileProvider struct {
	Path  string
	Label string
}

// NewFileProvider names the provider after the file's base name unless label
// is set.
func NewFileProvider(path, label string) *FileProvider {
	if label == "" {
		label = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &FileProvider{Path: path, Label: label}
}

func (p *FileProvider) Name() string { return p.Label }

func (p *FileProvider) SettingsLines() ([]string, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s not found", ErrUnavailable, p.Path)
		}
		return nil, fmt.Errorf("read %s: %w", p.Path, err)
	}

	var doc map[string]any
	switch ext := strings.ToLower(filepath.Ext(p.Path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("parse TOML %s: %w", p.Path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse YAML %s: %w", p.Path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse JSON %s: %w", p.Path, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported settings format %q", ErrUnavailable, ext)
	}

	return Flatten(doc), nil
}

// Flatten renders a nested document as sorted "a.b.c = value" lines. Lists
// are rendered inline.
func Flatten(doc map[string]any) []string {
	var lines []string
	flatten("", doc, &lines)
	sort.Strings(lines)
	return lines
}

func flatten(prefix string, v any, out *[]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			flatten(join(prefix, k), child, out)
		}
	case map[any]any:
		for k, child := range t {
			flatten(join(prefix, fmt.Sprint(k)), child, out)
		}
	case []map[string]any:
		for i, child := range t {
			flatten(fmt.Sprintf("%s[%d]", prefix, i), child, out)
		}
	default:
		*out = append(*out, fmt.Sprintf("%s = %s", prefix, scalar(v)))
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = scalar(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(t)
	}
}
