//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

func defaultDataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), "ragent")
}

func configFilePath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "ragent", "config.json")
}

// xdgDir returns $env, falling back to ~/<fallback...> and then to the
// working directory.
func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

// fileBackend keeps config as one flat JSON object keyed by dotted names.
// Every Set rewrites the whole file.
type fileBackend struct {
	path string
	data map[string]any
}

func newPlatformBackend() ConfigBackend {
	return newFileBackend(configFilePath())
}

// newFileBackend loads path. A missing or unreadable file yields an empty
// backend so defaults apply.
func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, data: make(map[string]any)}
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		slog.Warn("config file unreadable, using defaults", "path", path, "error", err)
	default:
		if err := json.Unmarshal(raw, &b.data); err != nil {
			slog.Warn("config file is not valid JSON, using defaults", "path", path, "error", err)
			b.data = make(map[string]any)
		}
	}
	return b
}

func (b *fileBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	raw, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(b.path, raw, 0o600)
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	if s, isString := v.(string); isString {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

// number reads key as a JSON number. Numeric strings are accepted so hand
// edited files like {"server.port": "4000"} still load.
func (b *fileBackend) number(key string) (float64, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case float64:
		return val, true, nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, true, fmt.Errorf("invalid number for %s: %w", key, err)
		}
		return f, true, nil
	default:
		return 0, true, fmt.Errorf("%s holds %T, want a number", key, v)
	}
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	f, ok, err := b.number(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	if f != math.Trunc(f) || f < math.MinInt || f > math.MaxInt {
		return 0, true, fmt.Errorf("value %v for %s is not a valid integer", f, key)
	}
	return int(f), true, nil
}

func (b *fileBackend) GetFloat(key string) (float64, bool, error) {
	return b.number(key)
}

func (b *fileBackend) SetString(key, val string) error        { return b.set(key, val) }
func (b *fileBackend) SetInt(key string, val int) error       { return b.set(key, val) }
func (b *fileBackend) SetFloat(key string, val float64) error { return b.set(key, val) }

func (b *fileBackend) set(key string, val any) error {
	b.data[key] = val
	return b.save()
}

func (b *fileBackend) Delete(key string) error {
	delete(b.data, key)
	return b.save()
}
