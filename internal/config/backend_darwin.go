//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.ragent.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ragent"
	}
	return filepath.Join(home, "Library", "Application Support", "ragent")
}

// darwinBackend stores keys in the com.ragent.app defaults domain with
// their native plist types (-string, -int, -float).
type darwinBackend struct {
	domain string
}

func newPlatformBackend() ConfigBackend {
	return &darwinBackend{domain: defaultsDomain}
}

// read returns ok=false when defaults exits 1, which it does for a key that
// was never written.
func (b *darwinBackend) read(key string) (string, bool, error) {
	out, err := exec.Command("defaults", "read", b.domain, key).CombinedOutput()
	s := strings.TrimSpace(string(out))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", false, nil
		}
		return "", false, fmt.Errorf("defaults read %s %s: %w (%s)", b.domain, key, err, s)
	}
	return s, true, nil
}

func (b *darwinBackend) write(key, typ, val string) error {
	out, err := exec.Command("defaults", "write", b.domain, key, typ, val).CombinedOutput()
	if err != nil {
		return fmt.Errorf("defaults write %s %s: %w (%s)", b.domain, key, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (b *darwinBackend) GetString(key string) (string, bool, error) {
	return b.read(key)
}

func (b *darwinBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.read(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, true, nil
}

func (b *darwinBackend) GetFloat(key string) (float64, bool, error) {
	s, ok, err := b.read(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, true, fmt.Errorf("invalid number for %s: %w", key, err)
	}
	return f, true, nil
}

func (b *darwinBackend) SetString(key, val string) error {
	return b.write(key, "-string", val)
}

func (b *darwinBackend) SetInt(key string, val int) error {
	return b.write(key, "-int", strconv.Itoa(val))
}

func (b *darwinBackend) SetFloat(key string, val float64) error {
	return b.write(key, "-float", strconv.FormatFloat(val, 'g', -1, 64))
}

func (b *darwinBackend) Delete(key string) error {
	return exec.Command("defaults", "delete", b.domain, key).Run()
}
