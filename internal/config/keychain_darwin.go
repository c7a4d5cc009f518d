//go:build darwin

package config

import (
	"fmt"
	"os/exec"
	"strings"
)

// keychainGet reads a generic password from the login keychain.
func keychainGet(service, account string) ([]byte, error) {
	out, err := exec.Command("security", "find-generic-password", "-s", service, "-a", account, "-w").Output()
	if err != nil {
		return nil, fmt.Errorf("keychain lookup %s/%s: %w", service, account, err)
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// keychainSet creates or updates (-U) a generic password.
func keychainSet(service, account, value string) error {
	if err := exec.Command("security", "add-generic-password", "-U", "-s", service, "-a", account, "-w", value).Run(); err != nil {
		return fmt.Errorf("keychain store %s/%s: %w", service, account, err)
	}
	return nil
}
