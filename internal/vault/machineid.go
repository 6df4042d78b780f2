package vault

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/afero"
)

const (
	machineIDTokenLength = 32
	cachedMachineIDPerm  = 0o600
)

var posixMachineIDPaths = []string{"/etc/machine-id", "/var/lib/dbus/machine-id"}

// MachineHash derives a stable, SHA-256-hashed identifier for the current
// host: `/etc/machine-id` or its dbus equivalent on POSIX, the product UUID
// via WMIC on Windows, or (failing both) a random token cached under
// homeDir/.ariana/machine-id so the value is stable across runs.
func MachineHash(ctx context.Context, fsys afero.Fs, homeDir string) (string, error) {
	id, err := systemMachineID(ctx, fsys)
	if err != nil {
		id, err = cachedRandomMachineID(fsys, homeDir)
		if err != nil {
			return "", err
		}
	}

	sum := sha256.Sum256([]byte(id))

	return hex.EncodeToString(sum[:]), nil
}

func systemMachineID(ctx context.Context, fsys afero.Fs) (string, error) {
	if runtime.GOOS == "windows" {
		return windowsMachineID(ctx)
	}

	for _, path := range posixMachineIDPaths {
		data, err := afero.ReadFile(fsys, path)
		if err == nil && strings.TrimSpace(string(data)) != "" {
			return strings.TrimSpace(string(data)), nil
		}
	}

	return "", errNoSystemMachineID
}

func windowsMachineID(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "wmic", "csproduct", "get", "UUID") //nolint:noctx

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: %w", errNoSystemMachineID, err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 {
		return "", errNoSystemMachineID
	}

	uuid := strings.TrimSpace(lines[1])
	if uuid == "" {
		return "", errNoSystemMachineID
	}

	return uuid, nil
}

func cachedRandomMachineID(fsys afero.Fs, homeDir string) (string, error) {
	path := filepath.Join(homeDir, ".ariana", "machine-id")

	if data, err := afero.ReadFile(fsys, path); err == nil && strings.TrimSpace(string(data)) != "" {
		return strings.TrimSpace(string(data)), nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read cached machine id: %q (%w)", path, err)
	}

	token, err := randomToken(machineIDTokenLength)
	if err != nil {
		return "", err
	}

	if err := fsys.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create: %q (%w)", filepath.Dir(path), err)
	}

	if err := afero.WriteFile(fsys, path, []byte(token), cachedMachineIDPerm); err != nil {
		return "", fmt.Errorf("failed to cache machine id: %q (%w)", path, err)
	}

	return token, nil
}

func randomToken(length int) (string, error) {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}

	return string(buf), nil
}
