// Package dotdir manages the .snaps/ and ~/.snaps directories.
//
// The directory holds config.toml and the results of the last CLI search,
// which "snaps show" uses to resolve result numbers to image ids.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the snaps directory.
	dirName = ".snaps"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to an existing .snaps/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.snaps/ dir
//  3. Home ~/.snaps/ dir
//
// When no override is given and neither directory exists, Target returns
// an empty string.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating snaps directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	if m.localDirExists() {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		return filepath.Join(cwd, dirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir := filepath.Join(home, dirName)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", nil
	}
	return dir, nil
}

// Ensure behaves like Target but creates ~/.snaps/ when nothing resolves.
func (m *Manager) Ensure(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir != "" {
		return dir, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir = filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating snaps directory %s: %w", dir, err)
	}
	return dir, nil
}

// localDirExists checks whether a .snaps/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
