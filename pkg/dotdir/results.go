package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	resultsFile = "last_search.json"
)

// SearchState is the persisted result list of the most recent CLI search.
type SearchState struct {
	// Query is the text query, empty for image-only searches.
	Query string `json:"query,omitempty"`

	// IDs are the result image ids in rank order.
	IDs []string `json:"ids"`
}

// Resolve maps a 1-based result number ("3" or "#3") to an image id.
// Anything else is returned unchanged.
func (s *SearchState) Resolve(ref string) string {
	if s == nil {
		return ref
	}

	n, err := strconv.Atoi(strings.TrimPrefix(ref, "#"))
	if err != nil || n < 1 || n > len(s.IDs) {
		return ref
	}
	return s.IDs[n-1]
}

// LoadSearchState loads the last search from .snaps/last_search.json.
// Returns nil, nil if there is no directory or no saved search.
func (m *Manager) LoadSearchState(overrideDir string) (*SearchState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, resultsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading search state: %w", err)
	}

	state := &SearchState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing search state: %w", err)
	}

	return state, nil
}

// SaveSearchState persists state to .snaps/last_search.json.
func (m *Manager) SaveSearchState(state *SearchState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil search state")
	}

	dir, err := m.Ensure(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling search state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, resultsFile), data, 0o600); err != nil {
		return fmt.Errorf("writing search state: %w", err)
	}

	return nil
}

// ClearSearchState removes the saved search. Missing state is not an error.
func (m *Manager) ClearSearchState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return err
	}

	if err := os.Remove(filepath.Join(dir, resultsFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing search state: %w", err)
	}

	return nil
}
