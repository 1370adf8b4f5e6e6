// Package profile persists the device-local view state: who is signed in,
// the guest's name and the ids of the orders this device created. None of it
// is ever sent to the store.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Role is the kind of session the device holds.
type Role string

const (
	RoleNone  Role = ""
	RoleGuest Role = "guest"
	RoleAdmin Role = "admin"
)

// Profile is the persisted view state.
type Profile struct {
	Role            Role     `json:"role"`
	GuestName       string   `json:"guestName,omitempty"`
	TrackedOrderIDs []string `json:"trackedOrderIds,omitempty"`
	Session         string   `json:"session,omitempty"`
}

// Track appends id to the tracking set unless it is already present.
func (p *Profile) Track(id string) {
	if !slices.Contains(p.TrackedOrderIDs, id) {
		p.TrackedOrderIDs = append(p.TrackedOrderIDs, id)
	}
}

// Store loads and saves a Profile.
type Store interface {
	Load() (Profile, error)
	Save(Profile) error
	Clear() error
}

// FileStore keeps the profile as a JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath is the profile location under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "brewpulse", "profile.json"), nil
}

// Load returns the saved profile, or an empty one if none was saved.
func (s *FileStore) Load() (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Profile{}, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile %s: %w", s.path, err)
	}
	return p, nil
}

// Save writes the profile atomically.
func (s *FileStore) Save(p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace profile: %w", err)
	}
	return nil
}

// Clear removes the saved profile.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove profile: %w", err)
	}
	return nil
}

// MemoryStore keeps the profile in memory.
type MemoryStore struct {
	mu sync.Mutex
	p  Profile
}

func (m *MemoryStore) Load() (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.p
	p.TrackedOrderIDs = slices.Clone(m.p.TrackedOrderIDs)
	return p, nil
}

func (m *MemoryStore) Save(p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.p = p
	m.p.TrackedOrderIDs = slices.Clone(p.TrackedOrderIDs)
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.p = Profile{}
	return nil
}
