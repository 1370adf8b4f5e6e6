package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profile.json")
	s := NewFileStore(path)

	p, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, Profile{}, p)

	want := Profile{Role: RoleGuest, GuestName: "Ada", TrackedOrderIDs: []string{"a", "b"}, Session: "tok"}
	require.NoError(t, s.Save(want))

	got, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

func TestProfile_TrackDeduplicates(t *testing.T) {
	var p Profile
	p.Track("a")
	p.Track("b")
	p.Track("a")
	assert.Equal(t, []string{"a", "b"}, p.TrackedOrderIDs)
}

func TestMemoryStore_CopiesTrackedIDs(t *testing.T) {
	var m MemoryStore
	ids := []string{"a"}
	require.NoError(t, m.Save(Profile{Role: RoleGuest, TrackedOrderIDs: ids}))
	ids[0] = "changed"

	p, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, p.TrackedOrderIDs)

	require.NoError(t, m.Clear())
	p, _ = m.Load()
	assert.Equal(t, RoleNone, p.Role)
}
