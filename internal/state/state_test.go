package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Deduplicator Tests
// =============================================================================

func TestDeduplicator_New(t *testing.T) {
	tests := []struct {
		name      string
		estimated int
	}{
		{"tiny", 1},
		{"small", 100},
		{"large", 100000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDeduplicator(tt.estimated)
			require.NotNil(t, d)
			assert.Equal(t, 0, d.Count())
		})
	}
}

func TestDeduplicator_Seen(t *testing.T) {
	d := NewDeduplicator(100)

	plain := `https://example.com/api/cats_{}`
	withAccept := `https://example.com/api/cats_{"Accept":"application/json"}`

	assert.False(t, d.Seen(plain), "first sighting")
	assert.True(t, d.Seen(plain), "second sighting")
	assert.False(t, d.Seen(withAccept), "different headers are a different key")
	assert.Equal(t, 2, d.Count())
}

func TestDeduplicator_Seen_Concurrent(t *testing.T) {
	d := NewDeduplicator(100)
	var firsts atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !d.Seen("same-key") {
				firsts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), firsts.Load(), "exactly one caller sees the key first")
}

// =============================================================================
// Store Tests
// =============================================================================

func sampleRecord(origin string, at time.Time, id string) *ScanRecord {
	return &ScanRecord{
		ID:          id,
		Token:       1,
		Input:       origin + "/x",
		Origin:      origin,
		InitialPath: "/x",
		Selected:    &EndpointRecord{Path: "/api/cats", Method: "GET", APIType: "REST", Description: "Returns array (2 items)"},
		Endpoints: []EndpointRecord{
			{Path: "/api/cats", Method: "GET", APIType: "REST", Description: "Returns array (2 items)"},
		},
		Candidates:  9,
		StartedAt:   at,
		CompletedAt: at.Add(1500 * time.Millisecond),
	}
}

func storeContract(t *testing.T, s Store) {
	t.Helper()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.Save(sampleRecord("https://b.example", base.Add(time.Minute), "2")))
	require.NoError(t, s.Save(sampleRecord("https://b.example", base, "1")))
	require.NoError(t, s.Save(sampleRecord("https://a.example", base, "3")))

	origins, err := s.Origins()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, origins)

	records, err := s.List("https://b.example")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "/api/cats", records[0].Selected.Path)
	assert.Equal(t, 9, records[0].Candidates)
	assert.Equal(t, 1500*time.Millisecond, records[0].Duration())

	none, err := s.List("https://missing.example")
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Error(t, s.Save(&ScanRecord{ID: "x"}), "records need an origin")
}

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	s, err := NewBoltStore(path)
	require.NoError(t, err)
	defer s.Close()

	storeContract(t, s)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	records, err := s.List("https://b.example")
	require.NoError(t, err)
	assert.Equal(t, "1", records[0].ID, "records are ordered by start time")
	assert.True(t, records[0].StartedAt.Equal(base))
}

func TestBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(sampleRecord("https://a.example", time.Now(), "1")))
	require.NoError(t, s.Close())

	s, err = NewBoltStore(path)
	require.NoError(t, err)
	defer s.Close()

	records, err := s.List("https://a.example")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	storeContract(t, NewFileStore(path, false))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestFileStore_Compressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	storeContract(t, NewFileStore(path, true))

	_, err := os.Stat(path + ".gz")
	assert.NoError(t, err)
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewFileStore(path, false).List("https://a.example")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		want string
	}{
		{"json", filepath.Join(dir, "h.json"), "*state.FileStore"},
		{"gzip json", filepath.Join(dir, "h.json.gz"), "*state.FileStore"},
		{"bolt", filepath.Join(dir, "h.db"), "*state.BoltStore"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.path)
			require.NoError(t, err)
			defer s.Close()
			assert.Equal(t, tt.want, fmt.Sprintf("%T", s))
		})
	}
}
