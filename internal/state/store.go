package state

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketScans = []byte("scans")

// Open picks a store for path: .json and .json.gz files use FileStore,
// anything else is a bbolt database.
func Open(path string) (Store, error) {
	switch {
	case strings.HasSuffix(path, ".json.gz"):
		return NewFileStore(strings.TrimSuffix(path, ".gz"), true), nil
	case strings.HasSuffix(path, ".json"):
		return NewFileStore(path, false), nil
	default:
		return NewBoltStore(path)
	}
}

// recordKey orders records chronologically within an origin bucket.
func recordKey(r *ScanRecord) []byte {
	return []byte(fmt.Sprintf("%020d-%s", r.StartedAt.UnixNano(), r.ID))
}

// BoltStore implements Store using BoltDB. Each origin gets a nested bucket.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore creates a new BoltDB-backed history store.
func NewBoltStore(path string) (*BoltStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketScans)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// Save stores a scan record.
func (s *BoltStore) Save(record *ScanRecord) error {
	if record.Origin == "" {
		return fmt.Errorf("record has no origin")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketScans)
		if root == nil {
			return fmt.Errorf("bucket not found")
		}
		b, err := root.CreateBucketIfNotExists([]byte(record.Origin))
		if err != nil {
			return err
		}
		return b.Put(recordKey(record), data)
	})
}

// List returns the records stored for origin, oldest first.
func (s *BoltStore) List(origin string) ([]*ScanRecord, error) {
	var records []*ScanRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketScans)
		if root == nil {
			return fmt.Errorf("bucket not found")
		}
		b := root.Bucket([]byte(origin))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var r ScanRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to unmarshal record: %w", err)
			}
			records = append(records, &r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Origins returns every origin with stored records.
func (s *BoltStore) Origins() ([]string, error) {
	var origins []string

	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketScans)
		if root == nil {
			return fmt.Errorf("bucket not found")
		}
		return root.ForEach(func(k, v []byte) error {
			// Nested buckets have a nil value.
			if v == nil {
				origins = append(origins, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return origins, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// FileStore implements Store using a single JSON file.
type FileStore struct {
	mu         sync.Mutex
	path       string
	compressed bool
}

// NewFileStore creates a new file-based history store.
func NewFileStore(path string, compressed bool) *FileStore {
	return &FileStore{
		path:       path,
		compressed: compressed,
	}
}

func (s *FileStore) filename() string {
	if s.compressed {
		return s.path + ".gz"
	}
	return s.path
}

// Save appends a record and rewrites the file.
func (s *FileStore) Save(record *ScanRecord) error {
	if record.Origin == "" {
		return fmt.Errorf("record has no origin")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	all[record.Origin] = append(all[record.Origin], record)

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if s.compressed {
		return s.saveCompressed(data)
	}
	return os.WriteFile(s.path, data, 0644)
}

// saveCompressed saves the history with gzip compression.
func (s *FileStore) saveCompressed(data []byte) error {
	file, err := os.Create(s.filename())
	if err != nil {
		return err
	}
	defer file.Close()

	gw := gzip.NewWriter(file)
	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

// load reads the whole history. A missing file is an empty history.
func (s *FileStore) load() (map[string][]*ScanRecord, error) {
	all := make(map[string][]*ScanRecord)

	file, err := os.Open(s.filename())
	if err != nil {
		if os.IsNotExist(err) {
			return all, nil
		}
		return nil, err
	}
	defer file.Close()

	var r io.Reader = file
	if s.compressed {
		gr, err := gzip.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		r = gr
	}

	if err := json.NewDecoder(r).Decode(&all); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	return all, nil
}

// List returns the records stored for origin, oldest first.
func (s *FileStore) List(origin string) ([]*ScanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	return all[origin], nil
}

// Origins returns every origin with stored records.
func (s *FileStore) Origins() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	return sortedKeys(all), nil
}

// Close is a no-op for FileStore.
func (s *FileStore) Close() error {
	return nil
}

// MemoryStore implements Store using in-memory storage.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]*ScanRecord
}

// NewMemoryStore creates a new in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]*ScanRecord)}
}

// Save stores a record in memory.
func (s *MemoryStore) Save(record *ScanRecord) error {
	if record.Origin == "" {
		return fmt.Errorf("record has no origin")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Origin] = append(s.records[record.Origin], record)
	return nil
}

// List returns the records stored for origin, oldest first.
func (s *MemoryStore) List(origin string) ([]*ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*ScanRecord(nil), s.records[origin]...), nil
}

// Origins returns every origin with stored records.
func (s *MemoryStore) Origins() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.records), nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

func sortedKeys(m map[string][]*ScanRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
