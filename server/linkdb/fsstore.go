package linkdb

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
)

// FileStore keeps one JSON file per record, named <token>.json, in a flat
// directory. This is the zero-dependency backend: trivially inspectable, and
// plenty fast for the volumes this service sees.
//
// Writes go to a temporary file in the same directory, followed by a rename,
// so a crash mid-write leaves either the old record or the new one on disk.
// A striped lock keyed on the token serializes read-modify-write cycles for
// the same token, while unrelated tokens proceed in parallel.
type FileStore struct {
	root  string
	log   logs.Log
	locks [64]sync.Mutex
}

func NewFileStore(log logs.Log, root string) (*FileStore, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("Failed to create link directory %v: %w", absRoot, err)
	}
	return &FileStore{
		root: absRoot,
		log:  log,
	}, nil
}

func (s *FileStore) lock(token string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(token))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

func (s *FileStore) path(token string) (string, error) {
	if token == "" || strings.ContainsAny(token, "/\\") || strings.Contains(token, "..") {
		return "", fmt.Errorf("Invalid token %q", token)
	}
	return filepath.Join(s.root, token+".json"), nil
}

func (s *FileStore) Create(rec *Record) error {
	fn, err := s.path(rec.Token)
	if err != nil {
		return err
	}
	lock := s.lock(rec.Token)
	lock.Lock()
	defer lock.Unlock()
	if _, err := os.Stat(fn); err == nil {
		return ErrConflict
	}
	return s.writeAtomic(fn, rec)
}

func (s *FileStore) Get(token string) (*Record, error) {
	fn, err := s.path(token)
	if err != nil {
		return nil, err
	}
	return s.readRecord(fn)
}

func (s *FileStore) ListAll() ([]*Record, error) {
	files, err := filepath.Glob(filepath.Join(s.root, "*.json"))
	if err != nil {
		return nil, err
	}
	recs := make([]*Record, 0, len(files))
	for _, fn := range files {
		rec, err := s.readRecord(fn)
		if err != nil {
			// A corrupt record must not take down the whole listing, but we
			// never repair it either.
			s.log.Errorf("Skipping unreadable link record %v: %v", fn, err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *FileStore) Update(token string, mutate func(*Record) error) (*Record, error) {
	fn, err := s.path(token)
	if err != nil {
		return nil, err
	}
	lock := s.lock(token)
	lock.Lock()
	defer lock.Unlock()
	rec, err := s.readRecord(fn)
	if err != nil {
		return nil, err
	}
	if err := mutate(rec); err != nil {
		return nil, err
	}
	if err := s.writeAtomic(fn, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *FileStore) Delete(token string) error {
	fn, err := s.path(token)
	if err != nil {
		return err
	}
	lock := s.lock(token)
	lock.Lock()
	defer lock.Unlock()
	if err := os.Remove(fn); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) readRecord(fn string) (*Record, error) {
	raw, err := os.ReadFile(fn)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec := &Record{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("Corrupt link record %v: %w", filepath.Base(fn), err)
	}
	return rec, nil
}

func (s *FileStore) writeAtomic(fn string, rec *Record) error {
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%v.tmp%v", fn, time.Now().UnixNano())
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, fn); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
