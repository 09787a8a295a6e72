package linkdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cyclopcam/logs"
)

const pebbleKeyPrefix = "link/"

// PebbleStore keeps link records in an embedded Pebble database. This backend
// is for installs with tens of thousands of links, where a directory of JSON
// files starts to feel slow. Pebble's WAL gives us the atomic-replace
// guarantee; the striped lock serializes same-token read-modify-write.
type PebbleStore struct {
	log   logs.Log
	db    *pebble.DB
	locks [64]sync.Mutex
}

func NewPebbleStore(log logs.Log, path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("Failed to open link database %v: %w", path, err)
	}
	return &PebbleStore{
		log: log,
		db:  db,
	}, nil
}

func (s *PebbleStore) lock(token string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(token))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

func pebbleKey(token string) []byte {
	return []byte(pebbleKeyPrefix + token)
}

func (s *PebbleStore) Create(rec *Record) error {
	lock := s.lock(rec.Token)
	lock.Lock()
	defer lock.Unlock()
	_, closer, err := s.db.Get(pebbleKey(rec.Token))
	if err == nil {
		closer.Close()
		return ErrConflict
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return err
	}
	return s.write(rec)
}

func (s *PebbleStore) Get(token string) (*Record, error) {
	raw, closer, err := s.db.Get(pebbleKey(token))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	rec := &Record{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("Corrupt link record %v: %w", token, err)
	}
	return rec, nil
}

func (s *PebbleStore) ListAll() ([]*Record, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(pebbleKeyPrefix),
		UpperBound: []byte(pebbleKeyPrefix + "\xff"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	recs := []*Record{}
	for iter.First(); iter.Valid(); iter.Next() {
		rec := &Record{}
		if err := json.Unmarshal(iter.Value(), rec); err != nil {
			s.log.Errorf("Skipping unreadable link record %v: %v", string(iter.Key()), err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, iter.Error()
}

func (s *PebbleStore) Update(token string, mutate func(*Record) error) (*Record, error) {
	lock := s.lock(token)
	lock.Lock()
	defer lock.Unlock()
	rec, err := s.Get(token)
	if err != nil {
		return nil, err
	}
	if err := mutate(rec); err != nil {
		return nil, err
	}
	if err := s.write(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PebbleStore) Delete(token string) error {
	// Deleting an absent key is a no-op in pebble, which is exactly the
	// idempotency we promise.
	return s.db.Delete(pebbleKey(token), pebble.Sync)
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func (s *PebbleStore) write(rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Set(pebbleKey(rec.Token), raw, pebble.Sync)
}
