package linkdb

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

// SQLStore keeps link records in a sqlite database. Single-record atomicity
// comes from sqlite itself; the striped lock serializes read-modify-write
// cycles on the same token.
type SQLStore struct {
	log   logs.Log
	db    *gorm.DB
	locks [64]sync.Mutex
}

func NewSQLStore(log logs.Log, dbFilename string) (*SQLStore, error) {
	os.MkdirAll(filepath.Dir(dbFilename), 0777)
	db, err := dbh.OpenDB(log, dbh.MakeSqliteConfig(dbFilename), Migrations(log), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open link database %v: %w", dbFilename, err)
	}
	return &SQLStore{
		log: log,
		db:  db,
	}, nil
}

func (s *SQLStore) lock(token string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(token))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

func (s *SQLStore) Create(rec *Record) error {
	lock := s.lock(rec.Token)
	lock.Lock()
	defer lock.Unlock()
	existing := Record{}
	if err := s.db.First(&existing, "token = ?", rec.Token).Error; err == nil {
		return ErrConflict
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.db.Create(rec).Error
}

func (s *SQLStore) Get(token string) (*Record, error) {
	rec := Record{}
	if err := s.db.First(&rec, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *SQLStore) ListAll() ([]*Record, error) {
	recs := []*Record{}
	if err := s.db.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *SQLStore) Update(token string, mutate func(*Record) error) (*Record, error) {
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
	if err := s.db.Save(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLStore) Delete(token string) error {
	return s.db.Delete(&Record{}, "token = ?", token).Error
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
