package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"github.com/gmsas95/notakopi/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	ocrKeyPrefix = "ocr:"
	kvKeyPrefix  = "kv:"
)

// Store provides unified access to SQLite and BadgerDB
type Store struct {
	db       *gorm.DB
	badger   *badger.DB
	cacheTTL time.Duration
}

// New creates a new Store instance
func New(cfg *config.Config) (*Store, error) {
	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(cfg.Storage.DataDir, "notakopi.db")
	}

	// Open SQLite with optimizations
	sqliteDB, err := sql.Open("sqlite", sqlitePath+"?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-64000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqliteDB.SetMaxOpenConns(10)
	sqliteDB.SetMaxIdleConns(5)
	sqliteDB.SetConnMaxLifetime(time.Hour)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqliteDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		sqliteDB.Close()
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	badgerPath := cfg.Storage.BadgerPath
	if badgerPath == "" {
		badgerPath = filepath.Join(cfg.Storage.DataDir, "badger")
	}

	badgerOpts := badger.DefaultOptions(badgerPath).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithValueLogFileSize(16 << 20).
		WithMemTableSize(16 << 20)

	badgerDB, err := badger.Open(badgerOpts)
	if err != nil {
		sqliteDB.Close()
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	s, err := Open(db, badgerDB, cfg.Storage.OCRCacheTTL)
	if err != nil {
		sqliteDB.Close()
		badgerDB.Close()
		return nil, err
	}
	return s, nil
}

// Open wraps already opened databases and migrates the store's own tables.
func Open(db *gorm.DB, kv *badger.DB, cacheTTL time.Duration) (*Store, error) {
	if err := db.AutoMigrate(&JobRun{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &Store{db: db, badger: kv, cacheTTL: cacheTTL}, nil
}

// Close closes all database connections
func (s *Store) Close() error {
	var errs []error
	if sqlDB, err := s.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	errs = append(errs, s.badger.Close())
	return errors.Join(errs...)
}

// DB returns the GORM database instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Badger returns the BadgerDB instance
func (s *Store) Badger() *badger.DB {
	return s.badger
}

// ==================== Job Run Methods ====================

// StartJobRun records the start of a scheduled job
func (s *Store) StartJobRun(name, schedule string) (*JobRun, error) {
	run := &JobRun{Name: name, Schedule: schedule}
	if err := s.db.Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// FinishJobRun stores the outcome of a job run
func (s *Store) FinishJobRun(run *JobRun, processed, failed int, runErr error) error {
	now := time.Now()
	run.FinishedAt = &now
	run.Processed = processed
	run.Failed = failed
	run.Status = JobStatusCompleted
	if runErr != nil {
		run.Status = JobStatusFailed
		run.Error = runErr.Error()
	}
	return s.db.Save(run).Error
}

// ListJobRuns returns the most recent runs, optionally for one job
func (s *Store) ListJobRuns(name string, limit int) ([]JobRun, error) {
	var runs []JobRun
	q := s.db.Order("started_at DESC")
	if name != "" {
		q = q.Where("name = ?", name)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&runs).Error
	return runs, err
}

// ==================== OCR Cache Methods (BadgerDB) ====================

// GetOCRText returns cached OCR output for a content hash
func (s *Store) GetOCRText(hash string) (string, bool) {
	val, err := s.get(ocrKeyPrefix + hash)
	if err != nil {
		return "", false
	}
	return string(val), true
}

// PutOCRText caches OCR output for a content hash
func (s *Store) PutOCRText(hash, text string) error {
	return s.badger.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(ocrKeyPrefix+hash), []byte(text))
		if s.cacheTTL > 0 {
			e = e.WithTTL(s.cacheTTL)
		}
		return txn.SetEntry(e)
	})
}

// ==================== KV Methods (BadgerDB) ====================

// SetKV stores a key-value pair
func (s *Store) SetKV(key string, value []byte) error {
	return s.badger.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(kvKeyPrefix+key), value)
	})
}

// GetKV retrieves a value by key. Missing keys return badger.ErrKeyNotFound.
func (s *Store) GetKV(key string) ([]byte, error) {
	return s.get(kvKeyPrefix + key)
}

func (s *Store) get(key string) ([]byte, error) {
	var val []byte
	err := s.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}
