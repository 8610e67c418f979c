package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/korjavin/mealplanner/pkg/logger"
	"github.com/korjavin/mealplanner/pkg/models"
)

// ErrNotFound is returned by Get for a missing key
var ErrNotFound = errors.New("key not found")

// Store represents a BadgerDB storage instance
type Store struct {
	db     *badger.DB
	logger *logger.Logger

	stopGC    chan struct{}
	gcDone    chan struct{}
	closeOnce sync.Once
}

// New creates a new BadgerDB storage instance
func New(dataDir string) (*Store, error) {
	// Ensure the data directory exists
	absPath, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	// Open the Badger database
	opts := badger.DefaultOptions(absPath)
	opts.Logger = nil // Disable Badger's internal logger

	s, err := open(opts)
	if err != nil {
		return nil, err
	}
	s.logger.Info("BadgerDB opened at %s", absPath)
	return s, nil
}

// NewInMemory creates a store that lives only as long as the process
func NewInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger.New("storage"),
		stopGC: make(chan struct{}),
	}, nil
}

// Close stops the GC routine and closes the BadgerDB database. Calls after
// the first are no-ops.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopGC)
		if s.gcDone != nil {
			<-s.gcDone
		}
		err = s.db.Close()
	})
	return err
}

// Set stores a value for a key
func (s *Store) Set(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Get retrieves a value for a key
func (s *Store) Get(key string, value interface{}) error {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("failed to get value: %w", err)
	}

	return json.Unmarshal(data, value)
}

// Delete removes a key from the database
func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func planKey(calendar string) string {
	return fmt.Sprintf("plan:%s", calendar)
}

// planSnapshot is the stored form of a calendar's plan
type planSnapshot struct {
	Plan    models.Plan `json:"plan"`
	SavedAt time.Time   `json:"saved_at"`
}

// SavePlan stores the latest plan of a calendar
func (s *Store) SavePlan(calendar string, plan models.Plan) error {
	return s.Set(planKey(calendar), planSnapshot{Plan: plan, SavedAt: time.Now()})
}

// LoadPlan returns the latest stored plan of a calendar
func (s *Store) LoadPlan(calendar string) (models.Plan, error) {
	var snapshot planSnapshot
	if err := s.Get(planKey(calendar), &snapshot); err != nil {
		return nil, err
	}
	return snapshot.Plan, nil
}

// DeletePlan removes the stored plan of a calendar
func (s *Store) DeletePlan(calendar string) error {
	return s.Delete(planKey(calendar))
}

// RunGC runs garbage collection on the database
func (s *Store) RunGC() error {
	return s.db.RunValueLogGC(0.5)
}

// StartGCRoutine starts a goroutine that periodically runs garbage collection
// until the store is closed. Call it at most once, before Close.
func (s *Store) StartGCRoutine(interval time.Duration) {
	s.gcDone = make(chan struct{})
	go func() {
		defer close(s.gcDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				err := s.RunGC()
				if err != nil {
					// Only log when GC actually did something
					if !errors.Is(err, badger.ErrNoRewrite) {
						s.logger.Error("BadgerDB GC error: %v", err)
					}
				}
			case <-s.stopGC:
				return
			}
		}
	}()
	s.logger.Info("Started BadgerDB GC routine with interval %v", interval)
}
