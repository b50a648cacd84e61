// Package store persists generation strategy snapshots in BadgerDB so a run
// can be inspected or resumed later.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thalesfsp/ho"
)

// FormatVersion is written with every record. Records of another version
// are refused.
const FormatVersion = 1

const keyPrefix = "strategy/"

var (
	// ErrNotFound is returned when no snapshot is stored under a name.
	ErrNotFound = errors.New("snapshot not found")

	// ErrVersionMismatch is returned for records written by an incompatible
	// version.
	ErrVersionMismatch = errors.New("snapshot format version mismatch")

	// ErrInvalidName is returned for empty names or names containing '/'.
	ErrInvalidName = errors.New("invalid snapshot name")
)

// Config configures a Store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is
	// true.
	Path string

	// InMemory keeps everything in memory. Useful for tests.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *zap.Logger
}

// DefaultConfig returns a durable configuration rooted at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns a configuration without disk persistence.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Record is a stored snapshot with its metadata.
type Record struct {
	Version int              `json:"version"`
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	SavedAt time.Time        `json:"saved_at"`
	State   ho.StrategyState `json:"state"`
	Data    ho.Data          `json:"data"`
}

// Store keeps the latest snapshot of every named strategy.
type Store struct {
	db *badger.DB
}

// badgerLogger forwards BadgerDB logs to zap.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Infof(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(strings.TrimSpace(format), args...)
}

// Open opens or creates the database.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options

	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}

		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores state and data under name, replacing any previous snapshot.
// It implements ho.Checkpointer.
func (s *Store) Save(ctx context.Context, name string, state ho.StrategyState, data ho.Data) error {
	if err := validateName(name); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(Record{
		Version: FormatVersion,
		ID:      uuid.NewString(),
		Name:    name,
		SavedAt: time.Now().UTC(),
		State:   state,
		Data:    data,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", name, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(name), value)
	})
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", name, err)
	}

	return nil
}

// Load returns the snapshot stored under name.
func (s *Store) Load(ctx context.Context, name string) (ho.StrategyState, error) {
	rec, err := s.LoadRecord(ctx, name)
	if err != nil {
		return ho.StrategyState{}, err
	}

	return rec.State, nil
}

// LoadRecord returns the snapshot stored under name with its metadata.
func (s *Store) LoadRecord(ctx context.Context, name string) (Record, error) {
	if err := validateName(name); err != nil {
		return Record{}, err
	}

	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	var value []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(name))
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)

		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if err != nil {
		return Record{}, fmt.Errorf("load snapshot %s: %w", name, err)
	}

	var rec Record
	if err := json.Unmarshal(value, &rec); err != nil {
		return Record{}, fmt.Errorf("decode snapshot %s: %w", name, err)
	}

	if rec.Version != FormatVersion {
		return Record{}, fmt.Errorf("%w: %s has version %d, want %d", ErrVersionMismatch, name, rec.Version, FormatVersion)
	}

	return rec, nil
}

// List returns the names of all stored snapshots, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var names []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			names = append(names, strings.TrimPrefix(string(it.Item().KeyCopy(nil)), keyPrefix))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	return names, nil
}

// Delete removes the snapshot stored under name. Deleting a missing name
// is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(name))
	})
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", name, err)
	}

	return nil
}

func key(name string) []byte {
	return []byte(keyPrefix + name)
}

func validateName(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}

var _ ho.Checkpointer = (*Store)(nil)
