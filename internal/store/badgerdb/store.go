package badgerdb

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

// maxConflictRetries bounds how often a transaction is replayed after an
// optimistic conflict before the failure is surfaced as internal.
const maxConflictRetries = 64

// Store is the embedded storage backend. Each proposal and session is
// single-writer through Badger's optimistic transactions: a concurrent
// writer that read the same keys gets ErrConflict and is replayed, so
// guards are always re-evaluated against committed state.
type Store struct {
	db  *badger.DB
	log *slog.Logger
}

// Open opens a Badger database at path, or an in-memory one when path is empty.
func Open(path string, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(newLogger(log))
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return New(db, log), nil
}

// New wraps an already opened database.
func New(db *badger.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// update runs fn in a read-write transaction, replaying it on conflict.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debug("badger transaction conflict, retrying", "attempt", attempt+1)
	}
	return fmt.Errorf("transaction kept conflicting after %d attempts: %w", maxConflictRetries, err)
}

func getValue(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return getValueFromItem(item, out)
}

func getValueFromItem(item *badger.Item, out any) error {
	return item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, out)
	})
}

func setValue(txn *badger.Txn, key []byte, in any) error {
	data, err := cbor.Marshal(in)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// logger adapts slog to badger's logger interface.
type logger struct {
	log *slog.Logger
}

func newLogger(log *slog.Logger) badger.Logger {
	if log == nil {
		return nil
	}
	return logger{log: log.With("component", "badger")}
}

func (l logger) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l logger) Warningf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l logger) Infof(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l logger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
