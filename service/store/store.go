// Package store persists the wallet session record between process restarts.
//
// The auth token and the account address live in a single record under a
// single key, written in one Badger transaction, so a reader can never see a
// token paired with the wrong account.
package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v3"
	"github.com/gagliardetto/solana-go"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("session store closed")

// sessionKey is the only key this store writes.
var sessionKey = []byte("walletlink/session")

// Record is the persisted session: the signer-issued token and the account
// it was issued for.
type Record struct {
	AuthToken string
	Address   solana.PublicKey
}

// recordJSON is the on-disk layout. The address is the raw public key bytes,
// base64 encoded, the same encoding the signer uses on the wire.
type recordJSON struct {
	AuthToken string `json:"auth_token"`
	Address   string `json:"address"`
}

// Options configures a BadgerStore.
type Options struct {
	// Dir is the data directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps everything in memory (tests, ephemeral runs).
	InMemory bool
}

// BadgerStore implements the persisted session store on Badger v3.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the store.
func Open(opts Options, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Dir == "" && !opts.InMemory {
		return nil, fmt.Errorf("store: dir is required")
	}

	bopts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = &badgerLogger{logger: logger}
	// The record is tiny and written rarely; always fsync it.
	bopts.SyncWrites = true

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}

	logger.Info("session store opened", "dir", opts.Dir, "in_memory", opts.InMemory)
	return &BadgerStore{db: db, logger: logger}, nil
}

// Load returns the persisted record, or nil if none exists.
func (s *BadgerStore) Load(ctx context.Context) (*Record, error) {
	if s.db.IsClosed() {
		return nil, ErrClosed
	}

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		// A record we cannot read is treated as absent; the user reconnects.
		s.logger.WarnContext(ctx, "discarding unreadable session record", "error", err)
		return nil, nil
	}
	return rec, nil
}

// Save replaces the persisted record.
func (s *BadgerStore) Save(ctx context.Context, rec Record) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	if rec.AuthToken == "" {
		return fmt.Errorf("store: save: auth token is empty")
	}
	if rec.Address.IsZero() {
		return fmt.Errorf("store: save: address is empty")
	}

	raw, err := json.Marshal(recordJSON{
		AuthToken: rec.AuthToken,
		Address:   base64.StdEncoding.EncodeToString(rec.Address.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("store: encode record: %w", err)
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey, raw)
	}); err != nil {
		return fmt.Errorf("store: save: %w", err)
	}

	s.logger.DebugContext(ctx, "session record saved", "address", rec.Address.String())
	return nil
}

// Clear removes the persisted record. Clearing an empty store is not an error.
func (s *BadgerStore) Clear(ctx context.Context) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey)
	}); err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}

	s.logger.DebugContext(ctx, "session record cleared")
	return nil
}

// Close flushes and closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func decodeRecord(raw []byte) (*Record, error) {
	var rj recordJSON
	if err := json.Unmarshal(raw, &rj); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if rj.AuthToken == "" {
		return nil, fmt.Errorf("decode record: missing auth token")
	}
	keyBytes, err := base64.StdEncoding.DecodeString(rj.Address)
	if err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	if len(keyBytes) != solana.PublicKeyLength {
		return nil, fmt.Errorf("decode address: want %d bytes, got %d", solana.PublicKeyLength, len(keyBytes))
	}
	return &Record{
		AuthToken: rj.AuthToken,
		Address:   solana.PublicKeyFromBytes(keyBytes),
	}, nil
}

// badgerLogger routes Badger's internal logging through slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
