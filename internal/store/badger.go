package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// maxConflictRetries bounds how often Modify retries after losing an
// optimistic transaction to a concurrent writer.
const maxConflictRetries = 32

// deleteBatchSize keeps DeleteMany transactions under badger's txn limits.
const deleteBatchSize = 256

// Badger is a Backend on top of an embedded Badger database.
type Badger struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ Backend = (*Badger)(nil)

// OpenBadger opens (or creates) a Badger database at path.
func OpenBadger(path string, logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Badger's own logging is too chatty
	opts.SyncWrites = true       // Sync writes to survive crashes
	opts.CompactL0OnClose = true // Faster startup

	return openBadger(opts, path, logger)
}

// OpenBadgerInMemory opens a Badger database that lives only in memory.
func OpenBadgerInMemory(logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	return openBadger(opts, ":memory:", logger)
}

func openBadger(opts badger.Options, path string, logger *slog.Logger) (*Badger, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return &Badger{db: db, logger: logger}, nil
}

// Close gracefully closes the database.
func (b *Badger) Close() error {
	if b.logger != nil {
		b.logger.Info("Closing database connection")
	}
	return b.db.Close()
}

// Insert implements Backend.
func (b *Badger) Insert(ctx context.Context, collection, id string, data []byte, index []IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		key := docKey(collection, id)
		_, err := txn.Get(key)
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check existing key: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}
		return writeIndex(txn, collection, id, index)
	})
	if errors.Is(err, badger.ErrConflict) {
		// Two inserts raced for the same id.
		return ErrAlreadyExists
	}
	return err
}

// Get implements Backend.
func (b *Badger) Get(ctx context.Context, collection, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(collection, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Modify implements Backend. Badger transactions are optimistic, so a
// conflicting concurrent commit makes us re-read and re-apply fn.
func (b *Badger) Modify(ctx context.Context, collection, id string, fn ModifyFunc) error {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := b.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(docKey(collection, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to get existing key: %w", err)
			}
			old, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			data, index, err := fn(old)
			if err != nil {
				return err
			}

			if err := clearIndex(txn, collection, id); err != nil {
				return err
			}
			if err := txn.Set(docKey(collection, id), data); err != nil {
				return fmt.Errorf("failed to set key: %w", err)
			}
			return writeIndex(txn, collection, id, index)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}

		if b.logger != nil {
			b.logger.Debug("retrying conflicting write",
				"collection", collection, "id", id, "attempt", attempt+1)
		}
	}
	return ErrWriteConflict
}

// Delete implements Backend.
func (b *Badger) Delete(ctx context.Context, collection, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var existed bool
	err := b.db.Update(func(txn *badger.Txn) error {
		var err error
		existed, err = deleteDoc(txn, collection, id)
		return err
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

// DeleteMany implements Backend.
func (b *Badger) DeleteMany(ctx context.Context, collection string, ids []string) (int, error) {
	deleted := 0
	for start := 0; start < len(ids); start += deleteBatchSize {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		batch := ids[start:min(start+deleteBatchSize, len(ids))]
		n := 0
		err := b.db.Update(func(txn *badger.Txn) error {
			n = 0
			for _, id := range batch {
				existed, err := deleteDoc(txn, collection, id)
				if err != nil {
					return err
				}
				if existed {
					n++
				}
			}
			return nil
		})
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	return deleted, nil
}

// Scan implements Backend.
func (b *Badger) Scan(ctx context.Context, collection string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		prefix := docScanPrefix(collection)

		err := b.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}

				data, err := it.Item().ValueCopy(nil)
				if err != nil {
					return err
				}
				if !yield(data, nil) {
					return errStopScan
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopScan) {
			yield(nil, err)
		}
	}
}

// Lookup implements Backend.
func (b *Badger) Lookup(ctx context.Context, collection, index, value string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []string
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := indexLookupPrefix(collection, index, value)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, idFromIndexKey(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

var errStopScan = errors.New("scan stopped by consumer")

// writeIndex stores the postings of a document and remembers their keys so
// they can be removed when the document changes.
func writeIndex(txn *badger.Txn, collection, id string, index []IndexEntry) error {
	index = DedupeEntries(index)
	keys := make([]string, 0, len(index))
	for _, e := range index {
		k := indexKey(collection, e.Name, e.Value, id)
		if err := txn.Set(k, nil); err != nil {
			return fmt.Errorf("failed to set index key: %w", err)
		}
		keys = append(keys, string(k))
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to marshal index keys: %w", err)
	}
	if err := txn.Set(reverseKey(collection, id), data); err != nil {
		return fmt.Errorf("failed to set reverse index: %w", err)
	}
	return nil
}

// clearIndex removes every posting previously written for a document.
func clearIndex(txn *badger.Txn, collection, id string) error {
	rkey := reverseKey(collection, id)
	item, err := txn.Get(rkey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get reverse index: %w", err)
	}

	var keys []string
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &keys)
	}); err != nil {
		return fmt.Errorf("failed to unmarshal reverse index: %w", err)
	}

	for _, k := range keys {
		if err := txn.Delete([]byte(k)); err != nil {
			return fmt.Errorf("failed to delete index key: %w", err)
		}
	}
	return txn.Delete(rkey)
}

func deleteDoc(txn *badger.Txn, collection, id string) (bool, error) {
	key := docKey(collection, id)
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get key: %w", err)
	}

	if err := clearIndex(txn, collection, id); err != nil {
		return false, err
	}
	if err := txn.Delete(key); err != nil {
		return false, fmt.Errorf("failed to delete key: %w", err)
	}
	return true, nil
}
