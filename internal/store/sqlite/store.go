// Package sqlite implements store.Backend on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/ilbumi/satin/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// deleteBatchSize keeps IN lists under SQLite's variable limit.
const deleteBatchSize = 500

// Store is a store.Backend backed by SQLite.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

var _ store.Backend = (*Store)(nil)

// Open creates a new SQLite store at the given path (":memory:" for a
// private in-memory database). It configures WAL mode, sets pragmas, and
// runs schema migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serializes writers, so transactions never hit
	// SQLITE_BUSY, and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	if logger != nil {
		logger.Info("SQLite database opened successfully", "path", path)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// Insert implements store.Backend.
func (s *Store) Insert(ctx context.Context, collection, id string, data []byte, index []store.IndexEntry) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := sq.Insert("documents").
			Columns("collection", "id", "body").
			Values(collection, id, string(data)).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return store.ErrAlreadyExists
			}
			return fmt.Errorf("insert document: %w", err)
		}
		return insertIndex(ctx, tx, collection, id, index)
	})
}

// Get implements store.Backend.
func (s *Store) Get(ctx context.Context, collection, id string) ([]byte, error) {
	query, args, err := sq.Select("body").
		From("documents").
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var body string
	if err := s.db.GetContext(ctx, &body, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return []byte(body), nil
}

// Modify implements store.Backend.
func (s *Store) Modify(ctx context.Context, collection, id string, fn store.ModifyFunc) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := sq.Select("body").
			From("documents").
			Where(sq.Eq{"collection": collection, "id": id}).
			ToSql()
		if err != nil {
			return err
		}

		var body string
		if err := tx.GetContext(ctx, &body, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return fmt.Errorf("get document: %w", err)
		}

		data, index, err := fn([]byte(body))
		if err != nil {
			return err
		}

		query, args, err = sq.Update("documents").
			Set("body", string(data)).
			Where(sq.Eq{"collection": collection, "id": id}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update document: %w", err)
		}

		if err := deleteIndex(ctx, tx, collection, []string{id}); err != nil {
			return err
		}
		return insertIndex(ctx, tx, collection, id, index)
	})
}

// Delete implements store.Backend.
func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	n, err := s.DeleteMany(ctx, collection, []string{id})
	return n > 0, err
}

// DeleteMany implements store.Backend.
func (s *Store) DeleteMany(ctx context.Context, collection string, ids []string) (int, error) {
	deleted := 0
	for start := 0; start < len(ids); start += deleteBatchSize {
		batch := ids[start:min(start+deleteBatchSize, len(ids))]

		err := s.inTx(ctx, func(tx *sqlx.Tx) error {
			if err := deleteIndex(ctx, tx, collection, batch); err != nil {
				return err
			}

			query, args, err := sq.Delete("documents").
				Where(sq.Eq{"collection": collection, "id": batch}).
				ToSql()
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("delete documents: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			deleted += int(n)
			return nil
		})
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// Scan implements store.Backend. Rows are read up front so that consumers
// may issue further queries while iterating.
func (s *Store) Scan(ctx context.Context, collection string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		query, args, err := sq.Select("body").
			From("documents").
			Where(sq.Eq{"collection": collection}).
			OrderBy("id").
			ToSql()
		if err != nil {
			yield(nil, err)
			return
		}

		var bodies []string
		if err := s.db.SelectContext(ctx, &bodies, query, args...); err != nil {
			yield(nil, fmt.Errorf("scan documents: %w", err))
			return
		}

		for _, body := range bodies {
			if !yield([]byte(body), nil) {
				return
			}
		}
	}
}

// Lookup implements store.Backend.
func (s *Store) Lookup(ctx context.Context, collection, index, value string) ([]string, error) {
	query, args, err := sq.Select("id").
		From("document_index").
		Where(sq.Eq{"collection": collection, "name": index, "value": value}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("lookup index: %w", err)
	}
	return ids, nil
}

// Collections returns the document count per collection.
func (s *Store) Collections(ctx context.Context) (map[string]int, error) {
	query, args, err := sq.Select("collection", "COUNT(*) AS count").
		From("documents").
		GroupBy("collection").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Collection string `db:"collection"`
		Count      int    `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Collection] = r.Count
	}
	return out, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertIndex(ctx context.Context, tx *sqlx.Tx, collection, id string, index []store.IndexEntry) error {
	index = store.DedupeEntries(index)
	if len(index) == 0 {
		return nil
	}

	insert := sq.Insert("document_index").
		Options("OR IGNORE").
		Columns("collection", "name", "value", "id")
	for _, e := range index {
		insert = insert.Values(collection, e.Name, e.Value, id)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert index: %w", err)
	}
	return nil
}

func deleteIndex(ctx context.Context, tx *sqlx.Tx, collection string, ids []string) error {
	query, args, err := sq.Delete("document_index").
		Where(sq.Eq{"collection": collection, "id": ids}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
