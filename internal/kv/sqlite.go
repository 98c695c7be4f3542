package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog"
)

// SQLiteStore keeps encoded keys in a BLOB primary key. SQLite compares
// BLOBs with memcmp, which is the order the key encoding is built for.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSQLiteStore(db *sql.DB, logger zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "kv").Logger(),
	}
}

func (s *SQLiteStore) Get(ctx context.Context, key Key) ([]byte, error) {
	k, err := key.Encode()
	if err != nil {
		return nil, err
	}

	var value []byte
	err = s.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, k).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key Key, value []byte) error {
	k, err := key.Encode()
	if err != nil {
		return err
	}
	if err := upsert(ctx, s.db, k, value); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	k, err := key.Encode()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, k); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Scan(ctx context.Context, prefix Key, limit int) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		start, end, err := prefixRange(prefix)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		if limit <= 0 {
			// SQLite treats a negative LIMIT as unbounded
			limit = -1
		}

		var rows *sql.Rows
		if len(start) == 0 {
			rows, err = s.db.QueryContext(ctx,
				`SELECT k, v FROM kv WHERE k < ? ORDER BY k LIMIT ?`, end, limit)
		} else {
			rows, err = s.db.QueryContext(ctx,
				`SELECT k, v FROM kv WHERE k >= ? AND k < ? ORDER BY k LIMIT ?`, start, end, limit)
		}
		if err != nil {
			yield(Entry{}, fmt.Errorf("failed to scan prefix %s: %w", prefix, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var raw, value []byte
			if err := rows.Scan(&raw, &value); err != nil {
				yield(Entry{}, fmt.Errorf("failed to read scan row: %w", err))
				return
			}
			key, err := DecodeKey(raw)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(Entry{Key: key, Value: value}, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Entry{}, fmt.Errorf("failed to scan prefix %s: %w", prefix, err))
		}
	}
}

func (s *SQLiteStore) Commit(ctx context.Context, op *Atomic) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, key := range op.absent {
		k, err := key.Encode()
		if err != nil {
			return err
		}
		var one int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM kv WHERE k = ?`, k).Scan(&one)
		if err == nil {
			s.logger.Debug().Stringer("key", key).Msg("atomic check failed")
			return &CheckError{Key: key}
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check key %s: %w", key, err)
		}
	}

	for _, m := range op.mutations {
		k, err := m.key.Encode()
		if err != nil {
			return err
		}
		if m.delete {
			if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, k); err != nil {
				return fmt.Errorf("failed to delete key %s: %w", m.key, err)
			}
			continue
		}
		if err := upsert(ctx, tx, k, m.value); err != nil {
			return fmt.Errorf("failed to set key %s: %w", m.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().
		Int("checks", len(op.absent)).
		Int("mutations", len(op.mutations)).
		Msg("atomic commit applied")
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, k, value []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO kv (k, v, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (k) DO UPDATE SET v = excluded.v, updated_at = excluded.updated_at`,
		k, value, time.Now().UnixMilli())
	return err
}
