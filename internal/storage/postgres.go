package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore реализует Store поверх одной таблицы kv_entries с
// версионированными строками. Transact — цикл оптимистичной блокировки:
// UPDATE ... WHERE version = прочитанная версия; ноль затронутых строк
// означает конкурентную запись и повтор.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type kvRow struct {
	Value   []byte `db:"value"`
	Version int64  `db:"version"`
}

func (s *PostgresStore) Read(ctx context.Context, key string, dest interface{}) (bool, error) {
	var row kvRow
	err := s.db.GetContext(ctx, &row,
		`SELECT value, version FROM kv_entries WHERE key = $1`, key)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return true, json.Unmarshal(row.Value, dest)
}

func (s *PostgresStore) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO kv_entries (key, value)
        VALUES ($1, $2)
        ON CONFLICT (key) DO UPDATE
        SET value = EXCLUDED.value,
            version = kv_entries.version + 1,
            updated_at = CURRENT_TIMESTAMP`,
		key, string(data))
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT key, value FROM kv_entries WHERE key LIKE $1 || '%'`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list prefix %s: %w", prefix, err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list prefix %s: %w", prefix, err)
	}
	return result, nil
}

func (s *PostgresStore) Transact(ctx context.Context, key string, fn TransactFunc) ([]byte, error) {
	for i := 0; i < maxTxAttempts; i++ {
		var row kvRow
		exists := true
		err := s.db.GetContext(ctx, &row,
			`SELECT value, version FROM kv_entries WHERE key = $1`, key)
		if err == sql.ErrNoRows {
			exists = false
		} else if err != nil {
			return nil, fmt.Errorf("transaction on key %s failed: %w", key, err)
		}

		var current []byte
		if exists {
			current = row.Value
		}

		next, err := fn(current)
		if err != nil {
			return nil, err
		}

		var result sql.Result
		if exists {
			result, err = s.db.ExecContext(ctx, `
                UPDATE kv_entries
                SET value = $2,
                    version = version + 1,
                    updated_at = CURRENT_TIMESTAMP
                WHERE key = $1 AND version = $3`,
				key, string(next), row.Version)
		} else {
			result, err = s.db.ExecContext(ctx, `
                INSERT INTO kv_entries (key, value)
                VALUES ($1, $2)
                ON CONFLICT (key) DO NOTHING`,
				key, string(next))
		}
		if err != nil {
			return nil, fmt.Errorf("transaction on key %s failed: %w", key, err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 1 {
			return next, nil
		}
		// Версия ушла или ключ создан параллельно, пробуем снова
	}

	return nil, fmt.Errorf("transaction on key %s: %w", key, ErrTxRetryLimit)
}
