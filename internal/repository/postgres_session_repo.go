package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションスロットストア。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Get は指定クライアントのスロットの値を取得する。存在しない場合はnilを返す。
func (r *PostgresSessionRepo) Get(ctx context.Context, clientID string) ([]byte, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM session_slots WHERE client_id = $1`,
		clientID,
	).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session slot: %w", err)
	}

	return []byte(data), nil
}

// Set はスロットの値をUPSERTで上書きする。
func (r *PostgresSessionRepo) Set(ctx context.Context, clientID string, data []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_slots (client_id, data, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (client_id) DO UPDATE
		 SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		clientID, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to set session slot: %w", err)
	}
	return nil
}

// Clear はスロットを削除する。
func (r *PostgresSessionRepo) Clear(ctx context.Context, clientID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM session_slots WHERE client_id = $1`,
		clientID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear session slot: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionSlotStore = (*PostgresSessionRepo)(nil)
