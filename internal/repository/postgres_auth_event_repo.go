package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/agriguard/internal/model"
)

// PostgresAuthEventRepo はPostgreSQLを使用した認証イベントリポジトリ。
type PostgresAuthEventRepo struct {
	db *sql.DB
}

// NewPostgresAuthEventRepo はPostgresAuthEventRepoを生成する。
func NewPostgresAuthEventRepo(db *sql.DB) *PostgresAuthEventRepo {
	return &PostgresAuthEventRepo{db: db}
}

// Create は認証イベントを記録する。IDと記録日時が未設定の場合は補完する。
func (r *PostgresAuthEventRepo) Create(ctx context.Context, event *model.AuthEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_events (id, client_id, method, outcome, error_code, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.ClientID, string(event.Method), string(event.Outcome), event.ErrorCode, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auth event: %w", err)
	}
	return nil
}

// DeleteOlderThan は指定日時より古い認証イベントを削除する。
func (r *PostgresAuthEventRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM auth_events WHERE created_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete auth events: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected, nil
}

// compile-time interface check
var _ AuthEventRepository = (*PostgresAuthEventRepo)(nil)
