// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/agriguard/internal/model"
)

// SessionSlotStore はクライアントごとのセッションスロットの永続化インターフェース。
// 値はシリアライズ済みのバイト列をそのまま保持し、内容の解釈は呼び出し側が行う。
type SessionSlotStore interface {
	// Get は指定クライアントのスロットの値を取得する。存在しない場合はnilを返す。
	Get(ctx context.Context, clientID string) ([]byte, error)

	// Set はスロットの値を上書きする。最後の書き込みが優先される。
	Set(ctx context.Context, clientID string, data []byte) error

	// Clear はスロットを削除する。存在しない場合もエラーにしない。
	Clear(ctx context.Context, clientID string) error
}

// AuthEventRepository は認証イベント（監査ログ）の永続化インターフェース。
type AuthEventRepository interface {
	// Create は認証イベントを記録する。
	Create(ctx context.Context, event *model.AuthEvent) error

	// DeleteOlderThan は指定日時より古いイベントを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
