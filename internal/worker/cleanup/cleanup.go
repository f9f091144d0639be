// Package cleanup は認証イベント（監査ログ）の自動削除ジョブを提供する。
// 保持期間（デフォルト14日）を超過したauth_eventsを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// EventPurger は保持期間を超過したイベントを削除するインターフェース。
// repository.AuthEventRepository を受け付けることができる。
type EventPurger interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は保持期間を超過した認証イベントの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	events        EventPurger
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int // 認証イベントの保持日数（デフォルト: 14）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は14日。
func NewCleanupJob(events EventPurger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		events:        events,
		logger:        logger,
		now:           time.Now,
		RetentionDays: 14,
	}
}

// Run は保持期間を超過した認証イベントを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()
	before := start.AddDate(0, 0, -j.RetentionDays)

	deletedCount, err := j.events.DeleteOlderThan(ctx, before)
	if err != nil {
		j.logger.Error("認証イベントのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("認証イベントのクリーンアップに失敗: %w", err)
	}

	duration := j.now().Sub(start)
	j.logger.Info("認証イベントのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回実行し、以降intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Warn("cleanup run failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil && ctx.Err() == nil {
				j.logger.Warn("cleanup run failed", slog.String("error", err.Error()))
			}
		}
	}
}
