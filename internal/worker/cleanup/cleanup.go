// Package cleanup は保持期間を過ぎた出品を日次で削除するワーカージョブを提供する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/campusmart/internal/metrics"
)

const (
	// DefaultRetentionDays は出品の既定の保持日数。
	DefaultRetentionDays = 90
	// DefaultBatchSize は1回のDELETEで削除する最大件数。
	DefaultBatchSize = 500
)

// deleteExpiredBatchSQL は古い順にbatch件の期限切れ出品を削除する。
const deleteExpiredBatchSQL = `DELETE FROM items WHERE id IN (
	SELECT id FROM items
	WHERE created_at < now() - $1::interval
	ORDER BY created_at
	LIMIT $2
)`

// Executor は*sql.DBや*sql.Txが満たすExecContextだけのインターフェース。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ExpiredRecorder は削除件数を記録する。metrics.MetricsCollectorの部分集合。
type ExpiredRecorder interface {
	RecordListingsExpired(count int)
}

// CleanupJob は保持期間を超過した出品をバッチ単位で削除する。
// 削除対象がなくなるかctxが終了するまでバッチを繰り返す。
type CleanupJob struct {
	db       Executor
	recorder ExpiredRecorder
	logger   *slog.Logger

	RetentionDays int
	BatchSize     int
}

// NewCleanupJob はCleanupJobを生成する。retentionDaysが0以下ならDefaultRetentionDaysを使う。
func NewCleanupJob(db Executor, recorder ExpiredRecorder, logger *slog.Logger, retentionDays int) *CleanupJob {
	if recorder == nil {
		recorder = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &CleanupJob{
		db:            db,
		recorder:      recorder,
		logger:        logger.With(slog.String("job", "listing_cleanup")),
		RetentionDays: retentionDays,
		BatchSize:     DefaultBatchSize,
	}
}

// Run は期限切れの出品を削除し、合計削除件数を返す。削除対象がなければ0件で成功する。
// 途中のバッチで失敗した場合も、それまでに削除した件数を返す。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()
	interval := fmt.Sprintf("%d days", j.RetentionDays)
	batch := j.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	var total int64
	batches := 0
	for {
		n, err := j.deleteBatch(ctx, interval, batch)
		if err != nil {
			j.logger.Error("出品クリーンアップに失敗しました",
				slog.String("error", err.Error()),
				slog.Int("retention_days", j.RetentionDays),
				slog.Int64("deleted_count", total),
			)
			if total > 0 {
				j.recorder.RecordListingsExpired(int(total))
			}
			return total, err
		}
		batches++
		total += n
		if n < int64(batch) || ctx.Err() != nil {
			break
		}
	}

	j.recorder.RecordListingsExpired(int(total))
	j.logger.Info("出品クリーンアップが完了しました",
		slog.Int64("deleted_count", total),
		slog.Int("batches", batches),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return total, nil
}

func (j *CleanupJob) deleteBatch(ctx context.Context, interval string, batch int) (int64, error) {
	result, err := j.db.ExecContext(ctx, deleteExpiredBatchSQL, interval, batch)
	if err != nil {
		return 0, fmt.Errorf("出品クリーンアップの実行に失敗: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return n, nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行し、ctxが終了するまでブロックする。
// エラーはRun内でログ済みのため、次回の実行を待つ。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_, _ = j.Run(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
