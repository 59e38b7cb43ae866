// Package cleanup はノート履歴の自動削除ジョブを提供する。
// 各ノートにつき直近20件を超えた古いバージョンを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// VersionPruner はノート履歴の削除処理を抽象化するインターフェース。
type VersionPruner interface {
	// PruneOldVersions は各ノートで新しい方からkeep件を残して削除し、削除件数を返す。
	PruneOldVersions(ctx context.Context, keep int) (int64, error)
}

// PruneRecorder は削除件数をメトリクスに記録するインターフェース。
type PruneRecorder interface {
	RecordVersionsPruned(count int64)
}

// CleanupJob は保持上限を超過したノート履歴の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	pruner       VersionPruner
	recorder     PruneRecorder
	logger       *slog.Logger
	KeepVersions int // ノートごとに残す履歴数（デフォルト: 20）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持件数は20件。recorderはnil可。
func NewCleanupJob(pruner VersionPruner, recorder PruneRecorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		pruner:       pruner,
		recorder:     recorder,
		logger:       logger,
		KeepVersions: 20,
	}
}

// Run は保持上限を超過したノート履歴を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.pruner.PruneOldVersions(ctx, j.KeepVersions)
	if err != nil {
		j.logger.Error("履歴クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("keep_versions", j.KeepVersions),
		)
		return fmt.Errorf("履歴クリーンアップの実行に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordVersionsPruned(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("履歴クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("keep_versions", j.KeepVersions),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでジョブを繰り返し実行する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("履歴クリーンアップスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("keep_versions", j.KeepVersions),
	)

	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("履歴クリーンアップスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
