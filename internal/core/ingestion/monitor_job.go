package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// MonitorJobConfig は更新監視ジョブの設定
type MonitorJobConfig struct {
	Schedule   string   // cron 形式（例: "0 6 * * *" = 毎日6:00、"@every 6h"）
	Ministries []string // 監視対象の省庁
}

// MonitorJob は Monitor.Check を定期実行するジョブ
// 前回の実行が終わっていない場合、その回は実行しない
type MonitorJob struct {
	config  MonitorJobConfig
	monitor *Monitor
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewMonitorJob は新しい MonitorJob を作成する
func NewMonitorJob(config MonitorJobConfig, monitor *Monitor, logger *slog.Logger) *MonitorJob {
	if logger == nil {
		logger = slog.Default()
	}
	cronLog := cronLogger{logger: logger}

	return &MonitorJob{
		config:  config,
		monitor: monitor,
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		logger: logger,
	}
}

// Start はスケジューラーを起動する
// 各回の実行は ctx を引き継ぐ
func (j *MonitorJob) Start(ctx context.Context) error {
	_, err := j.cron.AddFunc(j.config.Schedule, func() {
		if err := j.Run(ctx); err != nil {
			j.logger.Error("更新監視ジョブの実行に失敗しました", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("cron ジョブの登録に失敗: %w", err)
	}

	j.cron.Start()
	j.logger.Info("更新監視ジョブを開始しました", "schedule", j.config.Schedule, "ministries", len(j.config.Ministries))
	return nil
}

// Stop はスケジューラーを停止し、実行中の回が終わるまで待つ
func (j *MonitorJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("更新監視ジョブを停止しました")
}

// Run は更新監視を1回実行する（手動実行可能）
func (j *MonitorJob) Run(ctx context.Context) error {
	changes, err := j.monitor.Check(ctx, j.config.Ministries)
	if err != nil {
		return err
	}

	changed, failed := 0, 0
	for _, c := range changes {
		if c.Changed {
			changed++
		}
		if c.Err != nil {
			failed++
		}
	}
	j.logger.Info("更新監視が完了しました", "checked", len(changes), "changed", changed, "failed", failed)
	return nil
}

// cronLogger は cron のログを slog へ流す
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
