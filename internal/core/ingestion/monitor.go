package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// ErrIncompleteIngestion は一部の原本の取り込みに失敗したことを表す
var ErrIncompleteIngestion = errors.New("some sources failed to ingest")

// Digest は省庁の原本URL一覧を要約したもの
type Digest struct {
	Hash      string    `json:"hash"`
	Count     int       `json:"pdf_count"`
	CheckedAt time.Time `json:"last_checked"`
}

// MonitorState は省庁ごとの最新ダイジェストの保存先
type MonitorState interface {
	Load(ctx context.Context) (map[string]Digest, error)
	Save(ctx context.Context, digests map[string]Digest) error
}

// Change は1省庁分の監視結果
type Change struct {
	Ministry string
	Previous Digest
	Current  Digest
	Changed  bool
	Result   *Result // 変更があり取り込みを行った場合のみ
	Err      error
}

// Monitor は原本一覧の変化を検出し、変化した省庁だけを取り込み直す
type Monitor struct {
	coordinator *Coordinator
	lister      SourceLister
	state       MonitorState
	logger      *slog.Logger
	now         func() time.Time
}

// MonitorOption は Monitor のオプション設定
type MonitorOption func(*Monitor)

// WithMonitorLogger は Monitor にロガーを設定する
func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithClock は現在時刻の取得方法を差し替える
func WithClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) {
		m.now = now
	}
}

// NewMonitor は新しい Monitor を作成する
func NewMonitor(coordinator *Coordinator, lister SourceLister, state MonitorState, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		coordinator: coordinator,
		lister:      lister,
		state:       state,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// ComputeDigest は原本URLの重複を除いて整列し、改行で連結したものの SHA-256 を返す
func ComputeDigest(sources []SourceDocument) (string, int) {
	urls := make([]string, 0, len(sources))
	for _, s := range sources {
		if s.URL != "" {
			urls = append(urls, s.URL)
		}
	}
	slices.Sort(urls)
	urls = slices.Compact(urls)

	sum := sha256.Sum256([]byte(strings.Join(urls, "\n")))
	return hex.EncodeToString(sum[:]), len(urls)
}

// Check は各省庁の原本一覧を取得し、前回から変化した省庁を取り込む
// 一覧取得や取り込みに失敗した省庁は状態を更新せず、次回に再試行される
// 返すエラーは状態の読み書きの失敗のみ
func (m *Monitor) Check(ctx context.Context, ministries []string) ([]Change, error) {
	digests, err := m.state.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load monitor state: %w", err)
	}
	if digests == nil {
		digests = map[string]Digest{}
	}

	changes := make([]Change, 0, len(ministries))
	for _, ministry := range ministries {
		if err := ctx.Err(); err != nil {
			break
		}
		change := m.checkOne(ctx, ministry, digests[ministry])
		if change.Err == nil {
			digests[ministry] = change.Current
		}
		changes = append(changes, change)
	}

	if err := m.state.Save(ctx, digests); err != nil {
		return changes, fmt.Errorf("failed to save monitor state: %w", err)
	}
	return changes, nil
}

func (m *Monitor) checkOne(ctx context.Context, ministry string, previous Digest) Change {
	logger := m.logger.With("ministry", ministry)
	change := Change{Ministry: ministry, Previous: previous}

	sources, err := m.lister.ListSources(ctx, ministry)
	if err != nil {
		logger.Error("failed to list sources", "error", err)
		change.Err = err
		return change
	}

	hash, count := ComputeDigest(sources)
	change.Current = Digest{Hash: hash, Count: count, CheckedAt: m.now()}
	if hash == previous.Hash {
		logger.Info("no change detected, skipping ingestion", "count", count)
		return change
	}

	change.Changed = true
	logger.Info("change detected, triggering ingestion", "previous", previous.Count, "count", count)

	result, err := m.coordinator.IngestSources(ctx, ministry, sources)
	change.Result = result
	if err != nil {
		logger.Error("ingestion failed", "error", err)
		change.Err = err
		return change
	}
	// 失敗した原本を次回取り込み直すため、ダイジェストは更新しない
	if result != nil && result.Failed > 0 {
		logger.Warn("ingestion incomplete, keeping previous digest", "failed", result.Failed, "sources", result.Sources)
		change.Err = fmt.Errorf("%w: %d of %d", ErrIncompleteIngestion, result.Failed, result.Sources)
	}
	return change
}
