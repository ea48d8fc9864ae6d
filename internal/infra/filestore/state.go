package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jinford/sansad-rag/internal/core/ingestion"
)

// StateFile は更新監視の状態を JSON ファイルに保存する
type StateFile struct {
	path string
}

var _ ingestion.MonitorState = (*StateFile)(nil)

// NewStateFile は新しい StateFile を作成する
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Load は保存済みの状態を読み込む。ファイルが無い場合は空の状態を返す
func (f *StateFile) Load(ctx context.Context) (map[string]ingestion.Digest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]ingestion.Digest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state %s: %w", f.path, err)
	}

	digests := map[string]ingestion.Digest{}
	if err := json.Unmarshal(data, &digests); err != nil {
		return nil, fmt.Errorf("failed to parse state %s: %w", f.path, err)
	}
	return digests, nil
}

// Save は状態を書き込む
func (f *StateFile) Save(ctx context.Context, digests map[string]ingestion.Digest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(digests, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for state: %w", err)
	}
	if err := writeFileAtomic(f.path, data); err != nil {
		return fmt.Errorf("failed to write state %s: %w", f.path, err)
	}
	return nil
}
