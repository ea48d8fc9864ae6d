package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/jinford/sansad-rag/internal/core/ingestion"
)

var (
	// ErrNotFound は指定したパスにファイルが存在しない場合のエラー
	ErrNotFound = errors.New("stored file not found")

	// ErrInvalidPath はルートディレクトリの外を指すパスのエラー
	ErrInvalidPath = errors.New("invalid storage path")
)

// Store はローカルディレクトリを原本の保存先として扱う
// パスは常にスラッシュ区切りの相対パスで、ルートの外へは出られない
type Store struct {
	root string
}

// NewStore は新しい Store を作成する。ルートディレクトリが無ければ作成する
func NewStore(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root はルートディレクトリの絶対パスを返す
func (s *Store) Root() string {
	return s.root
}

// Upload はデータを書き込み、file:// URL を返す。既存のファイルは上書きする
func (s *Store) Upload(ctx context.Context, data []byte, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := s.resolve(p)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", p, err)
	}

	if err := writeFileAtomic(full, data); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", p, err)
	}

	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(full)}).String(), nil
}

// Download はファイルの内容を返す
func (s *Store) Download(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// List は prefix で始まる PDF ファイルのパスをソートして返す
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// prefix のディレクトリ部分から走査する
	dir := s.root
	if d := path.Dir(prefix); d != "." && d != "/" {
		full, err := s.resolve(d)
		if err != nil {
			return nil, err
		}
		dir = full
	}

	var paths []string
	err := filepath.WalkDir(dir, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(full), ".pdf") {
			return nil
		}
		rel, err := filepath.Rel(s.root, full)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// Exists はファイルが存在するかを返す
func (s *Store) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := s.resolve(p)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	return !info.IsDir(), nil
}

// Delete はファイルを削除する。存在しないファイルの削除も成功として扱う
func (s *Store) Delete(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := s.resolve(p)
	if err != nil {
		return false, err
	}

	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to delete %s: %w", p, err)
	}
	return true, nil
}

func (s *Store) resolve(p string) (string, error) {
	normalized := strings.ReplaceAll(p, "\\", "/")
	if slices.Contains(strings.Split(normalized, "/"), "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	cleaned := path.Clean("/" + normalized)
	if cleaned == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	full := filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/")))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return full, nil
}

// インターフェース実装の確認
var _ ingestion.BlobStore = (*Store)(nil)

// writeFileAtomic は一時ファイルに書いてから rename し、途中まで書かれたファイルを残さない
func writeFileAtomic(full string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), full)
}
