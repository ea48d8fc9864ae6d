package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed ministries.yaml
var defaultCatalog []byte

// ErrInvalidCatalog は省庁一覧の内容が不正な場合のエラー
var ErrInvalidCatalog = errors.New("invalid ministry catalog")

// Ministry は省庁一覧の1件
// Code が0の省庁は sansad.in からの取り込み対象にならない
type Ministry struct {
	Name string `yaml:"name"`
	Code int    `yaml:"code,omitempty"`
}

// Catalog は省庁名とsansad.inの省庁コードの対応表
type Catalog struct {
	ministries []Ministry
	byName     map[string]Ministry
	byCode     map[int]Ministry
}

type catalogFile struct {
	Ministries []Ministry `yaml:"ministries"`
}

// DefaultCatalog は組み込みの省庁一覧を返す
func DefaultCatalog() *Catalog {
	catalog, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded ministry catalog is invalid: %v", err))
	}
	return catalog
}

// LoadCatalog は path の YAML から省庁一覧を読み込む。path が空の場合は組み込みの一覧を返す
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ministry catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog は YAML を解析し、名前とコードの重複を検証する
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	c := &Catalog{
		byName: make(map[string]Ministry, len(file.Ministries)),
		byCode: make(map[int]Ministry),
	}
	for i, m := range file.Ministries {
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", ErrInvalidCatalog, i)
		}
		if _, dup := c.byName[m.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate ministry %q", ErrInvalidCatalog, m.Name)
		}
		if m.Code != 0 {
			if other, dup := c.byCode[m.Code]; dup {
				return nil, fmt.Errorf("%w: code %d used by %q and %q", ErrInvalidCatalog, m.Code, other.Name, m.Name)
			}
			c.byCode[m.Code] = m
		}
		c.byName[m.Name] = m
		c.ministries = append(c.ministries, m)
	}
	return c, nil
}

// Ministries は一覧の順序どおりに全省庁を返す
func (c *Catalog) Ministries() []Ministry {
	return append([]Ministry(nil), c.ministries...)
}

// WithCodes は sansad.in のコードを持つ省庁だけを返す
func (c *Catalog) WithCodes() []Ministry {
	var out []Ministry
	for _, m := range c.ministries {
		if m.Code != 0 {
			out = append(out, m)
		}
	}
	return out
}

// CodeOf は省庁名に対応するコードを返す
func (c *Catalog) CodeOf(name string) (int, bool) {
	m, ok := c.byName[strings.TrimSpace(name)]
	if !ok || m.Code == 0 {
		return 0, false
	}
	return m.Code, true
}

// NameOf はコードに対応する省庁名を返す
func (c *Catalog) NameOf(code int) (string, bool) {
	m, ok := c.byCode[code]
	return m.Name, ok
}

// Contains は省庁名が一覧に含まれるかを返す
func (c *Catalog) Contains(name string) bool {
	_, ok := c.byName[strings.TrimSpace(name)]
	return ok
}
