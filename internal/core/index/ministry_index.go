package index

import (
	"sort"
	"sync"
)

// MinistryIndex は少なくとも1件のレコードが存在する省庁名の集合です
//
// ストア生成時にリポジトリから読み込み、書き込み成功のたびに更新します。
// 他プロセスによる削除は Reload まで反映されません。
type MinistryIndex struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// NewMinistryIndex は与えられた省庁名で初期化した MinistryIndex を返します
func NewMinistryIndex(names ...string) *MinistryIndex {
	idx := &MinistryIndex{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		if name != "" {
			idx.names[name] = struct{}{}
		}
	}
	return idx
}

func (m *MinistryIndex) Contains(ministry string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.names[ministry]
	return ok
}

func (m *MinistryIndex) Add(ministry string) {
	if ministry == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[ministry] = struct{}{}
}

func (m *MinistryIndex) Remove(ministry string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.names, ministry)
}

// Replace は集合全体を置き換えます
func (m *MinistryIndex) Replace(names []string) {
	next := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name != "" {
			next[name] = struct{}{}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = next
}

func (m *MinistryIndex) Clear() {
	m.Replace(nil)
}

func (m *MinistryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.names)
}

// Names はソート済みのスナップショットを返します
func (m *MinistryIndex) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.names))
	for name := range m.names {
		names = append(names, name)
	}
	m.mu.RUnlock()

	sort.Strings(names)
	return names
}
