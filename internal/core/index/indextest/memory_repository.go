package indextest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/samber/mo"

	"github.com/jinford/sansad-rag/internal/core/index"
)

// MemoryRepository はテスト用のインメモリ index.Repository です
// Transact は複製に対して fn を実行し、成功時のみ反映します
type MemoryRepository struct {
	mu   sync.Mutex
	docs map[string]index.Record

	// FailTransacts は先頭から指定回数の Transact を TransactErr で失敗させます
	FailTransacts int
	TransactErr   error
	// FailUpsertIDs に含まれる ID の upsert は失敗します
	FailUpsertIDs map[string]error

	Transacts int
	Upserts   int

	now func() time.Time
}

// NewMemoryRepository は空のリポジトリを返します
func NewMemoryRepository(records ...index.Record) *MemoryRepository {
	r := &MemoryRepository{
		docs:          make(map[string]index.Record),
		FailUpsertIDs: make(map[string]error),
		now:           time.Now,
	}
	for _, rec := range records {
		r.docs[rec.ID] = rec
	}
	return r
}

// Len は保存されているレコード数を返します
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

// Record は ID でレコードを返します
func (r *MemoryRepository) Record(id string) (index.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.docs[id]
	return rec, ok
}

func (r *MemoryRepository) Transact(ctx context.Context, fn func(q index.Queries) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Transacts++
	if r.FailTransacts > 0 {
		r.FailTransacts--
		if r.TransactErr != nil {
			return r.TransactErr
		}
		return errors.New("transaction failed")
	}

	staged := make(map[string]index.Record, len(r.docs))
	for id, rec := range r.docs {
		staged[id] = rec
	}

	tx := &memoryTx{repo: r, docs: staged}
	if err := fn(tx); err != nil {
		return err
	}

	r.docs = staged
	return nil
}

type memoryTx struct {
	repo *MemoryRepository
	docs map[string]index.Record
}

func (t *memoryTx) UpsertDocument(ctx context.Context, record index.Record) error {
	if err, ok := t.repo.FailUpsertIDs[record.ID]; ok {
		return err
	}
	t.repo.Upserts++

	now := t.repo.now()
	if existing, ok := t.docs[record.ID]; ok {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	t.docs[record.ID] = record
	return nil
}

func (t *memoryTx) SearchByMinistry(ctx context.Context, embedding []float32, ministry string, limit int) ([]index.SearchResult, error) {
	results := make([]index.SearchResult, 0, len(t.docs))
	for _, rec := range t.sorted() {
		if rec.Ministry != ministry {
			continue
		}
		distance, err := l2(embedding, rec.Embedding)
		if err != nil {
			return nil, err
		}
		results = append(results, index.SearchResult{
			ID:       rec.ID,
			Text:     rec.Text,
			Ministry: rec.Ministry,
			Metadata: rec.Metadata,
			Distance: distance,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (t *memoryTx) CountByMinistry(ctx context.Context, ministry string) (int64, error) {
	var n int64
	for _, rec := range t.docs {
		if rec.Ministry == ministry {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) DeleteByMinistry(ctx context.Context, ministry string) (int64, error) {
	var n int64
	for id, rec := range t.docs {
		if rec.Ministry == ministry {
			delete(t.docs, id)
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) DeleteAll(ctx context.Context) (int64, error) {
	n := int64(len(t.docs))
	for id := range t.docs {
		delete(t.docs, id)
	}
	return n, nil
}

func (t *memoryTx) ListMinistries(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var names []string
	for _, rec := range t.sorted() {
		if _, ok := seen[rec.Ministry]; ok || rec.Ministry == "" {
			continue
		}
		seen[rec.Ministry] = struct{}{}
		names = append(names, rec.Ministry)
	}
	return names, nil
}

func (t *memoryTx) SourceExists(ctx context.Context, source string) (bool, error) {
	for _, rec := range t.docs {
		if rec.Metadata.Source == source {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) GetDocument(ctx context.Context, id string) (mo.Option[index.Record], error) {
	if rec, ok := t.docs[id]; ok {
		return mo.Some(rec), nil
	}
	return mo.None[index.Record](), nil
}

func (t *memoryTx) Stats(ctx context.Context) (index.Stats, error) {
	names, _ := t.ListMinistries(ctx)
	return index.Stats{
		TotalDocuments: int64(len(t.docs)),
		MinistryCount:  int64(len(names)),
	}, nil
}

// sorted は ID 順のレコード列を返します
func (t *memoryTx) sorted() []index.Record {
	ids := make([]string, 0, len(t.docs))
	for id := range t.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]index.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, t.docs[id])
	}
	return records
}

func l2(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d != %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

var _ index.Repository = (*MemoryRepository)(nil)
