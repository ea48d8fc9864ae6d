package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jinford/sansad-rag/internal/core/index"
	"github.com/jinford/sansad-rag/internal/infra/postgres/sqlc"
)

// PgtypeToTime converts pgtype.Timestamptz to time.Time
func PgtypeToTime(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

// MetadataToJSONB converts index.Metadata to []byte (JSONB)
func MetadataToJSONB(m index.Metadata) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return b, nil
}

// MetadataFromJSONB converts []byte (JSONB) to index.Metadata
func MetadataFromJSONB(b []byte) (index.Metadata, error) {
	var m index.Metadata
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return index.Metadata{}, err
	}
	return m, nil
}

func convertDocument(row sqlc.Document) (index.Record, error) {
	meta, err := MetadataFromJSONB(row.DocMetadata)
	if err != nil {
		return index.Record{}, fmt.Errorf("document %s: %w", row.ID, err)
	}
	return index.Record{
		Chunk: index.Chunk{
			ID:       row.ID,
			Text:     row.Text,
			Ministry: row.Ministry,
			Metadata: meta,
		},
		Embedding: row.Embedding.Slice(),
		CreatedAt: PgtypeToTime(row.CreatedAt),
		UpdatedAt: PgtypeToTime(row.UpdatedAt),
	}, nil
}

func convertSearchRow(row sqlc.SearchDocumentsRow) (index.SearchResult, error) {
	meta, err := MetadataFromJSONB(row.DocMetadata)
	if err != nil {
		return index.SearchResult{}, fmt.Errorf("document %s: %w", row.ID, err)
	}
	return index.SearchResult{
		ID:       row.ID,
		Text:     row.Text,
		Ministry: row.Ministry,
		Metadata: meta,
		Distance: row.Distance,
	}, nil
}
