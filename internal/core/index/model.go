package index

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// メタデータの既知キー
const (
	KeySource      = "source"
	KeyChunkIndex  = "chunk_index"
	KeyTotalChunks = "total_chunks"
	KeyOriginalURL = "original_url"
	KeyMinistry    = "ministry"
	KeyDate        = "date"
	KeySession     = "session"
	KeyPage        = "page"
	KeyFilename    = "filename"
)

// Metadata はチャンクに付随するメタデータです
// 既知のフィールドは型付きで保持し、それ以外は Extra に保持します
type Metadata struct {
	Source      string
	ChunkIndex  int
	TotalChunks int
	OriginalURL string
	Ministry    string
	Date        string
	Session     string
	Page        string
	Filename    string
	Extra       map[string]any
}

// MarshalJSON は既知フィールドと Extra を同じ階層のオブジェクトとして出力します
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+9)
	for k, v := range m.Extra {
		out[k] = v
	}

	out[KeySource] = m.Source
	out[KeyChunkIndex] = m.ChunkIndex
	out[KeyTotalChunks] = m.TotalChunks
	putIfSet(out, KeyOriginalURL, m.OriginalURL)
	putIfSet(out, KeyMinistry, m.Ministry)
	putIfSet(out, KeyDate, m.Date)
	putIfSet(out, KeySession, m.Session)
	putIfSet(out, KeyPage, m.Page)
	putIfSet(out, KeyFilename, m.Filename)

	return json.Marshal(out)
}

// UnmarshalJSON は既知キーを型付きフィールドへ、残りを Extra へ振り分けます
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode metadata: %w", err)
	}

	*m = Metadata{}
	var err error
	for key, value := range raw {
		switch key {
		case KeySource:
			m.Source, err = decodeString(value)
		case KeyChunkIndex:
			m.ChunkIndex, err = decodeInt(value)
		case KeyTotalChunks:
			m.TotalChunks, err = decodeInt(value)
		case KeyOriginalURL:
			m.OriginalURL, err = decodeString(value)
		case KeyMinistry:
			m.Ministry, err = decodeString(value)
		case KeyDate:
			m.Date, err = decodeString(value)
		case KeySession:
			m.Session, err = decodeString(value)
		case KeyPage:
			m.Page, err = decodeString(value)
		case KeyFilename:
			m.Filename, err = decodeString(value)
		default:
			var v any
			if err = json.Unmarshal(value, &v); err == nil {
				if m.Extra == nil {
					m.Extra = make(map[string]any)
				}
				m.Extra[key] = v
			}
		}
		if err != nil {
			return fmt.Errorf("invalid metadata field %q: %w", key, err)
		}
	}
	return nil
}

func putIfSet(out map[string]any, key, value string) {
	if value != "" {
		out[key] = value
	}
}

// decodeString は文字列・数値・null のいずれも文字列として受け付けます
func decodeString(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("unexpected type %T", v)
	}
}

func decodeInt(raw json.RawMessage) (int, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(t)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// Chunk は埋め込み前のチャンクです
// ID はソース識別子とチャンク番号から決まるため、再取り込みでも同じ値になります
type Chunk struct {
	ID       string
	Text     string
	Ministry string
	Metadata Metadata
}

// Record は永続化された埋め込み済みチャンクです
type Record struct {
	Chunk
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SearchResult は類似検索の結果1件を表します
type SearchResult struct {
	ID             string
	Text           string
	Ministry       string
	Metadata       Metadata
	Distance       float64
	RelevanceScore float64
}

// RelevanceScore は距離を [0, 1] の関連度へ変換します
// 距離に対して単調非増加です
func RelevanceScore(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	return math.Min(1, math.Max(0, 1-distance))
}

// Stats はストア全体の件数情報
type Stats struct {
	TotalDocuments int64
	MinistryCount  int64
}

// Health はストアの接続状態と件数のスナップショット
type Health struct {
	Connected         bool
	TotalDocuments    int64
	MinistryCount     int64
	IndexedMinistries []string
	Error             string
}
