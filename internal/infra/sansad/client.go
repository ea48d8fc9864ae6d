package sansad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jinford/sansad-rag/internal/core/ingestion"
)

const (
	// DefaultAPIURL は Lok Sabha の質問一覧 API
	DefaultAPIURL = "https://sansad.in/api_ls/question/qetFilteredQuestionsAns"
	// DefaultLokSabha は対象の Lok Sabha 番号
	DefaultLokSabha = 18
	// DefaultSession は対象の会期番号
	DefaultSession = 5
	// DefaultPageSize は1ページあたりの取得件数
	DefaultPageSize = 20
	// DefaultRequestsPerSecond は一覧 API への秒間リクエスト数
	DefaultRequestsPerSecond = 4.0
	// DefaultListTimeout は一覧 API 1回あたりのタイムアウト
	DefaultListTimeout = 40 * time.Second
	// DefaultFetchTimeout は PDF 取得1回あたりのタイムアウト
	DefaultFetchTimeout = 60 * time.Second
	// DefaultMaxPDFSize は取得する PDF の最大バイト数
	DefaultMaxPDFSize = 64 << 20
)

var (
	// ErrNotFound は PDF が存在しない場合のエラー
	ErrNotFound = errors.New("sansad document not found")

	// ErrUnknownMinistry は省庁名に対応するコードが無い場合のエラー
	ErrUnknownMinistry = errors.New("unknown ministry")

	// ErrPDFTooLarge は PDF が MaxPDFSize を超えた場合のエラー
	ErrPDFTooLarge = errors.New("sansad document too large")
)

// MinistryCodes は省庁名から sansad.in の省庁コードを引く
type MinistryCodes interface {
	CodeOf(name string) (int, bool)
}

// Config は Client の設定
type Config struct {
	APIURL            string
	LokSabha          int
	Session           int
	PageSize          int
	RequestsPerSecond float64
	ListTimeout       time.Duration
	FetchTimeout      time.Duration
	MaxPDFSize        int64
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		APIURL:            DefaultAPIURL,
		LokSabha:          DefaultLokSabha,
		Session:           DefaultSession,
		PageSize:          DefaultPageSize,
		RequestsPerSecond: DefaultRequestsPerSecond,
		ListTimeout:       DefaultListTimeout,
		FetchTimeout:      DefaultFetchTimeout,
		MaxPDFSize:        DefaultMaxPDFSize,
	}
}

// Question は一覧 API が返す質問1件
// 利用しないフィールドも Raw に保持する
type Question struct {
	Number   string
	Date     string
	Subject  string
	FilePath string
	Raw      map[string]any
}

type listPage struct {
	ListOfQuestions []map[string]any `json:"listOfQuestions"`
	TotalRecordSize json.Number      `json:"totalRecordSize"`
}

// Client は sansad.in の質問一覧 API と PDF 取得を扱う
type Client struct {
	cfg     Config
	codes   MinistryCodes
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

type ClientOption func(*Client)

// WithClientLogger は Client にロガーを設定する
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient は使用する http.Client を差し替える
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient は新しい Client を作成する
// 0 値の設定項目にはデフォルト値を使用する
func NewClient(cfg Config, codes MinistryCodes, opts ...ClientOption) *Client {
	def := DefaultConfig()
	if cfg.APIURL == "" {
		cfg.APIURL = def.APIURL
	}
	if cfg.LokSabha <= 0 {
		cfg.LokSabha = def.LokSabha
	}
	if cfg.Session <= 0 {
		cfg.Session = def.Session
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = def.ListTimeout
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.MaxPDFSize <= 0 {
		cfg.MaxPDFSize = def.MaxPDFSize
	}

	c := &Client{
		cfg:     cfg,
		codes:   codes,
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// ListQuestions は省庁コードの質問をページ送りしながら全件取得する
// 空のページを受け取るか totalRecordSize に達した時点で終了する。
// 途中のページで失敗した場合はそこまでの結果を返す
func (c *Client) ListQuestions(ctx context.Context, ministryCode int) ([]Question, error) {
	var all []Question

	for pageNo := 1; ; pageNo++ {
		page, err := c.fetchPage(ctx, ministryCode, pageNo)
		if err != nil {
			if len(all) == 0 || ctx.Err() != nil {
				return nil, err
			}
			c.logger.Warn("stopping question listing after page failure", "code", ministryCode, "page", pageNo, "error", err)
			break
		}
		if page == nil || len(page.ListOfQuestions) == 0 {
			break
		}

		for _, raw := range page.ListOfQuestions {
			all = append(all, newQuestion(raw))
		}
		c.logger.Info("fetched question page", "code", ministryCode, "page", pageNo, "count", len(page.ListOfQuestions))

		total, err := page.TotalRecordSize.Int64()
		if err == nil && int64(len(all)) >= total {
			break
		}
	}

	c.logger.Info("fetched questions", "code", ministryCode, "count", len(all))
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, ministryCode, pageNo int) (*listPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ListTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("loksabhaNo", strconv.Itoa(c.cfg.LokSabha))
	params.Set("sessionNumber", strconv.Itoa(c.cfg.Session))
	params.Set("pageNo", strconv.Itoa(pageNo))
	params.Set("locale", "en")
	params.Set("pageSize", strconv.Itoa(c.cfg.PageSize))
	params.Set("ministryCode", strconv.Itoa(ministryCode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("question listing failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var pages []listPage
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&pages); err != nil {
		return nil, fmt.Errorf("failed to decode question listing: %w", err)
	}
	if len(pages) == 0 {
		return nil, nil
	}
	return &pages[0], nil
}

// ListSources は省庁の質問一覧から取り込み対象の原本を組み立てる
// PDF のパスを持たない質問は除外する
func (c *Client) ListSources(ctx context.Context, ministry string) ([]ingestion.SourceDocument, error) {
	if c.codes == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMinistry, ministry)
	}
	code, ok := c.codes.CodeOf(ministry)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMinistry, ministry)
	}

	questions, err := c.ListQuestions(ctx, code)
	if err != nil {
		return nil, err
	}

	session := strconv.Itoa(c.cfg.Session)
	sources := make([]ingestion.SourceDocument, 0, len(questions))
	for _, q := range questions {
		if q.FilePath == "" {
			continue
		}
		name := ingestion.SourceNameFromURL(q.FilePath)
		if name == "" {
			continue
		}
		fileURL := q.FilePath
		sources = append(sources, ingestion.SourceDocument{
			Name:    name,
			URL:     fileURL,
			Date:    q.Date,
			Session: session,
			Fetch: func(ctx context.Context) ([]byte, error) {
				return c.FetchPDF(ctx, fileURL)
			},
		})
	}
	return sources, nil
}

// FetchPDF は PDF のバイト列を取得する
func (c *Client) FetchPDF(ctx context.Context, fileURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", fileURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileURL)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("failed to fetch %s: status %d", fileURL, resp.StatusCode)
	}

	// 上限を1バイト超えて読み、切り詰めではなく超過として扱う
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxPDFSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fileURL, err)
	}
	if int64(len(data)) > c.cfg.MaxPDFSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrPDFTooLarge, fileURL, c.cfg.MaxPDFSize)
	}
	return data, nil
}

func newQuestion(raw map[string]any) Question {
	return Question{
		Number:   stringField(raw, "quesNo", "questionNo"),
		Date:     stringField(raw, "date", "answerDate"),
		Subject:  stringField(raw, "subjects", "subject"),
		FilePath: stringField(raw, "questionsFilePath"),
		Raw:      raw,
	}
}

// stringField は最初に見つかった空でない値を文字列として返す
func stringField(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// インターフェース実装の確認
var _ ingestion.SourceLister = (*Client)(nil)
