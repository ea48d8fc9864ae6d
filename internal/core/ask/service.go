package ask

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/mo"
	"golang.org/x/sync/semaphore"

	"github.com/jinford/sansad-rag/internal/core/index"
)

const (
	// DefaultWorkers はモデル呼び出しを並行して行う数の上限
	DefaultWorkers = 2
	// DefaultModelTimeout はモデル呼び出し1回あたりのタイムアウト
	DefaultModelTimeout = 30 * time.Second
	// DefaultContextDocuments はプロンプトに含める文書数の上限
	DefaultContextDocuments = 5
	// DefaultSearchLimit は Ask で検索する件数のデフォルト値
	DefaultSearchLimit = 5
)

// Service は検索結果を根拠とした回答を生成する
type Service struct {
	generator    Generator
	searcher     Searcher
	tokens       TokenCounter
	maxDocTokens int
	pool         *semaphore.Weighted
	config       GenerationConfig
	timeout      time.Duration
	contextDocs  int
	logger       *slog.Logger
}

type ServiceOption func(*Service)

// WithAskLogger は Service にロガーを設定する
func WithAskLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithSearcher は Ask で使う検索先を設定する
func WithSearcher(searcher Searcher) ServiceOption {
	return func(s *Service) {
		s.searcher = searcher
	}
}

// WithTokenCounter はトークン数の計測と文書ごとの切り詰めを有効にする
// maxDocTokens が0以下の場合は計測のみ行う
func WithTokenCounter(counter TokenCounter, maxDocTokens int) ServiceOption {
	return func(s *Service) {
		s.tokens = counter
		s.maxDocTokens = maxDocTokens
	}
}

// WithGenerationConfig は生成パラメータを設定する
func WithGenerationConfig(cfg GenerationConfig) ServiceOption {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithWorkers はモデル呼び出しの並行数を設定する
func WithWorkers(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.pool = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithModelTimeout はモデル呼び出しのタイムアウトを設定する
func WithModelTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithContextDocuments はプロンプトに含める文書数を設定する
func WithContextDocuments(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.contextDocs = n
		}
	}
}

// NewService は新しい Service を作成する
func NewService(generator Generator, opts ...ServiceOption) *Service {
	svc := &Service{
		generator:   generator,
		pool:        semaphore.NewWeighted(DefaultWorkers),
		config:      DefaultGenerationConfig(),
		timeout:     DefaultModelTimeout,
		contextDocs: DefaultContextDocuments,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// Answer は質問と検索結果から回答を生成する
// 失敗はすべて定型文の回答として返し、エラーを呼び出し元へ伝播させない
func (s *Service) Answer(ctx context.Context, req Request) Answer {
	if err := s.pool.Acquire(ctx, 1); err != nil {
		s.logger.Warn("failed to acquire generation slot", "error", err)
		return Answer{Text: ErrorMessage, Outcome: OutcomeError}
	}
	defer s.pool.Release(1)

	return s.answer(ctx, req)
}

// AnswerAsync は Answer をワーカープール上で実行し、結果を1件だけ送るチャネルを返す
func (s *Service) AnswerAsync(ctx context.Context, req Request) <-chan Answer {
	ch := make(chan Answer, 1)
	go func() {
		defer close(ch)
		ch <- s.Answer(ctx, req)
	}()
	return ch
}

func (s *Service) answer(ctx context.Context, req Request) (result Answer) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("answer generation panicked", "panic", r)
			result = Answer{Text: ErrorMessage, Outcome: OutcomeError}
		}
	}()

	ministry := req.Ministry.OrEmpty()
	docs := s.contextDocuments(req.Documents)

	var prompt string
	if len(docs) > 0 {
		prompt = BuildStructuredPrompt(req.Question, ministry, docs)
	} else {
		prompt = BuildSimplePrompt(req.Question, ministry)
	}

	logArgs := []any{"ministry", ministry, "documents", len(docs), "structured", len(docs) > 0}
	if s.tokens != nil {
		logArgs = append(logArgs, "promptTokens", s.tokens.CountTokens(prompt))
	}
	s.logger.Debug("generating answer", logArgs...)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.generator.Generate(callCtx, prompt, s.config)
	if err != nil {
		s.logger.Error("model call failed", "ministry", ministry, "error", err)
		return Answer{Text: ErrorMessage, Outcome: OutcomeError}
	}

	answer := FormatResponse(text, docs)
	if answer.Outcome != OutcomeGrounded {
		s.logger.Info("answer replaced", "ministry", ministry, "outcome", answer.Outcome.String())
	}
	return answer
}

// contextDocuments は本文を持つ上位の文書を選び、必要ならトークン数で切り詰める
func (s *Service) contextDocuments(results []index.SearchResult) []index.SearchResult {
	docs := make([]index.SearchResult, 0, min(len(results), s.contextDocs))
	for _, doc := range results {
		if len(docs) >= s.contextDocs {
			break
		}
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		if s.tokens != nil && s.maxDocTokens > 0 && s.tokens.CountTokens(doc.Text) > s.maxDocTokens {
			doc.Text = s.tokens.Truncate(doc.Text, s.maxDocTokens)
		}
		docs = append(docs, doc)
	}
	return docs
}

// Ask は省庁で絞り込んだ検索を行い、その結果を根拠に回答を生成する
// 検索の失敗は定型のエラー回答として返す
func (s *Service) Ask(ctx context.Context, params AskParams) (*AskResult, error) {
	// 1. バリデーション
	question := strings.TrimSpace(params.Question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}
	if strings.TrimSpace(params.Ministry) == "" {
		return nil, index.ErrMinistryRequired
	}
	if s.searcher == nil {
		return nil, fmt.Errorf("searcher is not configured")
	}

	// 2. デフォルト値の設定
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	// 3. 検索
	results, err := s.searcher.SearchByText(ctx, question, params.Ministry, limit)
	if err != nil {
		s.logger.Error("search failed", "ministry", params.Ministry, "error", err)
		return &AskResult{Answer: Answer{Text: ErrorMessage, Outcome: OutcomeError}}, nil
	}

	// 4. 回答生成
	ministry := mo.None[string]()
	if params.Ministry != "" {
		ministry = mo.Some(params.Ministry)
	}
	answer := s.Answer(ctx, Request{
		Question:  question,
		Ministry:  ministry,
		Documents: results,
	})

	return &AskResult{Answer: answer, Sources: results}, nil
}

// CheckConnection は生成モデルに短いプロンプトを送り、応答があることを確認する
func (s *Service) CheckConnection(ctx context.Context) (string, error) {
	if err := s.pool.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("failed to acquire generation slot: %w", err)
	}
	defer s.pool.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.generator.Generate(callCtx, ConnectionTestPrompt, s.config)
	if err != nil {
		return "", fmt.Errorf("connection test failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("connection test returned an empty response")
	}
	return text, nil
}
