package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingRequired は必須の設定が欠けている場合のエラー
var ErrMissingRequired = errors.New("missing required configuration")

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// Embedding設定
	Embedding EmbeddingConfig

	// 回答生成用LLM設定
	LLM LLMConfig

	// チャンク分割設定
	Chunking ChunkingConfig

	// ドキュメントストア設定
	Store StoreConfig

	// sansad.in 設定
	Sansad SansadConfig

	// 原本の保存先
	Storage StorageConfig

	// 更新監視設定
	Monitor MonitorConfig

	// ログ設定
	Log LogConfig

	// MinistryCatalogPath が空の場合は組み込みの一覧を使用する
	MinistryCatalogPath string
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	URL               string // POSTGRESQL_URL（設定時は個別項目より優先）
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	PoolSize          int
	MaxOverflow       int
	MaxConnLifetime   time.Duration
	HealthCheckPeriod time.Duration
}

// StoredEmbeddingDimension は documents.embedding 列 (vector(384)) の次元
const StoredEmbeddingDimension = 384

// EmbeddingConfig は埋め込みモデル設定
type EmbeddingConfig struct {
	APIKey    string
	Model     string
	Dimension int
}

// LLMConfig は回答生成用LLM設定
type LLMConfig struct {
	Provider        string // "gemini" or "openai"
	GeminiAPIKey    string
	OpenAIAPIKey    string
	Model           string // 空の場合はプロバイダーのデフォルト
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
	Timeout         time.Duration
	Workers         int
	MaxDocTokens    int
}

// ChunkingConfig はチャンク分割設定
type ChunkingConfig struct {
	MaxChars int
	Overlap  int
}

// StoreConfig はドキュメントストア設定
type StoreConfig struct {
	BatchSize     int
	RetryAttempts int
	RetryBase     time.Duration
}

// SansadConfig は sansad.in API 設定
type SansadConfig struct {
	APIURL            string
	LokSabha          int
	Session           int
	PageSize          int
	RequestsPerSecond float64
	ListTimeout       time.Duration
	FetchTimeout      time.Duration
}

// StorageConfig は原本の保存先設定
type StorageConfig struct {
	RootDir string
}

// MonitorConfig は原本一覧の更新監視設定
type MonitorConfig struct {
	Schedule  string // cron 形式
	StatePath string
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string
	Format string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	openAIKey := getEnv("OPENAI_API_KEY", "")

	cfg := &Config{
		Database: DatabaseConfig{
			URL:               getEnv("POSTGRESQL_URL", ""),
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "sansad"),
			Password:          getEnv("DB_PASSWORD", ""),
			DBName:            getEnv("DB_NAME", "sansad"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			PoolSize:          getEnvAsInt("DB_POOL_SIZE", 5),
			MaxOverflow:       getEnvAsInt("DB_MAX_OVERFLOW", 10),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 30*time.Second),
		},
		Embedding: EmbeddingConfig{
			APIKey:    getEnv("EMBEDDING_API_KEY", openAIKey),
			Model:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimension: getEnvAsInt("EMBEDDING_DIMENSION", StoredEmbeddingDimension),
		},
		LLM: LLMConfig{
			Provider:        strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
			GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
			OpenAIAPIKey:    openAIKey,
			Model:           getEnv("LLM_MODEL", ""),
			Temperature:     getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			TopP:            getEnvAsFloat("LLM_TOP_P", 0.8),
			TopK:            getEnvAsInt("LLM_TOP_K", 40),
			MaxOutputTokens: getEnvAsInt("LLM_MAX_OUTPUT_TOKENS", 3000),
			Timeout:         getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
			Workers:         getEnvAsInt("LLM_WORKERS", 2),
			MaxDocTokens:    getEnvAsInt("LLM_MAX_DOC_TOKENS", 0),
		},
		Chunking: ChunkingConfig{
			MaxChars: getEnvAsInt("CHUNK_MAX_CHARS", 1000),
			Overlap:  getEnvAsInt("CHUNK_OVERLAP", 200),
		},
		Store: StoreConfig{
			BatchSize:     getEnvAsInt("STORE_BATCH_SIZE", 10),
			RetryAttempts: getEnvAsInt("STORE_RETRY_ATTEMPTS", 3),
			RetryBase:     getEnvAsDuration("STORE_RETRY_BASE", time.Second),
		},
		Sansad: SansadConfig{
			APIURL:            getEnv("SANSAD_API_URL", "https://sansad.in/api_ls/question/qetFilteredQuestionsAns"),
			LokSabha:          getEnvAsInt("SANSAD_LOK_SABHA", 18),
			Session:           getEnvAsInt("SANSAD_SESSION", 5),
			PageSize:          getEnvAsInt("SANSAD_PAGE_SIZE", 20),
			RequestsPerSecond: getEnvAsFloat("SANSAD_REQUESTS_PER_SECOND", 4),
			ListTimeout:       getEnvAsDuration("SANSAD_LIST_TIMEOUT", 40*time.Second),
			FetchTimeout:      getEnvAsDuration("SANSAD_FETCH_TIMEOUT", 60*time.Second),
		},
		Storage: StorageConfig{
			RootDir: getEnv("STORAGE_ROOT", "data/pdfs"),
		},
		Monitor: MonitorConfig{
			Schedule:  getEnv("MONITOR_SCHEDULE", "@every 6h"),
			StatePath: getEnv("MONITOR_STATE_PATH", "data/monitor_state.json"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		MinistryCatalogPath: getEnv("MINISTRY_CATALOG", ""),
	}

	// 列の次元と異なるベクトルは保存時に必ず失敗する
	if cfg.Embedding.Dimension != StoredEmbeddingDimension {
		return nil, fmt.Errorf("unsupported EMBEDDING_DIMENSION: %d (documents.embedding is vector(%d))",
			cfg.Embedding.Dimension, StoredEmbeddingDimension)
	}

	return cfg, nil
}

// Validate は必須の設定が揃っているかを検証します
// 不足している環境変数名をすべて含むエラーを返します
func (c *Config) Validate() error {
	var missing []string

	if c.Database.URL == "" && c.Database.Host == "" {
		missing = append(missing, "POSTGRESQL_URL or DB_HOST")
	}
	if c.Embedding.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}

	switch c.LLM.Provider {
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	case "openai":
		if c.LLM.OpenAIAPIKey == "" && !slices.Contains(missing, "OPENAI_API_KEY") {
			missing = append(missing, "OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER: %q", c.LLM.Provider)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, ", "))
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します
// "30s" 形式のほか、単位なしの数値は秒として扱います
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if seconds, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	return defaultValue
}
