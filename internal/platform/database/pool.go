package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationName は接続に付与する application_name
const ApplicationName = "sansad_rag"

// ConnectionParams はデータベース接続パラメータ
type ConnectionParams struct {
	// URL が設定されている場合は個別の項目より優先する
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	// PoolSize は常時維持する接続数、MaxOverflow はそれを超えて開ける接続数
	PoolSize          int
	MaxOverflow       int
	MaxConnLifetime   time.Duration
	HealthCheckPeriod time.Duration
}

// ConnString は pgx が解釈できる接続文字列を返します
func (p ConnectionParams) ConnString() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host,
		p.Port,
		p.User,
		p.Password,
		p.DBName,
		p.SSLMode,
	)
}

// NewPool は接続プールを作成し、疎通を確認します
func NewPool(ctx context.Context, params ConnectionParams) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(params.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if params.PoolSize > 0 {
		cfg.MinConns = int32(params.PoolSize)
		cfg.MaxConns = int32(params.PoolSize + max(params.MaxOverflow, 0))
	}
	if params.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = params.MaxConnLifetime
	}
	if params.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = params.HealthCheckPeriod
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// 接続テスト
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
