package database

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgErrCodeUniqueViolation      = "23505"
	pgErrCodeSerializationFailure = "40001"
	pgErrCodeDeadlockDetected     = "40P01"
	pgErrCodeAdminShutdown        = "57P01"
	pgErrCodeCrashShutdown        = "57P02"
	pgErrCodeCannotConnectNow     = "57P03"
	pgErrClassConnectionException = "08"
)

// IsUniqueViolation は PostgreSQL の unique_violation(23505) かどうかを判定します
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrCodeUniqueViolation
	}
	return false
}

// IsTransient は再試行で解消しうるエラーかどうかを判定します
//
// 直列化失敗・デッドロック・接続例外・サーバー停止と、
// 送信前に失敗した接続エラー、ネットワークのタイムアウトが対象です。
// 呼び出し元のコンテキストが終了した場合は対象外です。
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrCodeSerializationFailure,
			pgErrCodeDeadlockDetected,
			pgErrCodeAdminShutdown,
			pgErrCodeCrashShutdown,
			pgErrCodeCannotConnectNow:
			return true
		}
		return strings.HasPrefix(pgErr.Code, pgErrClassConnectionException)
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
