package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy は再試行の回数と待機時間を表します
type Policy struct {
	// MaxAttempts は初回を含む最大試行回数
	MaxAttempts int
	// InitialInterval は1回目の失敗後の待機時間
	InitialInterval time.Duration
	// Multiplier は待機時間の増加倍率
	Multiplier float64
	// MaxInterval は待機時間の上限（0は上限なし）
	MaxInterval time.Duration
	// Retryable が false を返したエラーは即座に呼び出し元へ返す（nilの場合は全て再試行）
	Retryable func(error) bool
	// OnRetry は失敗した試行ごとに呼ばれる
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy は3回試行・1秒から倍々で待機するポリシーを返します
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		Multiplier:      2,
	}
}

// Do は op をポリシーに従って実行します
// 最後の試行のエラー、またはコンテキストのエラーを返します
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue は値を返す op をポリシーに従って実行します
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T

	attempt := 0
	operation := func() error {
		attempt++
		value, err := op(ctx)
		if err != nil {
			if p.Retryable != nil && !p.Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = value
		return nil
	}

	notify := func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
	}

	err := backoff.RetryNotify(operation, p.backOff(ctx), notify)
	if err != nil {
		var zero T
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return zero, errors.Join(ctxErr, err)
		}
		return zero, err
	}
	return result, nil
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.Multiplier = p.Multiplier
	if exp.Multiplier < 1 {
		exp.Multiplier = 1
	}
	exp.RandomizationFactor = 0
	exp.MaxInterval = p.MaxInterval
	if exp.MaxInterval <= 0 {
		exp.MaxInterval = time.Duration(1<<63 - 1)
	}
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}
