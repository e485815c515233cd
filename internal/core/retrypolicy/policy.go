package retrypolicy

import (
	"context"
	"errors"
	"time"
)

// BackoffFunc は試行回数（1始まり）から次の待機時間を計算する
type BackoffFunc func(attempt int) time.Duration

// Fixed は固定間隔のバックオフを返す
func Fixed(d time.Duration) BackoffFunc {
	return func(int) time.Duration {
		return d
	}
}

// Exponential は initial から倍々で増加し max で頭打ちになるバックオフを返す
func Exponential(initial, max time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		d := initial
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		if d > max {
			return max
		}
		return d
	}
}

// Policy は上限付きリトライポリシー
// MaxAttempts が 0 以下の場合は無制限に再試行する
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent は再試行しても解決しないエラーであることを示す
// Do はこのマークが付いたエラーを受け取ると即座に元のエラーを返す
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do は fn を成功するまで再試行する
// 試行間の待機中にコンテキストが取り消された場合はそのエラーを返す
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return lastErr
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		if wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
}
