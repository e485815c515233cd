package textmodel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
)

// ModelStore は補正後のモデル名を永続化する契約
// 補正は以後の実行からも参照できるよう、その場で保存される
type ModelStore interface {
	SaveModelName(ctx context.Context, name string) error
}

// MultiKeyClient は複数のAPIキーを優先順に試す生成クライアント
//
// 各キーにつき1回だけ生成を試行し、
//   - モデル未存在エラー: 同じキーで ListModels → 既定モデルを選択 → 保存 → 1回だけ再試行
//   - クォータエラー: 記録して次のキーへ
//   - それ以外のエラー: 即座に伝播（以降のキーは試さない）
//
// 全キーがクォータ枯渇なら最後のクォータエラーを返す
type MultiKeyClient struct {
	factory Factory
	keys    []string
	store   ModelStore
	logger  *slog.Logger

	mu    sync.Mutex
	model string
}

// MultiKeyOption は MultiKeyClient のオプション設定
type MultiKeyOption func(*MultiKeyClient)

// WithModelStore は補正後モデル名の保存先を設定する
func WithModelStore(store ModelStore) MultiKeyOption {
	return func(c *MultiKeyClient) {
		c.store = store
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) MultiKeyOption {
	return func(c *MultiKeyClient) {
		c.logger = logger
	}
}

// NewMultiKeyClient は新しい MultiKeyClient を作成する
func NewMultiKeyClient(factory Factory, keys []string, model string, opts ...MultiKeyOption) (*MultiKeyClient, error) {
	if len(keys) == 0 {
		return nil, ErrNoAPIKeys
	}
	c := &MultiKeyClient{
		factory: factory,
		keys:    keys,
		model:   model,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ModelName は現在のモデル名を返す（補正済みの場合は補正後の名前）
func (c *MultiKeyClient) ModelName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// Generate はプロンプトからテキストを生成する
func (c *MultiKeyClient) Generate(ctx context.Context, prompt string) (string, error) {
	var lastQuotaErr error

	for i, key := range c.keys {
		client, err := c.factory(key, c.ModelName())
		if err != nil {
			return "", fmt.Errorf("failed to build model client for key %d: %w", i+1, err)
		}

		text, err := client.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}

		if IsModelNotFoundError(err) {
			text, err = c.correctModelAndRetry(ctx, key, prompt, err)
			if err == nil {
				return text, nil
			}
			if IsQuotaError(err) {
				c.logger.Warn("model API key quota exhausted", "key_index", i+1)
				lastQuotaErr = err
				continue
			}
			return "", err
		}

		if IsQuotaError(err) {
			c.logger.Warn("model API key quota exhausted", "key_index", i+1)
			lastQuotaErr = err
			continue
		}

		return "", err
	}

	if lastQuotaErr != nil {
		return "", status.WrapError(status.KindQuota, lastQuotaErr, "all model API keys exhausted")
	}
	return "", ErrNoAPIKeys
}

// correctModelAndRetry はモデル名を補正して同じキーで1回だけ再試行する
// 補正試行はキーごと・呼び出しごとに最大1回（無限リトライしない）
func (c *MultiKeyClient) correctModelAndRetry(ctx context.Context, key, prompt string, cause error) (string, error) {
	client, err := c.factory(key, c.ModelName())
	if err != nil {
		return "", err
	}

	models, err := client.ListModels(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list models while correcting model name: %w", err)
	}

	picked := ChooseDefaultModel(models)
	if picked == "" {
		return "", cause
	}

	c.mu.Lock()
	c.model = picked
	c.mu.Unlock()
	c.logger.Info("corrected invalid model name", "picked", picked)

	if c.store != nil {
		if err := c.store.SaveModelName(ctx, picked); err != nil {
			// 保存失敗は補正そのものを妨げない
			c.logger.Warn("failed to persist corrected model name", "error", err)
		}
	}

	retryClient, err := c.factory(key, picked)
	if err != nil {
		return "", err
	}
	return retryClient.Generate(ctx, prompt)
}

// ListModels は利用可能なモデル一覧を返す
// クォータ枯渇のキーは読み飛ばし、次のキーで再試行する
func (c *MultiKeyClient) ListModels(ctx context.Context) ([]string, error) {
	var lastErr error
	for _, key := range c.keys {
		client, err := c.factory(key, c.ModelName())
		if err != nil {
			return nil, err
		}
		models, err := client.ListModels(ctx)
		if err == nil {
			return models, nil
		}
		if IsQuotaError(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// インターフェース実装の確認
var _ Client = (*MultiKeyClient)(nil)
