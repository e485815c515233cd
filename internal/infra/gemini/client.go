// Package gemini は OpenAI 互換エンドポイント経由の Gemini API クライアントを提供します
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/textmodel"
)

const (
	// DefaultBaseURL は Gemini の OpenAI 互換エンドポイント
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultTimeout = 120 * time.Second
)

// ErrAPIKeyNotSet はAPIキーが空の場合のエラー
var ErrAPIKeyNotSet = errors.New("Gemini API key not set")

// Client は1つのAPIキーに紐づく Gemini クライアント
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// Option は Client のオプション設定
type Option func(*Client)

// WithTimeout はAPIコールのタイムアウトを設定する
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient はAPIキーとモデル名を指定して Client を作成する
func NewClient(apiKey, model string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(DefaultBaseURL),
	)

	c := &Client{
		client:  client,
		model:   model,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Factory は textmodel.Factory として使えるコンストラクタ
func Factory(apiKey, model string) (textmodel.Client, error) {
	return NewClient(apiKey, model)
}

// ModelName はモデル名を返す
func (c *Client) ModelName() string {
	return c.model
}

// Generate はプロンプトからテキストを生成する
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", mapError(err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}

// ListModels は利用可能なモデル識別子の一覧を返す
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	names := make([]string, 0, len(page.Data))
	for _, model := range page.Data {
		names = append(names, model.ID)
	}
	return names, nil
}

// mapError はSDK固有のエラーをコア層の APIError へ写像する
// クォータ判定・モデル未存在判定をSDK非依存で行うための境界
func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &textmodel.APIError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
		}
	}
	return err
}

// インターフェース実装の確認
var _ textmodel.Client = (*Client)(nil)
