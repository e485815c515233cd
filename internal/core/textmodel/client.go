package textmodel

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoAPIKeys はAPIキーが1つも設定されていない場合のエラー
	ErrNoAPIKeys = errors.New("no model API keys configured")
)

// Generator はプロンプトからテキストを生成する最小契約
// パイプラインはこのインターフェースにのみ依存する
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client は1つの認証情報に紐づくモデルAPIクライアント
type Client interface {
	Generator

	// ListModels は利用可能なモデル識別子の一覧を返す
	ListModels(ctx context.Context) ([]string, error)
}

// Factory は指定されたAPIキーとモデル名でクライアントを生成する
type Factory func(apiKey, model string) (Client, error)

// APIError はモデルAPIからのエラー応答
// インフラ層がSDK固有のエラーをこの型へ写像することで、
// クォータ判定とモデル未存在判定をコア層で行えるようにする
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model API error (status %d): %s", e.StatusCode, e.Message)
}

// IsQuotaError はクォータ/レート制限の枯渇を示すエラーか判定する
func IsQuotaError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == 429 {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "quota") || strings.Contains(msg, "resource_exhausted")
}

// IsModelNotFoundError は設定されたモデル名が無効/未存在であることを示すエラーか判定する
func IsModelNotFoundError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	if apiErr.StatusCode == 404 && strings.Contains(msg, "model") {
		return true
	}
	return strings.Contains(msg, "model") && strings.Contains(msg, "not found")
}

// preferredModels はデフォルトモデル選択の優先順
// 先頭から順に一覧と照合し、最初に見つかったものを採用する
var preferredModels = []string{
	"models/gemini-1.5-flash-latest",
	"models/gemini-1.5-pro-latest",
	"models/gemini-1.5-flash",
	"models/gemini-1.5-pro",
	"models/gemini-1.0-pro",
	"gemini-1.5-flash-latest",
	"gemini-1.5-pro-latest",
	"gemini-1.5-flash",
	"gemini-1.5-pro",
	"gemini-1.0-pro",
}

// ChooseDefaultModel は利用可能なモデル一覧から既定モデルを選ぶ
// 優先リストに該当がなければ一覧の先頭、一覧が空なら空文字を返す
func ChooseDefaultModel(models []string) string {
	for _, name := range preferredModels {
		for _, m := range models {
			if m == name {
				return m
			}
		}
	}
	if len(models) > 0 {
		return models[0]
	}
	return ""
}
