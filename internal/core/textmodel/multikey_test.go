package textmodel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
)

// scriptedClient はキーごとの応答を記録・再生するスタブ
type scriptedClient struct {
	key       string
	generate  func(key, model string) (string, error)
	models    []string
	modelsErr error
	calls     *callLog
}

type callLog struct {
	generates  []string // "key/model" 形式
	listModels []string
}

func (c *scriptedClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(c.key, "")
}

func (c *scriptedClient) ListModels(ctx context.Context) ([]string, error) {
	c.calls.listModels = append(c.calls.listModels, c.key)
	return c.models, c.modelsErr
}

func newFactory(log *callLog, generate func(key, model string) (string, error), models []string) Factory {
	return func(apiKey, model string) (Client, error) {
		log.generates = append(log.generates, apiKey+"/"+model)
		return &scriptedClient{
			key:      apiKey,
			generate: func(k, _ string) (string, error) { return generate(k, model) },
			models:   models,
			calls:    log,
		}, nil
	}
}

func quotaErr() error {
	return &APIError{StatusCode: 429, Message: "quota exceeded"}
}

func modelNotFoundErr() error {
	return &APIError{StatusCode: 404, Message: "models/gemini-oops is not found"}
}

func TestGenerateFirstKeySucceeds(t *testing.T) {
	log := &callLog{}
	factory := newFactory(log, func(key, model string) (string, error) {
		return "hello from " + key, nil
	}, nil)

	client, err := NewMultiKeyClient(factory, []string{"k1", "k2"}, "gemini-1.5-flash-latest")
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "hello from k1", text)
}

func TestGenerateQuotaAdvancesToNextKey(t *testing.T) {
	log := &callLog{}
	factory := newFactory(log, func(key, model string) (string, error) {
		if key == "k1" {
			return "", quotaErr()
		}
		return "ok", nil
	}, nil)

	client, err := NewMultiKeyClient(factory, []string{"k1", "k2"}, "m")
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestGenerateAllKeysQuotaRaisesLastQuotaError(t *testing.T) {
	log := &callLog{}
	factory := newFactory(log, func(key, model string) (string, error) {
		return "", quotaErr()
	}, nil)

	client, err := NewMultiKeyClient(factory, []string{"k1", "k2", "k3"}, "m")
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, status.KindQuota, status.KindOf(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 429, apiErr.StatusCode)

	// 各キーにつき生成クライアントの構築は1回だけ（非クォータ経路での再試行なし）
	assert.Equal(t, []string{"k1/m", "k2/m", "k3/m"}, log.generates)
}

func TestGenerateFatalErrorStopsRotation(t *testing.T) {
	log := &callLog{}
	fatal := &APIError{StatusCode: 500, Message: "internal error"}
	factory := newFactory(log, func(key, model string) (string, error) {
		return "", fatal
	}, nil)

	client, err := NewMultiKeyClient(factory, []string{"k1", "k2"}, "m")
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "p")
	require.Error(t, err)
	// 最初のキーで打ち切り、k2 は試行されない
	assert.Equal(t, []string{"k1/m"}, log.generates)
}

type recordingModelStore struct {
	saved []string
}

func (s *recordingModelStore) SaveModelName(ctx context.Context, name string) error {
	s.saved = append(s.saved, name)
	return nil
}

func TestGenerateModelNotFoundCorrectsAndRetriesOnce(t *testing.T) {
	log := &callLog{}
	factory := newFactory(log, func(key, model string) (string, error) {
		if model == "gemini-bogus" {
			return "", modelNotFoundErr()
		}
		return "generated with " + model, nil
	}, []string{"models/gemini-1.0-pro", "models/gemini-1.5-flash-latest"})

	store := &recordingModelStore{}
	client, err := NewMultiKeyClient(factory, []string{"k1"}, "gemini-bogus", WithModelStore(store))
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "generated with models/gemini-1.5-flash-latest", text)

	// 補正後のモデル名が保存され、以後の呼び出しにも反映される
	assert.Equal(t, []string{"models/gemini-1.5-flash-latest"}, store.saved)
	assert.Equal(t, "models/gemini-1.5-flash-latest", client.ModelName())

	// ListModels は1回だけ呼ばれる
	assert.Len(t, log.listModels, 1)
}

func TestGenerateModelNotFoundWithEmptyListPropagates(t *testing.T) {
	log := &callLog{}
	factory := newFactory(log, func(key, model string) (string, error) {
		return "", modelNotFoundErr()
	}, nil)

	client, err := NewMultiKeyClient(factory, []string{"k1"}, "m")
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, IsModelNotFoundError(err))
}

func TestNewMultiKeyClientRequiresKeys(t *testing.T) {
	_, err := NewMultiKeyClient(nil, nil, "m")
	assert.ErrorIs(t, err, ErrNoAPIKeys)
}

func TestChooseDefaultModel(t *testing.T) {
	assert.Equal(t, "models/gemini-1.5-flash-latest",
		ChooseDefaultModel([]string{"models/gemini-1.0-pro", "models/gemini-1.5-flash-latest"}))
	assert.Equal(t, "models/gemini-1.0-pro",
		ChooseDefaultModel([]string{"models/gemini-1.0-pro"}))
	assert.Equal(t, "something-else", ChooseDefaultModel([]string{"something-else"}))
	assert.Equal(t, "", ChooseDefaultModel(nil))
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsQuotaError(quotaErr()))
	assert.True(t, IsQuotaError(&APIError{StatusCode: 400, Message: "RESOURCE_EXHAUSTED: quota"}))
	assert.False(t, IsQuotaError(errors.New("plain")))

	assert.True(t, IsModelNotFoundError(modelNotFoundErr()))
	assert.True(t, IsModelNotFoundError(&APIError{StatusCode: 400, Message: "model gemini-x not found"}))
	assert.False(t, IsModelNotFoundError(&APIError{StatusCode: 404, Message: "page missing"}))
}
