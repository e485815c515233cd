package gemini

import (
	"errors"
	"testing"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/textmodel"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient("", "gemini-1.5-flash-latest")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)

	client, err := NewClient("key", "gemini-1.5-flash-latest")
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-flash-latest", client.ModelName())
}

func TestMapErrorTranslatesSDKErrors(t *testing.T) {
	mapped := mapError(&openai.Error{StatusCode: 429, Message: "quota exceeded"})

	var apiErr *textmodel.APIError
	require.ErrorAs(t, mapped, &apiErr)
	assert.Equal(t, 429, apiErr.StatusCode)
	assert.True(t, textmodel.IsQuotaError(mapped))

	// SDK外のエラーはそのまま通す
	plain := errors.New("dial tcp: connection refused")
	assert.Equal(t, plain, mapError(plain))
}
