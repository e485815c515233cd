package woocommerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/product"
)

func TestGetProductMapsMetaAndCategories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/products/31", r.URL.Path)

		key, secret, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "ck_test", key)
		assert.Equal(t, "cs_test", secret)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":           31,
			"name":         "Astra Pro WordPress Theme",
			"description":  "<p>old description</p>",
			"slug":         "astra-pro",
			"date_created": "2026-05-01T10:30:00",
			"categories":   []map[string]any{{"name": "Themes"}},
			"meta_data": []map[string]any{
				{"key": "yoast_wpseo_title", "value": "Old Meta"},
				{"key": "_internal_count", "value": 3}, // 文字列以外のメタは無視する
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "ck_test", "cs_test")
	got, err := client.GetProduct(context.Background(), 31)
	require.NoError(t, err)

	assert.Equal(t, "Astra Pro WordPress Theme", got.Name)
	assert.Equal(t, []string{"Themes"}, got.Categories)
	assert.Equal(t, "Old Meta", got.Meta["yoast_wpseo_title"])
	_, hasCount := got.Meta["_internal_count"]
	assert.False(t, hasCount)
	assert.Equal(t, 2026, got.CreatedAt.Year())
}

func TestUpdateProductSendsOnlyChangedFields(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 31})
	}))
	defer server.Close()

	client := NewClient(server.URL, "ck_test", "cs_test")
	name := "New Product Name"
	err := client.UpdateProduct(context.Background(), 31, product.Update{
		Name: &name,
		Meta: map[string]string{"yoast_wpseo_title": "New Meta"},
	})
	require.NoError(t, err)

	assert.Equal(t, "New Product Name", body["name"])
	_, hasDescription := body["description"]
	assert.False(t, hasDescription)
	_, hasSlug := body["slug"]
	assert.False(t, hasSlug)

	entries, ok := body["meta_data"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, "yoast_wpseo_title", entry["key"])
	assert.Equal(t, "New Meta", entry["value"])
}

func TestUpdateProductWithNoChangesSkipsRequest(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := NewClient(server.URL, "ck_test", "cs_test")
	require.NoError(t, client.UpdateProduct(context.Background(), 31, product.Update{}))
	assert.Equal(t, 0, calls)
}

func TestListProductsPageAppliesDateWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "10", q.Get("per_page"))
		assert.Equal(t, "2026-01-01T00:00:00", q.Get("after"))
		assert.Equal(t, "2026-06-30T23:59:59", q.Get("before"))
		assert.Equal(t, "date", q.Get("orderby"))

		w.Header().Set(totalPagesHeader, "3")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "name": "First Product"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "ck_test", "cs_test")
	products, totalPages, err := client.ListProductsPage(context.Background(), product.ListQuery{
		Page:          1,
		PerPage:       10,
		CreatedAfter:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatedBefore: time.Date(2026, 6, 30, 23, 59, 59, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, totalPages)
	require.Len(t, products, 1)
	assert.Equal(t, "First Product", products[0].Name)
}

func TestErrorResponseSurfacesStatusCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":"woocommerce_rest_cannot_view"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "ck_bad", "cs_bad")
	_, err := client.GetProduct(context.Background(), 1)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}
