package wordpress

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/post"
)

func TestGetPostNormalizesTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wp/v2/posts/7", r.URL.Path)
		assert.Equal(t, "edit", r.URL.Query().Get("context"))

		username, password, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "admin", username)
		assert.Equal(t, "secret", password)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      7,
			"link":    "https://example.com/post-7",
			"title":   map[string]string{"rendered": "Tips &amp; Tricks"},
			"content": map[string]string{"rendered": "<p>body</p>"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")
	got, err := client.GetPost(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Tips & Tricks", got.Title)
	assert.Equal(t, "<p>body</p>", got.ContentHTML)
}

func TestListPostsPageReadsTotalPagesHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, listStatuses, r.URL.Query().Get("status"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))

		w.Header().Set(totalPagesHeader, "4")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "title": map[string]string{"rendered": "First"}},
			{"id": 2, "title": map[string]string{"rendered": "Second"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")
	posts, totalPages, err := client.ListPostsPage(context.Background(), 2, 50)
	require.NoError(t, err)
	assert.Equal(t, 4, totalPages)
	require.Len(t, posts, 2)
	assert.Equal(t, int64(1), posts[0].ID)
	assert.Equal(t, "First", posts[0].Title)
}

func TestListRetriesTransientFailures(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set(totalPagesHeader, "1")
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")
	_, _, err := client.ListPostsPage(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestUpdatePostPublishesAndClearsPassword(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 7})
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")
	err := client.UpdatePost(context.Background(), 7, post.Update{
		ContentHTML:     "<p>new body</p>",
		MetaTitle:       "Meta Title",
		MetaDescription: "Meta description.",
		TagIDs:          []int64{3, 4},
		UseExcerpt:      true,
		MetaTitleKey:    "yoast_wpseo_title",
		MetaDescKey:     "yoast_wpseo_metadesc",
	})
	require.NoError(t, err)

	assert.Equal(t, "publish", body["status"])
	assert.Equal(t, "", body["password"])
	assert.Equal(t, "<p>new body</p>", body["content"])
	assert.Equal(t, "Meta description.", body["excerpt"])

	meta, ok := body["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Meta Title", meta["yoast_wpseo_title"])
	assert.Equal(t, "Meta description.", meta["yoast_wpseo_metadesc"])
}

func TestFindOrCreateTag(t *testing.T) {
	t.Run("検索で既存タグに一致する", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method, "create must not be called")
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": 9, "name": "WordPress Themes"},
			})
		}))
		defer server.Close()

		client := NewClient(server.URL, "admin", "secret")
		id, err := client.FindOrCreateTag(context.Background(), "wordpress themes")
		require.NoError(t, err)
		assert.Equal(t, int64(9), id)
	})

	t.Run("一致がなければ新規作成する", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				_ = json.NewEncoder(w).Encode([]map[string]any{})
				return
			}
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "new tag", body["name"])
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 15, "name": "new tag"})
		}))
		defer server.Close()

		client := NewClient(server.URL, "admin", "secret")
		id, err := client.FindOrCreateTag(context.Background(), "new tag")
		require.NoError(t, err)
		assert.Equal(t, int64(15), id)
	})

	t.Run("400系の拒否は読み飛ばしを指示する", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				_ = json.NewEncoder(w).Encode([]map[string]any{})
				return
			}
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":"invalid_term"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "admin", "secret")
		id, err := client.FindOrCreateTag(context.Background(), "bad tag")
		require.NoError(t, err)
		assert.Equal(t, int64(0), id)
	})
}

func TestPingReportsAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"rest_not_logged_in"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "wrong")
	err := client.Ping(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
