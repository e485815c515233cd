// Package wordpress は WordPress REST API クライアントを提供します
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/post"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
)

const (
	// listStatuses は一覧取得の対象にする投稿ステータス
	listStatuses = "publish,draft,pending,future"

	// transientRetries は 502/503/504 応答に対するリトライ回数
	transientRetries = 2

	// transientRetryDelay はリトライ間の待機時間
	transientRetryDelay = 1 * time.Second

	// totalPagesHeader は総ページ数を伝えるWordPress標準ヘッダ
	totalPagesHeader = "X-WP-TotalPages"
)

// APIError はWordPress APIからのエラー応答
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wordpress API error (status %d): %s", e.StatusCode, e.Body)
}

// IsTransient は一時的なゲートウェイ障害か判定する
func (e *APIError) IsTransient() bool {
	switch e.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client は Application Password 認証の WordPress REST API クライアント
type Client struct {
	baseURL     string
	username    string
	appPassword string
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option は Client のオプション設定
type Option func(*Client)

// WithHTTPClient はHTTPクライアントを差し替える
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient は新しい WordPress クライアントを作成する
func NewClient(baseURL, username, appPassword string, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		username:    username,
		appPassword: appPassword,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type renderedField struct {
	Rendered string `json:"rendered"`
}

type postPayload struct {
	ID      int64         `json:"id"`
	Link    string        `json:"link"`
	Title   renderedField `json:"title"`
	Content renderedField `json:"content"`
}

func (p postPayload) toPost() post.Post {
	return post.Post{
		ID:          p.ID,
		Title:       post.NormalizeTitle(p.Title.Rendered),
		ContentHTML: p.Content.Rendered,
		Link:        p.Link,
	}
}

// Ping は認証情報の疎通を確認する
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/wp-json/wp/v2/users/me", nil, nil, nil)
	return err
}

// GetPost は投稿を1件取得する
func (c *Client) GetPost(ctx context.Context, id int64) (*post.Post, error) {
	query := url.Values{"context": {"edit"}}
	var payload postPayload
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/wp-json/wp/v2/posts/%d", id), query, nil, &payload); err != nil {
		return nil, err
	}
	result := payload.toPost()
	return &result, nil
}

// ListPostsPage は1ページ分の投稿と総ページ数を返す
func (c *Client) ListPostsPage(ctx context.Context, page, perPage int) ([]post.Post, int, error) {
	query := url.Values{
		"status":   {listStatuses},
		"context":  {"edit"},
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}

	var payloads []postPayload
	header, err := c.do(ctx, http.MethodGet, "/wp-json/wp/v2/posts", query, nil, &payloads)
	if err != nil {
		return nil, 0, err
	}

	totalPages, _ := strconv.Atoi(header.Get(totalPagesHeader))
	if totalPages < 1 {
		totalPages = 1
	}

	posts := make([]post.Post, 0, len(payloads))
	for _, p := range payloads {
		posts = append(posts, p.toPost())
	}
	return posts, totalPages, nil
}

// ListAllPosts は最大 maxPages ページ分の投稿をすべて取得する
func (c *Client) ListAllPosts(ctx context.Context, perPage, maxPages int) ([]post.Post, error) {
	var all []post.Post
	for page := 1; page <= maxPages; page++ {
		posts, totalPages, err := c.ListPostsPage(ctx, page, perPage)
		if err != nil {
			return nil, err
		}
		all = append(all, posts...)
		if page >= totalPages || len(posts) == 0 {
			break
		}
	}
	return all, nil
}

// UpdatePost は本文・メタ・タグを書き込み、投稿を公開状態にする
// パスワード保護は常に解除する
func (c *Client) UpdatePost(ctx context.Context, id int64, update post.Update) error {
	body := map[string]any{
		"content":  update.ContentHTML,
		"status":   "publish",
		"password": "",
	}
	if len(update.TagIDs) > 0 {
		body["tags"] = update.TagIDs
	}
	if update.UseExcerpt && update.MetaDescription != "" {
		body["excerpt"] = update.MetaDescription
	}

	meta := map[string]string{}
	if update.MetaTitleKey != "" && update.MetaTitle != "" {
		meta[update.MetaTitleKey] = update.MetaTitle
	}
	if update.MetaDescKey != "" && update.MetaDescription != "" {
		meta[update.MetaDescKey] = update.MetaDescription
	}
	if len(meta) > 0 {
		body["meta"] = meta
	}

	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/wp-json/wp/v2/posts/%d", id), nil, body, nil)
	return err
}

// UpdatePostMeta はメタフィールドのみを書き込む
// コマースAPI経由でメタが保存されなかった場合の二次書き込みに使う
func (c *Client) UpdatePostMeta(ctx context.Context, id int64, meta map[string]string) error {
	body := map[string]any{"meta": meta}
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/wp-json/wp/v2/posts/%d", id), nil, body, nil)
	return err
}

type tagPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FindOrCreateTag はタグ名をIDへ解決する
// 検索に一致しなければ新規作成し、WordPressが400系で拒否した場合は
// (0, nil) を返して呼び出し側に読み飛ばさせる
func (c *Client) FindOrCreateTag(ctx context.Context, name string) (int64, error) {
	query := url.Values{
		"search":   {name},
		"per_page": {"100"},
	}
	var found []tagPayload
	if _, err := c.do(ctx, http.MethodGet, "/wp-json/wp/v2/tags", query, nil, &found); err != nil {
		return 0, err
	}
	for _, tag := range found {
		if equalFoldTrim(tag.Name, name) {
			return tag.ID, nil
		}
	}

	var created tagPayload
	_, err := c.do(ctx, http.MethodPost, "/wp-json/wp/v2/tags", nil, map[string]any{"name": name}, &created)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			c.logger.Warn("tag creation rejected", "tag", name, "status", apiErr.StatusCode)
			return 0, nil
		}
		return 0, err
	}
	return created.ID, nil
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// do はリクエストを送り、応答JSONを out へデコードする
// GETの 502/503/504 応答は短い待機を挟んで限定回数リトライする
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (http.Header, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	retries := 0
	if method == http.MethodGet {
		retries = transientRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying transient wordpress failure", "path", path, "attempt", attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(transientRetryDelay):
			}
		}

		header, err := c.doOnce(ctx, method, endpoint, payload, out)
		if err == nil {
			return header, nil
		}
		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsTransient() {
			return nil, err
		}
	}
	return nil, status.WrapError(status.KindNetwork, lastErr, "wordpress request failed after retries")
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, payload []byte, out any) (http.Header, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.appPassword)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, status.WrapError(status.KindNetwork, err, "wordpress request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, status.WrapError(status.KindNetwork, err, "failed to read wordpress response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(data), 300)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("failed to decode wordpress response: %w", err)
		}
	}
	return resp.Header, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// インターフェース実装の確認
var _ post.ContentAPI = (*Client)(nil)
