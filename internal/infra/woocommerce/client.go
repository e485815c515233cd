// Package woocommerce は WooCommerce REST API クライアントを提供します
package woocommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/product"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
)

// totalPagesHeader は総ページ数を伝えるヘッダ
const totalPagesHeader = "X-WP-TotalPages"

// dateFormat はWooCommerceの日時表現（タイムゾーンなしISO 8601）
const dateFormat = "2006-01-02T15:04:05"

// APIError はWooCommerce APIからのエラー応答
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("woocommerce API error (status %d): %s", e.StatusCode, e.Body)
}

// Client は consumer key/secret 認証の WooCommerce REST API クライアント
type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	httpClient     *http.Client
	logger         *slog.Logger
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

// NewClient は新しい WooCommerce クライアントを作成する
func NewClient(baseURL, consumerKey, consumerSecret string, opts ...Option) *Client {
	c := &Client{
		baseURL:        baseURL,
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type metaEntry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type categoryPayload struct {
	Name string `json:"name"`
}

type productPayload struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Slug        string            `json:"slug"`
	DateCreated string            `json:"date_created"`
	Categories  []categoryPayload `json:"categories"`
	MetaData    []metaEntry       `json:"meta_data"`
}

func (p productPayload) toProduct() product.Product {
	meta := make(map[string]string, len(p.MetaData))
	for _, entry := range p.MetaData {
		if s, ok := entry.Value.(string); ok {
			meta[entry.Key] = s
		}
	}
	categories := make([]string, 0, len(p.Categories))
	for _, cat := range p.Categories {
		categories = append(categories, cat.Name)
	}
	created, _ := time.Parse(dateFormat, p.DateCreated)
	return product.Product{
		ID:              p.ID,
		Name:            p.Name,
		DescriptionHTML: p.Description,
		Slug:            p.Slug,
		Categories:      categories,
		Meta:            meta,
		CreatedAt:       created,
	}
}

// GetProduct は商品を1件取得する
func (c *Client) GetProduct(ctx context.Context, id int64) (*product.Product, error) {
	var payload productPayload
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/wp-json/wc/v3/products/%d", id), nil, nil, &payload, nil); err != nil {
		return nil, err
	}
	result := payload.toProduct()
	return &result, nil
}

// UpdateProduct は商品の部分更新を書き込む。nil のフィールドは送らない
func (c *Client) UpdateProduct(ctx context.Context, id int64, update product.Update) error {
	body := map[string]any{}
	if update.Name != nil {
		body["name"] = *update.Name
	}
	if update.DescriptionHTML != nil {
		body["description"] = *update.DescriptionHTML
	}
	if update.Slug != nil {
		body["slug"] = *update.Slug
	}
	if len(update.Meta) > 0 {
		entries := make([]metaEntry, 0, len(update.Meta))
		for key, value := range update.Meta {
			entries = append(entries, metaEntry{Key: key, Value: value})
		}
		body["meta_data"] = entries
	}
	if len(body) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/wp-json/wc/v3/products/%d", id), nil, body, nil, nil)
}

// ListProductsPage は作成日で絞った1ページ分の商品と総ページ数を返す
func (c *Client) ListProductsPage(ctx context.Context, query product.ListQuery) ([]product.Product, int, error) {
	values := url.Values{
		"page":     {strconv.Itoa(query.Page)},
		"per_page": {strconv.Itoa(query.PerPage)},
		"orderby":  {"date"},
		"order":    {"asc"},
	}
	if !query.CreatedAfter.IsZero() {
		values.Set("after", query.CreatedAfter.Format(dateFormat))
	}
	if !query.CreatedBefore.IsZero() {
		values.Set("before", query.CreatedBefore.Format(dateFormat))
	}

	var payloads []productPayload
	var header http.Header
	if err := c.do(ctx, http.MethodGet, "/wp-json/wc/v3/products", values, nil, &payloads, &header); err != nil {
		return nil, 0, err
	}

	totalPages, _ := strconv.Atoi(header.Get(totalPagesHeader))
	if totalPages < 1 {
		totalPages = 1
	}

	products := make([]product.Product, 0, len(payloads))
	for _, p := range payloads {
		products = append(products, p.toProduct())
	}
	return products, totalPages, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, outHeader *http.Header) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return status.WrapError(status.KindNetwork, err, "woocommerce request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return status.WrapError(status.KindNetwork, err, "failed to read woocommerce response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > 300 {
			data = data[:300]
		}
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode woocommerce response: %w", err)
		}
	}
	if outHeader != nil {
		*outHeader = resp.Header
	}
	return nil
}

// インターフェース実装の確認
var _ product.CommerceAPI = (*Client)(nil)
