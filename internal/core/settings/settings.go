package settings

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
)

// app_config テーブルのキー
const (
	KeyWPBaseURL       = "wp_base_url"
	KeyWPUsername      = "wp_username"
	KeyWPAppPassword   = "wp_app_password"
	KeyWCConsumerKey   = "wc_consumer_key"
	KeyWCConsumerSecret = "wc_consumer_secret"
	KeyModelAPIKeys    = "gemini_api_keys"
	KeyModelName       = "gemini_model"
	KeyCustomPrompt    = "custom_prompt"
	KeyMetaTitleKey    = "meta_title_key"
	KeyMetaDescKey     = "meta_description_key"
	KeyUseExcerpt      = "use_excerpt_for_meta_description"
	KeyInboundLinks    = "inbound_links"
	KeyAvailableModels = "available_models"
	KeyPostsPerPage    = "posts_per_page"
	KeyMaxPages        = "max_pages"
	KeyExcludedIDs     = "product_excluded_ids"
	KeyExcludedCategories = "product_excluded_categories"
	KeyExcludedKeywords   = "product_excluded_keywords"
	KeyBulkItemDelay      = "bulk_item_delay_seconds"
)

// Repository は app_config テーブルへの永続化契約
type Repository interface {
	Get(ctx context.Context, key string) (mo.Option[string], error)
	GetAll(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, updates map[string]string) error
}

// RuntimeConfig はパイプライン1回分の実行設定スナップショット
// 資格情報のローテーションを即時反映するため、各実行の開始時に
// Load で読み直し、実行をまたいでキャッシュしない
type RuntimeConfig struct {
	WPBaseURL     string
	WPUsername    string
	WPAppPassword string

	WCConsumerKey    string
	WCConsumerSecret string

	// 優先順で並んだ生成モデルAPIキー
	ModelAPIKeys []string
	ModelName    string

	CustomPrompt string

	MetaTitleKey                 string
	MetaDescriptionKey           string
	UseExcerptForMetaDescription bool

	InboundLinks []string

	PostsPerPage int
	MaxPages     int

	ExcludedProductIDs []int64
	ExcludedCategories []string
	ExcludedKeywords   []string

	BulkItemDelay time.Duration
}

// Load は app_config テーブルと環境変数デフォルトから実行設定を組み立てる
// テーブル側の値が優先され、未設定のキーのみ環境変数で補われる
func Load(ctx context.Context, repo Repository) (*RuntimeConfig, error) {
	values, err := repo.GetAll(ctx)
	if err != nil {
		return nil, status.WrapError(status.KindConfig, err, "failed to load runtime config")
	}

	get := func(key, envKey, fallback string) string {
		if v, ok := values[key]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		if envKey != "" {
			if v := os.Getenv(envKey); v != "" {
				return strings.TrimSpace(v)
			}
		}
		return fallback
	}

	cfg := &RuntimeConfig{
		WPBaseURL:        strings.TrimRight(get(KeyWPBaseURL, "WP_BASE_URL", ""), "/"),
		WPUsername:       get(KeyWPUsername, "WP_USERNAME", ""),
		WPAppPassword:    get(KeyWPAppPassword, "WP_APP_PASSWORD", ""),
		WCConsumerKey:    get(KeyWCConsumerKey, "WC_CONSUMER_KEY", ""),
		WCConsumerSecret: get(KeyWCConsumerSecret, "WC_CONSUMER_SECRET", ""),
		ModelName:        get(KeyModelName, "GEMINI_MODEL", "gemini-1.5-flash-latest"),
		CustomPrompt:     get(KeyCustomPrompt, "CUSTOM_PROMPT", DefaultCustomPrompt),
		MetaTitleKey:     get(KeyMetaTitleKey, "META_TITLE_KEY", "yoast_wpseo_title"),
		MetaDescriptionKey: get(KeyMetaDescKey, "META_DESCRIPTION_KEY", "yoast_wpseo_metadesc"),
	}

	cfg.UseExcerptForMetaDescription = parseBool(get(KeyUseExcerpt, "USE_EXCERPT_FOR_META_DESCRIPTION", "true"))

	keysRaw := get(KeyModelAPIKeys, "GEMINI_API_KEYS", "")
	if keysRaw == "" {
		// 単一キー設定との後方互換
		keysRaw = get("gemini_api_key", "GEMINI_API_KEY", "")
	}
	cfg.ModelAPIKeys = ParseLines(keysRaw)

	linksRaw := get(KeyInboundLinks, "", "")
	if linksRaw == "" {
		cfg.InboundLinks = DefaultInboundLinks()
	} else {
		cfg.InboundLinks = ParseLines(linksRaw)
	}

	cfg.PostsPerPage = parseInt(get(KeyPostsPerPage, "", "10"), 10)
	cfg.MaxPages = parseInt(get(KeyMaxPages, "", "30"), 30)
	cfg.BulkItemDelay = time.Duration(parseInt(get(KeyBulkItemDelay, "", "2"), 2)) * time.Second

	for _, raw := range splitCommaOrLines(get(KeyExcludedIDs, "", "")) {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.ExcludedProductIDs = append(cfg.ExcludedProductIDs, id)
		}
	}
	cfg.ExcludedCategories = splitCommaOrLines(get(KeyExcludedCategories, "", ""))
	cfg.ExcludedKeywords = splitCommaOrLines(get(KeyExcludedKeywords, "", ""))

	return cfg, nil
}

// Validate はパイプライン実行に必須の設定が揃っているか検証する
// 欠落は設定エラーとして致命的に扱う（暗黙のスキップはしない）
func (c *RuntimeConfig) Validate() error {
	if c.WPBaseURL == "" || c.WPUsername == "" || c.WPAppPassword == "" {
		return status.NewError(status.KindConfig, "WordPress credentials are not configured")
	}
	if len(c.ModelAPIKeys) == 0 {
		return status.NewError(status.KindConfig, "no model API keys configured")
	}
	if c.MetaTitleKey == "" || c.MetaDescriptionKey == "" {
		return status.NewError(status.KindConfig, "meta key mapping is not configured")
	}
	return nil
}

// ParseLines は改行区切りの設定値を空行を除いたスライスへ変換する
func ParseLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func splitCommaOrLines(raw string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' }) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func parseInt(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
