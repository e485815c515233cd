package settings

// DefaultCustomPrompt はサイト文脈を記事へ自然に織り込むための既定の追加指示
const DefaultCustomPrompt = `About GPLMama (site context):
GPLMama is Bangladesh's affordable hub for premium digital assets. We offer lifetime access to 2,200+ assets for a one-time fee of BDT 149 and give 5 free downloads to new users. The library includes popular WordPress themes, plugins, WooCommerce plugins, and Shopify themes. Files are original and unmodified. New files are added regularly. The GPL model is legal and safe. We support freelancers, small businesses, and agencies. There is a commercial license for client work and resale. Local support and video guides are available.

When relevant, weave this context into the post naturally and professionally. Do not oversell. Keep claims factual and grounded.`

// defaultInboundLinks は内部リンク候補の既定リスト
// 記事生成時にここからランダムに2件が選ばれる
var defaultInboundLinks = []string{
	"http://www.youtube.com/channel/UC55QaSgNnXS8wKU0AA-G0Zw?sub_confirmation=1",
	"https://gplmama.com/category/wordpress-themes/",
	"https://gplmama.com/category/wordpress-plugins/",
	"https://gplmama.com/category/woocommerce-plugin/",
	"https://gplmama.com/category/shopify-themes/",
	"https://gplmama.com/category/web-design/",
	"https://facebook.com/gplmama",
	"https://pinterest.com/gplmama",
	"https://www.youtube.com/@gplmama",
	"https://wa.me/01962351470",
	"https://gplmama.com/request-a-quote/",
	"https://gplmama.com/changelog/",
	"https://gplmama.com/pricing/",
	"https://gplmama.com/membership/",
}

// DefaultInboundLinks は既定の内部リンクリストのコピーを返す
func DefaultInboundLinks() []string {
	out := make([]string, len(defaultInboundLinks))
	copy(out, defaultInboundLinks)
	return out
}
