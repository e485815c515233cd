package product

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsStoreRelated(t *testing.T) {
	assert.True(t, IsStoreRelated("Astra Pro WordPress Theme"))
	assert.True(t, IsStoreRelated("Checkout Plugin for WooCommerce"))
	assert.True(t, IsStoreRelated("Elementor Pro Page Builder"))
	assert.False(t, IsStoreRelated("Cooking Recipes Ebook Collection"))
}

func TestSanitizeStripsBannedWords(t *testing.T) {
	out := Sanitize("Free Astra Pro Official Theme Download", true)
	assert.NotContains(t, strings.ToLower(out), "free")
	assert.NotContains(t, strings.ToLower(out), "official")
	assert.Contains(t, out, "Astra Pro")

	// 語中の一致は残す（"freedom" は禁止語ではない)
	assert.Contains(t, Sanitize("Freedom Planner Template", true), "Freedom")
}

func TestSanitizeRemovesForbiddenCombination(t *testing.T) {
	out := Sanitize("Divi WordPress Shopify Theme Bundle", true)
	assert.NotContains(t, strings.ToLower(out), "wordpress shopify theme")
	assert.Contains(t, out, "Divi")
	assert.Contains(t, out, "Bundle")
}

func TestSanitizeNormalizesBrand(t *testing.T) {
	assert.Equal(t, "Buy from GPLMama today", Sanitize("Buy from GPL Mama today", true))
	assert.Equal(t, "GPLMama catalog", Sanitize("gplmama catalog", true))
}

func TestSanitizeStripsBrandWhenNotStoreRelated(t *testing.T) {
	out := Sanitize("Cooking Ebook by GPL Mama", false)
	assert.NotContains(t, strings.ToLower(out), "gplmama")
	assert.NotContains(t, strings.ToLower(out), "gpl mama")
	assert.Contains(t, out, "Cooking Ebook")
}

func TestContainsBannedWord(t *testing.T) {
	assert.True(t, ContainsBannedWord("Get it FREE today"))
	assert.True(t, ContainsBannedWord("the official release"))
	assert.False(t, ContainsBannedWord("freedom and officialdom"))
}

func TestCountWordsIgnoresMarkup(t *testing.T) {
	assert.Equal(t, 5, CountWords("<p>one two</p><ul><li>three four five</li></ul>"))
	assert.Equal(t, 0, CountWords("<p></p>"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "astra-pro-wordpress-theme-lifetime-updates",
		Slugify("Astra Pro for the WordPress Theme with Lifetime Updates"))

	// 最大8語
	slug := Slugify("one two three four five six seven eight nine ten")
	assert.Equal(t, "one-two-three-four-five-six-seven-eight", slug)

	// 60文字上限は語境界で切る
	long := Slugify("extraordinarily comprehensive multipurpose ecommerce membership subscription management")
	assert.LessOrEqual(t, len(long), 60)
	assert.False(t, strings.HasSuffix(long, "-"))

	assert.Equal(t, "", Slugify("the and of"))
}

func TestClampField(t *testing.T) {
	// 超過時は語境界で切り詰める
	out := ClampField("one two three four five six seven", 5, 13, "filler")
	assert.LessOrEqual(t, len(out), 13)
	assert.GreaterOrEqual(t, len(out), 5)
	assert.False(t, strings.HasSuffix(out, " "))

	// 不足時はフィラーを足す
	out = ClampField("hi", 10, 30, "premium download")
	assert.GreaterOrEqual(t, len(out), 10)
	assert.LessOrEqual(t, len(out), 30)
	assert.True(t, strings.HasPrefix(out, "hi "))

	// 範囲内はそのまま
	assert.Equal(t, "just right", ClampField("just right", 5, 20, "filler"))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Astra Pro Theme", firstLine("\n  \"Astra Pro Theme\"  \nsecond line"))
	assert.Equal(t, "", firstLine("   \n\n"))
}
