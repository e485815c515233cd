package product

import (
	"regexp"
	"strings"
)

const (
	// BrandName は正規表記のブランド名
	BrandName = "GPLMama"

	// RequiredFooterLink は説明文フッターに必ず含める価格ページへのリンク
	RequiredFooterLink = "https://gplmama.com/pricing/"
)

// bannedWords は生成テキストから取り除く語
var bannedWords = []string{"free", "official"}

// storeKeywords は商品がストア関連かを元タイトルで判定するキーワード
var storeKeywords = []string{
	"wordpress", "woocommerce", "shopify", "plugin", "theme", "template", "elementor",
}

var (
	bannedWordPatterns = func() []*regexp.Regexp {
		patterns := make([]*regexp.Regexp, 0, len(bannedWords))
		for _, w := range bannedWords {
			patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+`\b`))
		}
		return patterns
	}()

	// 誤った組み合わせ表現。WordPress のテーマと Shopify のテーマは別商品で、
	// この並びで書かれたタイトルは常に誤記
	forbiddenComboPattern = regexp.MustCompile(`(?i)wordpress\s+shopify\s+theme`)

	brandMisspellPattern = regexp.MustCompile(`(?i)\bgpl\s*mama\b`)

	htmlTagPattern       = regexp.MustCompile(`<[^>]+>`)
	multiSpacePattern    = regexp.MustCompile(`[ \t]+`)
	nonSlugPattern       = regexp.MustCompile(`[^a-z0-9]+`)
)

// IsStoreRelated は元タイトルがストア関連キーワードを含むか判定する
// ブランド名への言及はストア関連の商品に限って許可される
func IsStoreRelated(originalTitle string) bool {
	lower := strings.ToLower(originalTitle)
	for _, kw := range storeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ContainsBannedWord は禁止語が残っているか判定する
func ContainsBannedWord(s string) bool {
	for _, p := range bannedWordPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// Sanitize は生成テキストへ横断的な整形規則を適用する
// 禁止語の除去、誤った組み合わせ表現の除去、ブランド表記の正規化を行い、
// ストア関連でない商品からはブランドへの言及を取り除く
func Sanitize(s string, storeRelated bool) string {
	s = forbiddenComboPattern.ReplaceAllString(s, "")
	for _, p := range bannedWordPatterns {
		s = p.ReplaceAllString(s, "")
	}
	if storeRelated {
		s = brandMisspellPattern.ReplaceAllString(s, BrandName)
	} else {
		s = brandMisspellPattern.ReplaceAllString(s, "")
	}
	return collapseSpaces(s)
}

// CountWords はHTMLタグを除いた語数を数える
func CountWords(s string) int {
	text := htmlTagPattern.ReplaceAllString(s, " ")
	return len(strings.Fields(text))
}

// slugStopwords はスラッグ生成時に落とす冠詞・前置詞類
var slugStopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "for": {},
	"with": {}, "to": {}, "of": {}, "in": {}, "on": {}, "by": {},
	"at": {}, "from": {}, "is": {}, "your": {},
}

const (
	slugMaxWords = 8
	slugMaxChars = 60
)

// Slugify は確定タイトルからURLセーフなスラッグを導出する
// ストップワードを除去し、最大8語・60文字に収める
func Slugify(title string) string {
	lower := strings.ToLower(title)
	parts := strings.Fields(nonSlugPattern.ReplaceAllString(lower, " "))

	words := make([]string, 0, slugMaxWords)
	for _, w := range parts {
		if _, stop := slugStopwords[w]; stop {
			continue
		}
		words = append(words, w)
		if len(words) == slugMaxWords {
			break
		}
	}

	slug := strings.Join(words, "-")
	for len(slug) > slugMaxChars {
		idx := strings.LastIndex(slug, "-")
		if idx < 0 {
			slug = slug[:slugMaxChars]
			break
		}
		slug = slug[:idx]
	}
	return slug
}

// ClampField は文字数を [minLen, maxLen] へ決定的に収める
// 超過時は語境界で切り詰め、不足時はフィラー語を1語ずつ足す
func ClampField(s string, minLen, maxLen int, filler string) string {
	s = collapseSpaces(s)

	if len(s) > maxLen {
		cut := strings.LastIndex(s[:maxLen+1], " ")
		if cut <= 0 {
			s = s[:maxLen]
		} else {
			s = s[:cut]
		}
		s = strings.TrimRight(s, " ,.-")
	}

	fillerWords := strings.Fields(filler)
	for i := 0; len(s) < minLen && len(fillerWords) > 0; i++ {
		s += " " + fillerWords[i%len(fillerWords)]
	}
	return s
}

// firstLine はモデル出力から最初の非空行を取り出し、囲み引用符を剥がす
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return strings.Trim(line, `"'`)
		}
	}
	return ""
}

func collapseSpaces(s string) string {
	s = multiSpacePattern.ReplaceAllString(s, " ")
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
