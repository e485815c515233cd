package post

import (
	"html"
	"math/rand"
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// StripHTML はHTMLタグを除去したテキストを返す
func StripHTML(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

// IsEmptyContent は本文が実質的に空か判定する
// タグと空白をすべて取り除いた結果が空なら true
func IsEmptyContent(contentHTML string) bool {
	text := StripHTML(contentHTML)
	text = whitespacePattern.ReplaceAllString(text, "")
	return text == ""
}

// NormalizeTitle はレンダリング済みタイトルからタグとHTML実体参照を取り除く
func NormalizeTitle(titleHTML string) string {
	return html.UnescapeString(StripHTML(titleHTML))
}

// NormalizeTagName はタグ名の空白を正規化し80文字に丸める
func NormalizeTagName(tag string) string {
	cleaned := strings.TrimSpace(whitespacePattern.ReplaceAllString(tag, " "))
	if len(cleaned) > 80 {
		cleaned = cleaned[:80]
	}
	return cleaned
}

// PickInboundLinks は内部リンク候補から最大 count 件をランダムに選ぶ
func PickInboundLinks(links []string, count int) []string {
	if count > len(links) {
		count = len(links)
	}
	perm := rand.Perm(len(links))
	out := make([]string, 0, count)
	for _, idx := range perm[:count] {
		out = append(out, links[idx])
	}
	return out
}
