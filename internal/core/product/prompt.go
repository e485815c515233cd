package product

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
)

const (
	titleMinChars = 50
	titleMaxChars = 60

	// 本文とフッターを合わせた最終語数の許容範囲
	descriptionMinWords = 300
	descriptionMaxWords = 400

	metaTitleMinChars = 50
	metaTitleMaxChars = 60
	metaDescMinChars  = 140
	metaDescMaxChars  = 160
)

// descriptionFooter は説明文の末尾に決定的に付加する定型ブロック
// モデルには生成させない。必須リンクはここから供給される
const descriptionFooter = `<p>Looking for premium WordPress themes and plugins at a fraction of the cost? ` +
	`Browse our full catalog of GPL-licensed products, download instantly, and keep every site you build up to date. ` +
	`See current plans and pricing at <a href="` + RequiredFooterLink + `">GPLMama pricing</a>.</p>`

func buildTitlePrompt(originalTitle string) string {
	return strings.TrimSpace(fmt.Sprintf(`
Rewrite this product title for an online store selling digital products.

Original title: %s

Rules:
- Between %d and %d characters.
- Do not use the words "free" or "official".
- Keep the product name and version recognizable.
- Plain text only. No quotes, no emojis.

Return only the new title, nothing else.`, originalTitle, titleMinChars, titleMaxChars))
}

// buildTitleCorrectionPrompt は直前の値とその長さを引用して修正を求める
func buildTitleCorrectionPrompt(originalTitle, lastValue string) string {
	return strings.TrimSpace(fmt.Sprintf(`
Your previous title was %d characters long: "%s"

It must be between %d and %d characters and must not contain the words "free" or "official".
The original product title is: %s

Return only the corrected title, nothing else.`,
		len(lastValue), lastValue, titleMinChars, titleMaxChars, originalTitle))
}

func buildDescriptionPrompt(title string) string {
	return strings.TrimSpace(fmt.Sprintf(`
Write a product description for an online store.

Product: %s

Rules:
- Between %d and %d words.
- Use simple HTML: <p>, <ul>, <li>, <h3> only.
- Describe what the product does, its main features, and who it is for.
- Do not use the words "free" or "official".
- Do not add any links, calls to action, or promotional closing paragraph.
  A standard footer is appended separately.

Return only the HTML body, nothing else.`, title, bodyMinWords(), bodyMaxWords()))
}

func buildDescriptionCorrectionPrompt(title, lastBody string, assembledWords int) string {
	return strings.TrimSpace(fmt.Sprintf(`
Your previous description came to %d words after the standard footer was appended.
The final description must land between %d and %d words, so the body alone must be
between %d and %d words.

Product: %s

Your previous body:
%s

Return only the adjusted HTML body, nothing else.`,
		assembledWords, descriptionMinWords, descriptionMaxWords,
		bodyMinWords(), bodyMaxWords(), title, lastBody))
}

func bodyMinWords() int { return descriptionMinWords - footerWordCount }
func bodyMaxWords() int { return descriptionMaxWords - footerWordCount }

// footerWordCount はフッター定型文の語数（定数フッターなので固定値）
var footerWordCount = CountWords(descriptionFooter)

func buildSEOPrompt(title string) string {
	return strings.TrimSpace(fmt.Sprintf(`
Generate SEO metadata for this product page.

Product: %s

Return only valid JSON with these keys:
- meta_title (%d to %d characters)
- meta_description (%d to %d characters)
- focus_keyword (2 to 4 words)`,
		title, metaTitleMinChars, metaTitleMaxChars, metaDescMinChars, metaDescMaxChars))
}

// seoPayload はSEOプロンプト応答の構造化ペイロード
type seoPayload struct {
	MetaTitle       string `json:"meta_title"`
	MetaDescription string `json:"meta_description"`
	FocusKeyword    string `json:"focus_keyword"`
}

var seoJSONPattern = regexp.MustCompile(`(?s)\{.*\}`)

func extractSEOPayload(text string) (seoPayload, error) {
	match := seoJSONPattern.FindString(text)
	if match == "" {
		return seoPayload{}, status.NewError(status.KindBadOutput, "no JSON object found in SEO response")
	}
	var payload seoPayload
	if err := json.Unmarshal([]byte(match), &payload); err != nil {
		return seoPayload{}, status.WrapError(status.KindBadOutput, err, "SEO response is not valid JSON")
	}
	payload.MetaTitle = strings.TrimSpace(payload.MetaTitle)
	payload.MetaDescription = strings.TrimSpace(payload.MetaDescription)
	payload.FocusKeyword = strings.TrimSpace(payload.FocusKeyword)
	return payload, nil
}
