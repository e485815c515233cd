package post

import (
	"fmt"
	"regexp"
	"strings"
)

// BuildPrompt は記事生成プロンプトを組み立てる
// タイトル・内部リンク候補・カスタム指示から構成され、
// 出力は必須キーを持つJSONのみを要求する
func BuildPrompt(title string, inboundLinks []string, customPrompt string) string {
	var inbound strings.Builder
	for _, link := range inboundLinks {
		inbound.WriteString("- ")
		inbound.WriteString(link)
		inbound.WriteString("\n")
	}

	customText := ""
	if customPrompt != "" {
		customText = fmt.Sprintf("\nAdditional instructions:\n%s\n",
			strings.ReplaceAll(customPrompt, "{title}", title))
	}

	return strings.TrimSpace(fmt.Sprintf(`
You are writing a professional blog post.

Topic: %s

Rules:
- 1900 to 2200 words.
- Use plain language and short sentences.
- No hype, no buzzwords, no cliches.
- No special characters or emojis.
- Do not use headings like Conclusion or Final thoughts.
- Start with a short intro paragraph, not a title heading.
- Do not include any H1 heading.
- Keep tone natural, helpful, and human.
- Stay on topic and do not add unrelated content.
- Use clear H2 and H3 structure.
- Show evidence of research with specific, accurate details about the topic.
- Make the content valuable and practical for the reader.
- Make my role clear in the narrative (the brand/operator behind the site) without overpromising.
- Ensure each post is distinct in structure and examples, even with similar topics.
- Use lists where helpful.
- Do not show raw URLs as text. Use anchor text for all links.

Internal workflow:
- Derive 10 questions a writer would ask to make this unique.
- Answer those questions inside the post content without showing them.

Links:
- Include exactly 4 outbound links to reputable, live sources.
- Include exactly 2 inbound links from this list:
%s
SEO:
- Provide a meta title (50-60 chars).
- Provide a meta description (140-160 chars).
- Provide 5 to 8 tags.

Output format:
Return only valid JSON with these keys:
- content_html
- meta_title
- meta_description
- tags (array of strings)
%s`, title, inbound.String(), customText))
}

var summaryWhitespace = regexp.MustCompile(`\s+`)

// BuildMetadataPrompt はメタデータのみを再取得するための補助プロンプトを組み立てる
// 本文の先頭1200文字を要約コンテキストとして添える
func BuildMetadataPrompt(title, contentHTML string) string {
	summary := summaryWhitespace.ReplaceAllString(StripHTML(contentHTML), " ")
	summary = strings.TrimSpace(summary)
	if len(summary) > 1200 {
		summary = summary[:1200]
	}

	return strings.TrimSpace(fmt.Sprintf(`
You are preparing SEO metadata for this blog post.

Title: %s
Content summary: %s

Rules:
- Meta title 50 to 60 characters.
- Meta description 140 to 160 characters.
- 5 to 8 short tags, no hashtags.

Output format:
Return only valid JSON with these keys:
- meta_title
- meta_description
- tags (array of strings)`, title, summary))
}

// BuildRepairPrompt は不正なJSONを返したモデルに修正を依頼するプロンプトを組み立てる
func BuildRepairPrompt(basePrompt, badResponse string) string {
	return strings.TrimSpace(fmt.Sprintf(`
You returned invalid JSON. Fix it.

Original instructions:
%s

Your previous response:
%s

Return only valid JSON with the required keys.`, basePrompt, badResponse))
}
