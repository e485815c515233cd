package post

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
)

// Payload は記事生成応答から抽出する構造化ペイロード
type Payload struct {
	ContentHTML     string
	MetaTitle       string
	MetaDescription string
	Tags            []string
}

// HasAllMetadata は必須メタデータが全て揃っているか判定する
func (p Payload) HasAllMetadata() bool {
	return p.MetaTitle != "" && p.MetaDescription != "" && len(p.Tags) > 0
}

// MergeMissing は欠けているフィールドのみを other から補う
func (p *Payload) MergeMissing(other Payload) {
	if p.MetaTitle == "" {
		p.MetaTitle = other.MetaTitle
	}
	if p.MetaDescription == "" {
		p.MetaDescription = other.MetaDescription
	}
	if len(other.Tags) > 0 {
		p.Tags = other.Tags
	}
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// rawPayload はモデル出力のゆるいスキーマ
// tags は文字列配列のことも、カンマ区切り文字列のこともある
type rawPayload struct {
	ContentHTML     string          `json:"content_html"`
	MetaTitle       string          `json:"meta_title"`
	MetaDescription string          `json:"meta_description"`
	Tags            json.RawMessage `json:"tags"`
}

// ExtractPayload はモデル応答テキストから構造化ペイロードを抽出する
// 応答中の最初のJSONオブジェクトを厳密スキーマで解釈し、
// 失敗時は bad_output 分類のエラーを返す（呼び出し側が修復プロンプトを発行する）
func ExtractPayload(text string) (Payload, error) {
	match := jsonObjectPattern.FindString(text)
	if match == "" {
		return Payload{}, status.NewError(status.KindBadOutput, "no JSON object found in model response")
	}

	var raw rawPayload
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return Payload{}, status.WrapError(status.KindBadOutput, err, "model response is not valid JSON")
	}

	payload := Payload{
		ContentHTML:     strings.TrimSpace(raw.ContentHTML),
		MetaTitle:       strings.TrimSpace(raw.MetaTitle),
		MetaDescription: strings.TrimSpace(raw.MetaDescription),
		Tags:            parseTags(raw.Tags),
	}
	return payload, nil
}

// parseTags は配列形式とカンマ区切り文字列の両方を受け付ける
func parseTags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var asList []string
	if err := json.Unmarshal(raw, &asList); err == nil {
		return cleanTags(asList)
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return cleanTags(strings.Split(asString, ","))
	}

	return nil
}

func cleanTags(tags []string) []string {
	var out []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
