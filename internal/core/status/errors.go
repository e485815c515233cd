package status

import (
	"errors"
	"fmt"
)

// Kind はエラーの分類タグ
// ステータス表示を簡潔に保つため、保存時はこの短縮コードに圧縮する
type Kind string

const (
	// KindNetwork は一時的なネットワーク/HTTP障害（呼び出し側がリトライする）
	KindNetwork Kind = "network"

	// KindQuota はクォータ/レート制限の枯渇
	KindQuota Kind = "quota"

	// KindBadOutput はモデル出力が構造化ペイロードとして解釈できない
	KindBadOutput Kind = "bad_output"

	// KindValidation はフィールド長・内容ルールの検証失敗
	KindValidation Kind = "validation"

	// KindConfig は認証情報やメタキー設定の欠落（致命的、運用者に通知）
	KindConfig Kind = "config"

	// KindVerify は永続化後のメタ検証失敗（partial に降格、致命的ではない）
	KindVerify Kind = "verify"

	// KindInternal は上記に分類されない予期しないエラー
	KindInternal Kind = "internal"
)

// Error は分類タグ付きのエラー
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError は分類タグ付きエラーを作成する
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError は既存のエラーに分類タグを付与する
func WrapError(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf はエラーの分類を返す（未分類は internal）
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindInternal
}

// CompactError はエラーをステータス保存用の短縮コードに圧縮する
// 詳細なメッセージはログにのみ残す
func CompactError(err error) string {
	if err == nil {
		return ""
	}
	return string(KindOf(err))
}
