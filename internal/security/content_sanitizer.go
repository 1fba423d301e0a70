// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ResponseSanitizerService はLLMの応答テキストをサニタイズし、
// ブラウザクライアントでそのまま描画された場合のXSSリスクからユーザーを保護する。
// モデル出力にはプロンプトインジェクション経由で任意のHTMLが混入しうるため、
// bluemondayの許可リストベースのポリシーで危険なタグと属性を除去してから
// 台帳への保存とクライアントへの返却を行う。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ResponseSanitizerService はLLM応答のサニタイズ機能のインターフェースを定義する。
// チャット応答の保存前に使用される。
type ResponseSanitizerService interface {
	// Sanitize は応答テキストをサニタイズして返す。
	// Markdown描画で意味を持つ整形タグ（p, br, ul, ol, li, blockquote,
	// pre, code, strong, em）のみを通過させ、script, iframe, styleタグ
	// およびon*イベント属性を除去する。
	// プレーンテキストはそのまま通過する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(text string) string
}

// responseSanitizer はResponseSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type responseSanitizer struct {
	policy *bluemonday.Policy
}

// NewResponseSanitizer はResponseSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: p, br, ul, ol, li, blockquote, pre, code, strong, em
//   - 禁止タグ: script, iframe, style および全てのon*イベント属性
//   - リンクと画像は許可しない（チャットUIはMarkdownリンクを自前で描画する）
func NewResponseSanitizer() *responseSanitizer {
	p := bluemonday.NewPolicy()

	// 許可リストに含めないタグは自動的に除去される
	// on*イベント属性はbluemondayのデフォルトで許可されないため除去される
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	return &responseSanitizer{
		policy: p,
	}
}

// Sanitize は応答テキストをサニタイズして返す。
func (s *responseSanitizer) Sanitize(text string) string {
	return s.policy.Sanitize(text)
}
