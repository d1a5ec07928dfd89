// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は出品のタイトルと説明からHTMLを取り除き、プレーンテキストにする。
// bluemondayのStrictPolicyで全タグを除去し、script/styleの中身も破棄する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
// 出品作成時に保存前のタイトルと説明に適用される。
type TextSanitizer interface {
	// Sanitize はHTMLタグを全て除去したプレーンテキストを返す。
	// script, styleタグは中身ごと除去する。
	// 文字参照はデコードし、前後の空白は取り除く。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有してよい。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLを除去したプレーンテキストを返す。
// bluemondayの出力はHTMLエスケープされているため、保存用にデコードしてから返す。
// 出力はプレーンテキストであり、表示側で改めてエスケープすること。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
