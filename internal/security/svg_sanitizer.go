// Package security はアプリケーションのセキュリティ機能を提供する。
//
// SVGSanitizerService はアップロードされたSVGをサニタイズし、
// 埋め込まれたスクリプトによるXSSからユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 描画に必要な要素と属性のみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// SVGSanitizerService はSVGコンテンツのサニタイズ機能のインターフェースを定義する。
// ストレージへの書き込み前に使用される。
type SVGSanitizerService interface {
	// Sanitize はSVGバイト列をサニタイズして安全なバイト列を返す。
	// script要素・foreignObject要素およびon*イベント属性を除去する。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw []byte) []byte
}

// svgSanitizer はSVGSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type svgSanitizer struct {
	policy *bluemonday.Policy
}

// NewSVGSanitizer はSVGSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可要素: svg, g, path, circle, ellipse, rect, line, polyline, polygon,
//     text, tspan, defs, use, symbol, lineargradient, radialgradient, stop,
//     clippath, mask, pattern, title, desc
//   - 禁止: script, foreignObject および全てのon*イベント属性
//     （許可リストに含めないことで自動的に除去される）
func NewSVGSanitizer() *svgSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"svg", "g", "path", "circle", "ellipse", "rect",
		"line", "polyline", "polygon", "text", "tspan",
		"defs", "use", "symbol",
		"lineargradient", "radialgradient", "stop",
		"clippath", "mask", "pattern", "title", "desc",
	)

	// SVGのコンテナ要素（defs, g等）は属性を持たないことが多い。
	// bluemondayは属性なしの許可はHTML標準要素にしか適用しないため、
	// 明示的に属性なしでの出現を許可する。
	p.AllowNoAttrs().OnElements(
		"svg", "g", "path", "circle", "ellipse", "rect",
		"line", "polyline", "polygon", "text", "tspan",
		"defs", "use", "symbol",
		"lineargradient", "radialgradient", "stop",
		"clippath", "mask", "pattern", "title", "desc",
	)

	// 描画用属性のみ許可する。hrefはuse要素の内部参照（#id）に必要だが、
	// 外部URLの読み込みを防ぐためスキーム付きURLは通さない。
	p.AllowAttrs(
		"id", "class", "viewbox", "xmlns", "width", "height",
		"x", "y", "x1", "y1", "x2", "y2", "cx", "cy", "r", "rx", "ry",
		"d", "points", "transform", "offset",
		"fill", "fill-rule", "fill-opacity", "stroke", "stroke-width",
		"stroke-linecap", "stroke-linejoin", "stroke-dasharray",
		"stroke-opacity", "opacity", "clip-path", "clip-rule",
		"font-family", "font-size", "font-weight", "text-anchor",
		"gradientunits", "gradienttransform", "stop-color", "stop-opacity",
		"preserveaspectratio",
	).Globally()

	return &svgSanitizer{policy: p}
}

// Sanitize はSVGバイト列をサニタイズして安全なバイト列を返す。
func (s *svgSanitizer) Sanitize(raw []byte) []byte {
	return s.policy.SanitizeBytes(raw)
}
