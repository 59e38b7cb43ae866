// Package markdown はノート本文のMarkdownレンダリングと派生情報の算出を提供する。
package markdown

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"

	"github.com/hitoshi/noteit/internal/security"
)

// 派生情報の算出パラメータ。
const (
	// excerptLength は抜粋の最大文字数（rune単位）。
	excerptLength = 300
	// wordsPerMinute は読了時間の推定に使用する1分あたりの単語数。
	wordsPerMinute = 200
)

// RenderResult はMarkdownレンダリングの結果と派生情報。
type RenderResult struct {
	// HTML はサニタイズ済みのレンダリング結果。
	HTML string
	// Excerpt は本文プレーンテキストの先頭抜粋。
	Excerpt string
	// WordCount はプレーンテキストの単語数。
	WordCount int
	// ReadingTime は分単位の推定読了時間。
	ReadingTime int
}

// RendererService はMarkdownレンダリングのインターフェースを定義する。
type RendererService interface {
	// Render はMarkdown本文をサニタイズ済みHTMLに変換し、
	// 抜粋・単語数・読了時間を算出する。
	Render(content string) (*RenderResult, error)
}

// Renderer はgoldmarkを使用したRendererServiceの実装。
// GFM拡張（テーブル、取り消し線、タスクリスト、自動リンク）を有効にする。
// goldmarkの出力はそのまま信用せず、必ずサニタイザを通してから返す。
type Renderer struct {
	md        goldmark.Markdown
	sanitizer security.ContentSanitizerService
}

// NewRenderer はRendererを生成する。
func NewRenderer(sanitizer security.ContentSanitizerService) *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		// 生HTMLの通過を許可する。危険なタグは後段のサニタイザが除去する。
		goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
	)
	return &Renderer{
		md:        md,
		sanitizer: sanitizer,
	}
}

// Render はMarkdown本文をサニタイズ済みHTMLに変換し、派生情報を算出する。
func (r *Renderer) Render(content string) (*RenderResult, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}

	sanitized := r.sanitizer.Sanitize(buf.String())
	plain := extractPlainText(sanitized)
	wordCount := len(strings.Fields(plain))

	return &RenderResult{
		HTML:        sanitized,
		Excerpt:     truncateRunes(plain, excerptLength),
		WordCount:   wordCount,
		ReadingTime: readingTime(wordCount),
	}, nil
}

// extractPlainText はHTMLからテキストノードのみを抽出し、空白を正規化する。
func extractPlainText(htmlContent string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlContent))
	var b strings.Builder
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			b.Write(tokenizer.Text())
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// truncateRunes は文字列をrune単位で最大length文字に切り詰める。
func truncateRunes(s string, length int) string {
	runes := []rune(s)
	if len(runes) <= length {
		return s
	}
	return string(runes[:length])
}

// readingTime は単語数から分単位の読了時間を推定する。
func readingTime(wordCount int) int {
	return int(math.Ceil(float64(wordCount) / wordsPerMinute))
}

// compile-time interface check
var _ RendererService = (*Renderer)(nil)
