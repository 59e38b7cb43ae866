package markdown

import (
	"strings"
	"testing"

	"github.com/hitoshi/noteit/internal/security"
)

func newTestRenderer() *Renderer {
	return NewRenderer(security.NewContentSanitizer())
}

func TestRender_BasicMarkdown(t *testing.T) {
	r := newTestRenderer()

	result, err := r.Render("# 見出し\n\n本文の**強調**と*斜体*。")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	for _, want := range []string{"<h1>見出し</h1>", "<strong>強調</strong>", "<em>斜体</em>"} {
		if !strings.Contains(result.HTML, want) {
			t.Errorf("HTML = %q, should contain %q", result.HTML, want)
		}
	}
}

func TestRender_GFMExtensions(t *testing.T) {
	r := newTestRenderer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{
			name:         "テーブル",
			input:        "| 列A | 列B |\n| --- | --- |\n| 1 | 2 |",
			wantContains: []string{"<table>", "<th>列A</th>", "<td>1</td>"},
		},
		{
			name:         "取り消し線",
			input:        "~~削除~~",
			wantContains: []string{"<del>削除</del>"},
		},
		{
			name:         "コードブロックの言語クラス",
			input:        "```go\nfunc main() {}\n```",
			wantContains: []string{"language-go", "func main() {}"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.Render(tt.input)
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(result.HTML, want) {
					t.Errorf("HTML = %q, should contain %q", result.HTML, want)
				}
			}
		})
	}
}

// 埋め込まれた生HTMLのうち危険なものはサニタイザで除去される。
func TestRender_SanitizesEmbeddedHTML(t *testing.T) {
	r := newTestRenderer()

	result, err := r.Render("本文\n\n<script>alert('xss')</script>\n\n<p onclick=\"x()\">段落</p>")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if strings.Contains(result.HTML, "<script") || strings.Contains(result.HTML, "onclick") {
		t.Errorf("dangerous markup survived sanitization: %q", result.HTML)
	}
	if !strings.Contains(result.HTML, "段落") {
		t.Errorf("safe content should survive: %q", result.HTML)
	}
}

func TestRender_WordCountAndReadingTime(t *testing.T) {
	r := newTestRenderer()

	// 単語450個 → 読了時間は切り上げで3分
	content := strings.Repeat("word ", 450)
	result, err := r.Render(content)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if result.WordCount != 450 {
		t.Errorf("expected 450 words, got %d", result.WordCount)
	}
	if result.ReadingTime != 3 {
		t.Errorf("expected reading time 3, got %d", result.ReadingTime)
	}
}

func TestRender_EmptyContent(t *testing.T) {
	r := newTestRenderer()

	result, err := r.Render("")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if result.WordCount != 0 || result.ReadingTime != 0 || result.Excerpt != "" {
		t.Errorf("expected zero-value derivations, got %+v", result)
	}
}

func TestRender_ExcerptTruncation(t *testing.T) {
	r := newTestRenderer()

	// Markdown記法は抜粋から除かれる
	result, err := r.Render("# 見出し\n\n" + strings.Repeat("あ", 400))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if strings.Contains(result.Excerpt, "#") {
		t.Errorf("excerpt should be plain text: %q", result.Excerpt)
	}
	if got := len([]rune(result.Excerpt)); got > 300 {
		t.Errorf("excerpt should be at most 300 runes, got %d", got)
	}
	if !strings.HasPrefix(result.Excerpt, "見出し") {
		t.Errorf("excerpt should start with the heading text: %q", result.Excerpt)
	}
}
