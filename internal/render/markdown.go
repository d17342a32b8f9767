package render

import (
	"bytes"
	"html/template"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// InlineLimit is the length at which a code span stops being shown inline.
const InlineLimit = 100

// IsInline reports whether code met inside narrative markdown is shown as an
// inline code element rather than a code block.
func IsInline(code string) bool {
	code = strings.TrimSuffix(code, "\n")
	return !strings.Contains(code, "\n") && utf8.RuneCountInString(code) < InlineLimit
}

func newMarkdown(h *highlighter) goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
			renderer.WithNodeRenderers(util.Prioritized(&codeRenderer{hl: h}, 100)),
		),
	)
}

// codeRenderer replaces goldmark's rendering of code spans and code blocks
// that survive segmentation, e.g. an unterminated fence.
type codeRenderer struct {
	hl *highlighter
}

func (r *codeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindCodeSpan, r.renderCodeSpan)
	reg.Register(ast.KindCodeBlock, r.renderCodeBlock)
	reg.Register(ast.KindFencedCodeBlock, r.renderCodeBlock)
}

func (r *codeRenderer) renderCodeSpan(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
	}
	if err := r.write(w, "", b.String()); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkSkipChildren, nil
}

func (r *codeRenderer) renderCodeBlock(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	var lang string
	if f, ok := n.(*ast.FencedCodeBlock); ok {
		lang = string(f.Language(source))
	}
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	if err := r.write(w, lang, b.String()); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkContinue, nil
}

func (r *codeRenderer) write(w util.BufWriter, lang, code string) error {
	code = strings.TrimSuffix(code, "\n")
	if IsInline(code) {
		return templates.ExecuteTemplate(w, "inline", code)
	}
	var hl bytes.Buffer
	if err := r.hl.highlight(&hl, lang, code); err != nil {
		return err
	}
	return templates.ExecuteTemplate(w, "code", codeView{
		Title:       "Code",
		Language:    lang,
		Highlighted: template.HTML(hl.String()),
	})
}
