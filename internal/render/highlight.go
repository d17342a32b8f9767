package render

import (
	"fmt"
	"io"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultStyle is the chroma style used for the stylesheet.
const DefaultStyle = "monokai"

type highlighter struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

func newHighlighter(style string) *highlighter {
	return &highlighter{
		style:     styles.Get(style),
		formatter: chromahtml.New(chromahtml.WithClasses(true), chromahtml.TabWidth(4)),
	}
}

// LexerFor picks a lexer by name and falls back to content analysis, then
// plain text.
func LexerFor(language, code string) chroma.Lexer {
	l := lexers.Get(language)
	if l == nil {
		l = lexers.Analyse(code)
	}
	if l == nil {
		l = lexers.Fallback
	}
	return chroma.Coalesce(l)
}

func (h *highlighter) highlight(w io.Writer, language, code string) error {
	it, err := LexerFor(language, code).Tokenise(nil, code)
	if err != nil {
		return fmt.Errorf("tokenise %s: %w", language, err)
	}
	if err := h.formatter.Format(w, h.style, it); err != nil {
		return fmt.Errorf("format %s: %w", language, err)
	}
	return nil
}

func (h *highlighter) css(w io.Writer) error {
	return h.formatter.WriteCSS(w, h.style)
}
