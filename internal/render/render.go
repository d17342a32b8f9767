// Package render turns a model response into HTML. Narrative text goes
// through markdown, code blocks are highlighted, and previewable HTML blocks
// additionally get a sandboxed live preview.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/MikeSquared-Agency/parley/internal/preview"
	"github.com/MikeSquared-Agency/parley/internal/segment"
)

// PreviewFilename is offered when a preview is downloaded.
const PreviewFilename = "preview.html"

// Renderer is safe for concurrent use.
type Renderer struct {
	hl     *highlighter
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// Result is a rendered response plus the segments it was built from.
type Result struct {
	HTML     template.HTML   `json:"html"`
	Segments []preview.Block `json:"segments"`
}

func New() *Renderer {
	return NewWithStyle(DefaultStyle)
}

func NewWithStyle(style string) *Renderer {
	hl := newHighlighter(style)
	return &Renderer{
		hl:     hl,
		md:     newMarkdown(hl),
		policy: narrativePolicy(),
	}
}

// narrativePolicy allows the markup goldmark and the code renderer produce,
// plus inline styling and classes from raw HTML in the response. Scripts,
// frames and event handlers are stripped.
func narrativePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowStyling()
	p.AllowAttrs("style").Globally()
	p.AllowDataAttributes()
	p.AllowElements("div", "span", "pre", "code", "del")
	p.AllowAttrs("type", "title").OnElements("button")
	return p
}

// Render segments text and renders every segment in order.
func (r *Renderer) Render(text string) (Result, error) {
	blocks := preview.Classify(segment.Split(text))
	var b bytes.Buffer
	if err := r.Blocks(&b, blocks); err != nil {
		return Result{}, err
	}
	return Result{HTML: template.HTML(b.String()), Segments: blocks}, nil
}

// Blocks writes already classified segments.
func (r *Renderer) Blocks(w io.Writer, blocks []preview.Block) error {
	for i, blk := range blocks {
		var err error
		switch blk.Kind {
		case segment.Narrative:
			err = r.Narrative(w, blk.Text)
		case segment.Code:
			err = r.Code(w, blk.Language, blk.Code)
			if err == nil && blk.Preview {
				err = r.Preview(w, blk.Code)
			}
		}
		if err != nil {
			return fmt.Errorf("render block %d: %w", i, err)
		}
	}
	return nil
}

// Narrative renders markdown. Blank input writes nothing.
func (r *Renderer) Narrative(w io.Writer, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var md bytes.Buffer
	if err := r.md.Convert([]byte(text), &md); err != nil {
		return fmt.Errorf("convert markdown: %w", err)
	}
	clean := r.policy.SanitizeBytes(md.Bytes())
	return templates.ExecuteTemplate(w, "narrative", template.HTML(clean))
}

// Code writes a titled, highlighted code block with a copy button.
func (r *Renderer) Code(w io.Writer, language, code string) error {
	var hl bytes.Buffer
	if err := r.hl.highlight(&hl, language, code); err != nil {
		return err
	}
	return templates.ExecuteTemplate(w, "code", codeView{
		Title:       language,
		Language:    language,
		Highlighted: template.HTML(hl.String()),
	})
}

// Preview writes a sandboxed iframe showing code as a document, with copy
// and download links.
func (r *Renderer) Preview(w io.Writer, code string) error {
	return templates.ExecuteTemplate(w, "preview", previewView{
		Code:     code,
		Download: DownloadURL(code),
	})
}

// CSS writes the stylesheet for highlighted code.
func (r *Renderer) CSS(w io.Writer) error {
	return r.hl.css(w)
}

// DownloadURL encodes code as a data URL of type text/html.
func DownloadURL(code string) template.URL {
	return template.URL("data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(code)))
}
