package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/MikeSquared-Agency/parley/internal/preview"
	"github.com/MikeSquared-Agency/parley/internal/render"
	"github.com/MikeSquared-Agency/parley/internal/segment"
	"github.com/MikeSquared-Agency/parley/internal/store"
)

var (
	codeFrame = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
	codeTitle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true)
	previewTag = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// PreviewNote marks code blocks the web view renders live.
const PreviewNote = "[HTML preview available in the web view]"

type PrinterOptions struct {
	// MarkdownStyle is a glamour standard style name; empty means auto.
	MarkdownStyle string
	// CodeFormatter is a chroma formatter name such as terminal256 or noop.
	CodeFormatter string
	CodeStyle     string
	Width         int
}

// Printer renders replies for a terminal: narrative through glamour, code in
// a highlighted frame.
type Printer struct {
	w     io.Writer
	md    *glamour.TermRenderer
	fmt   chroma.Formatter
	style *chroma.Style
}

func NewPrinter(w io.Writer, opts PrinterOptions) (*Printer, error) {
	if opts.Width <= 0 {
		opts.Width = 80
	}
	mdStyle := glamour.WithAutoStyle()
	if opts.MarkdownStyle != "" {
		mdStyle = glamour.WithStandardStyle(opts.MarkdownStyle)
	}
	md, err := glamour.NewTermRenderer(mdStyle, glamour.WithWordWrap(opts.Width))
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}

	f := formatters.Get(opts.CodeFormatter)
	if f == nil {
		f = formatters.Fallback
	}
	if opts.CodeStyle == "" {
		opts.CodeStyle = "monokai"
	}
	return &Printer{w: w, md: md, fmt: f, style: styles.Get(opts.CodeStyle)}, nil
}

// Reply prints one response segment by segment.
func (p *Printer) Reply(text string) error {
	for _, blk := range preview.Classify(segment.Split(text)) {
		if err := p.block(blk); err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) block(blk preview.Block) error {
	if blk.Kind == segment.Code {
		return p.code(blk)
	}
	return p.narrative(blk.Text)
}

// Live renders a reply while it streams in. Narrative and code are printed
// once the code block that ends them has closed; Finish prints the rest.
type Live struct {
	p       *Printer
	seg     segment.Incremental
	text    strings.Builder
	printed int
}

func (p *Printer) Live() *Live {
	return &Live{p: p}
}

// Feed appends a fragment and prints any blocks it completed.
func (l *Live) Feed(frag string) error {
	l.text.WriteString(frag)
	segs := l.seg.Update(l.text.String())
	settled := 0
	for i, s := range segs {
		if s.Kind == segment.Code {
			settled = i + 1
		}
	}
	return l.print(segs[:settled])
}

// Finish prints whatever is still pending, including an unterminated fence
// as narrative.
func (l *Live) Finish() error {
	return l.print(l.seg.Update(l.text.String()))
}

func (l *Live) print(segs []segment.Segment) error {
	if len(segs) <= l.printed {
		return nil
	}
	for _, blk := range preview.Classify(segs[l.printed:]) {
		if err := l.p.block(blk); err != nil {
			return err
		}
	}
	l.printed = len(segs)
	return nil
}

// Exchange prints a stored prompt and its response.
func (p *Printer) Exchange(c store.Chat) error {
	header := promptStyle.Render("you → ") + c.Prompt
	if !c.CreatedAt.IsZero() {
		header += "  " + dimStyle.Render(c.CreatedAt.Local().Format("Jan 2 15:04"))
	}
	fmt.Fprintln(p.w, header)
	if err := p.Reply(c.Response); err != nil {
		return err
	}
	if c.Truncated {
		fmt.Fprintln(p.w, dimStyle.Render("(reply was interrupted)"))
	}
	fmt.Fprintln(p.w)
	return nil
}

func (p *Printer) narrative(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	out, err := p.md.Render(text)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(p.w, out)
	return err
}

func (p *Printer) code(blk preview.Block) error {
	var hl strings.Builder
	if err := p.highlight(&hl, blk.Language, blk.Code); err != nil {
		return err
	}
	body := codeTitle.Render(blk.Language) + "\n" + strings.TrimRight(hl.String(), "\n")
	fmt.Fprintln(p.w, codeFrame.Render(body))
	if blk.Preview {
		fmt.Fprintln(p.w, previewTag.Render(PreviewNote))
	}
	return nil
}

func (p *Printer) highlight(w io.Writer, language, code string) error {
	it, err := render.LexerFor(language, code).Tokenise(nil, code)
	if err != nil {
		return fmt.Errorf("tokenise %s: %w", language, err)
	}
	return p.fmt.Format(w, p.style, it)
}
