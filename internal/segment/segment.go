// Package segment splits model output into narrative text and fenced code
// blocks. It is safe to run on a stream buffer that is still growing: a code
// block is only produced once its closing fence has arrived.
package segment

import (
	"fmt"
	"strings"
)

const (
	fence           = "```"
	defaultLanguage = "text"
)

type Kind int

const (
	Narrative Kind = iota
	Code
)

func (k Kind) String() string {
	switch k {
	case Narrative:
		return "narrative"
	case Code:
		return "code"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Segment is one ordered piece of a response. Raw is the verbatim source
// span [Start, End). For narrative segments Text is Raw with blank-line runs
// collapsed; for code segments Language and Code are set.
type Segment struct {
	Kind     Kind   `json:"kind"`
	Text     string `json:"text,omitempty"`
	Language string `json:"language,omitempty"`
	Code     string `json:"code,omitempty"`
	Raw      string `json:"-"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

// Split segments text from the beginning.
func Split(text string) []Segment {
	return scan(text, 0)
}

// Blocks returns only the code segments of segs.
func Blocks(segs []Segment) []Segment {
	var out []Segment
	for _, s := range segs {
		if s.Kind == Code {
			out = append(out, s)
		}
	}
	return out
}

// Join concatenates segments back into text: normalised narrative and raw
// code spans.
func Join(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Kind == Code {
			b.WriteString(s.Raw)
		} else {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// Normalize collapses every run of three or more newlines into two.
func Normalize(text string) string {
	if !strings.Contains(text, "\n\n\n") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	run := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\n' {
			run++
			if run > 2 {
				continue
			}
		} else {
			run = 0
		}
		b.WriteByte(c)
	}
	return b.String()
}

// scan walks src from offset from with two states: outside a fence, looking
// for an opening, and inside one, looking for its close. An opening without a
// close leaves the remainder as narrative.
func scan(src string, from int) []Segment {
	var segs []Segment
	narrativeStart := from
	pos := from

	for pos < len(src) {
		i := strings.Index(src[pos:], fence)
		if i < 0 {
			break
		}
		open := pos + i

		lang, body, ok := openFence(src, open)
		if !ok {
			pos = open + 1
			continue
		}

		j := strings.Index(src[body:], fence)
		if j < 0 {
			break
		}
		closeAt := body + j
		end := closeAt + len(fence)

		if open > narrativeStart {
			segs = append(segs, narrative(src, narrativeStart, open))
		}
		segs = append(segs, Segment{
			Kind:     Code,
			Language: lang,
			Code:     strings.TrimSpace(src[body:closeAt]),
			Raw:      src[open:end],
			Start:    open,
			End:      end,
		})
		narrativeStart = end
		pos = end
	}

	if narrativeStart < len(src) {
		segs = append(segs, narrative(src, narrativeStart, len(src)))
	}
	return segs
}

// openFence checks whether the fence at src[open:] opens a block: the tag
// runs to the first whitespace or backtick and must be followed by optional
// blanks and a newline. It returns the lowercased tag and the offset where
// the body starts.
func openFence(src string, open int) (lang string, body int, ok bool) {
	p := open + len(fence)
	tagStart := p
	for p < len(src) && !isSpace(src[p]) && src[p] != '`' {
		p++
	}
	lang = strings.ToLower(src[tagStart:p])
	for p < len(src) && (src[p] == ' ' || src[p] == '\t' || src[p] == '\r') {
		p++
	}
	if p >= len(src) || src[p] != '\n' {
		return "", 0, false
	}
	if lang == "" {
		lang = defaultLanguage
	}
	return lang, p + 1, true
}

func narrative(src string, start, end int) Segment {
	raw := src[start:end]
	return Segment{
		Kind:  Narrative,
		Text:  Normalize(raw),
		Raw:   raw,
		Start: start,
		End:   end,
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
