// Package preview decides which HTML code blocks get a live rendered preview.
//
// The check is a tag-name heuristic, not an HTML parser. A false positive
// renders an empty or inert preview, which is acceptable.
package preview

import (
	"regexp"

	"github.com/MikeSquared-Agency/parley/internal/segment"
)

// Language is the only code block language that can be previewed.
const Language = "html"

// Tags lists the element names whose start tag makes a block previewable.
var Tags = []string{
	"div", "span", "p", "img", "button",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"svg", "canvas",
	"table", "ul", "ol", "li",
	"section", "article", "header", "footer", "main", "nav",
}

var startTag = regexp.MustCompile(`(?i)<(?:div|span|p|img|button|h[1-6]|svg|canvas|table|ul|ol|li|section|article|header|footer|main|nav)(?:[\s/>]|$)`)

// HasVisibleMarkup reports whether code contains at least one start tag from
// Tags, in any letter case.
func HasVisibleMarkup(code string) bool {
	return startTag.MatchString(code)
}

// NeedsLivePreview is false for anything that is not an html code segment.
func NeedsLivePreview(seg segment.Segment) bool {
	if seg.Kind != segment.Code || seg.Language != Language {
		return false
	}
	return HasVisibleMarkup(seg.Code)
}

// Block is a segment together with its preview verdict.
type Block struct {
	segment.Segment
	Preview bool `json:"preview"`
}

// Classify attaches a verdict to every segment, keeping order.
func Classify(segs []segment.Segment) []Block {
	out := make([]Block, len(segs))
	for i, s := range segs {
		out[i] = Block{Segment: s, Preview: NeedsLivePreview(s)}
	}
	return out
}
