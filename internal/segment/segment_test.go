package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "Here is a button:\n\n```html\n<button style=\"color:red\">Go</button>\n```\n\n\n\nAnd some Go:\n```go\nfmt.Println(\"hi\")\n```\nDone."

func TestSplit_ExtractsBlocksInOrder(t *testing.T) {
	segs := Split(sample)

	require.Len(t, segs, 5)
	assert.Equal(t, Narrative, segs[0].Kind)
	assert.Equal(t, "Here is a button:\n\n", segs[0].Text)

	assert.Equal(t, Code, segs[1].Kind)
	assert.Equal(t, "html", segs[1].Language)
	assert.Equal(t, `<button style="color:red">Go</button>`, segs[1].Code)

	assert.Equal(t, Narrative, segs[2].Kind)
	assert.Equal(t, "\n\nAnd some Go:\n", segs[2].Text, "four newlines collapse to two")

	assert.Equal(t, "go", segs[3].Language)
	assert.Equal(t, `fmt.Println("hi")`, segs[3].Code)
	assert.Equal(t, "\nDone.", segs[4].Text)
}

func TestSplit_RawSpansAreVerbatimAndContiguous(t *testing.T) {
	segs := Split(sample)

	pos := 0
	var raw strings.Builder
	for _, s := range segs {
		assert.Equal(t, pos, s.Start, "segments must be contiguous")
		assert.Equal(t, sample[s.Start:s.End], s.Raw)
		raw.WriteString(s.Raw)
		pos = s.End
	}
	assert.Equal(t, len(sample), pos)
	assert.Equal(t, sample, raw.String())
	assert.Equal(t, Normalize(sample), Join(segs))
}

func TestSplit_BlockCount(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		codes []string
	}{
		{"no fences", "just text\n\nmore", nil},
		{"one untagged", "```\nplain\n```", []string{"text"}},
		{"two adjacent", "```a\nx\n``````b\ny\n```", []string{"a", "b"}},
		{"tag with symbols", "```c++\nint x;\n```", []string{"c++"}},
		{"uppercase tag", "```HTML\n<p>x</p>\n```", []string{"html"}},
		{"trailing blanks after tag", "```js  \nlet a\n```", []string{"js"}},
		{"inline triple backticks are not fences", "use ```x``` here", nil},
		{"fence must end its line", "```html <div>\n```", nil},
		{"unterminated", "```go\nfunc main() {", nil},
		{"closed then unterminated", "```go\na\n```\ntext\n```py\nb", []string{"go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var langs []string
			for _, b := range Blocks(Split(tt.text)) {
				langs = append(langs, b.Language)
			}
			assert.Equal(t, tt.codes, langs)
		})
	}
}

func TestSplit_UnterminatedFenceStaysNarrative(t *testing.T) {
	text := "Intro\n```html\n<div>Hello"
	segs := Split(text)

	require.Len(t, segs, 1)
	assert.Equal(t, Narrative, segs[0].Kind)
	assert.Equal(t, text, segs[0].Text)
}

func TestSplit_EmptyInput(t *testing.T) {
	assert.Empty(t, Split(""))
}

func TestSplit_Idempotent(t *testing.T) {
	assert.Equal(t, Split(sample), Split(sample))
}

func TestSplit_PrefixesNeverRetractOrPreEmit(t *testing.T) {
	final := Blocks(Split(sample))

	var prev []Segment
	for n := 0; n <= len(sample); n++ {
		prefix := sample[:n]
		blocks := Blocks(Split(prefix))

		require.GreaterOrEqual(t, len(blocks), len(prev), "prefix %d retracted a block", n)
		for i := range prev {
			assert.Equal(t, prev[i], blocks[i], "prefix %d changed block %d", n, i)
		}
		for i, b := range blocks {
			assert.Equal(t, final[i], b)
			assert.LessOrEqual(t, b.End, n, "block emitted before its closing fence")
		}
		prev = blocks
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a\nb", "a\nb"},
		{"a\n\nb", "a\n\nb"},
		{"a\n\n\nb", "a\n\nb"},
		{"a\n\n\n\n\n\nb\n\n\nc", "a\n\nb\n\nc"},
		{"\n\n\n", "\n\n"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestNormalize_LeavesCodeSpansAlone(t *testing.T) {
	text := "a\n\n\n\nb\n```py\nx = 1\n\n\n\ny = 2\n```"
	segs := Split(text)

	require.Len(t, segs, 2)
	assert.Equal(t, "a\n\nb\n", segs[0].Text)
	assert.Equal(t, "x = 1\n\n\n\ny = 2", segs[1].Code)
}

func TestKindMarshalText(t *testing.T) {
	b, err := Code.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "code", string(b))
	assert.Equal(t, "narrative", Narrative.String())
}
