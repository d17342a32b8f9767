package segment

import "strings"

// Incremental segments a buffer that grows between calls. Everything up to
// the end of the last closed code block is settled and is not scanned again.
type Incremental struct {
	src       string
	settled   []Segment
	committed int
}

// Update returns the segments of text. When text does not extend the
// previously settled prefix the segmenter starts over.
func (s *Incremental) Update(text string) []Segment {
	if s.committed > len(text) || !strings.HasPrefix(text, s.src[:s.committed]) {
		s.Reset()
	}
	s.src = text

	tail := scan(text, s.committed)
	last := -1
	for i, seg := range tail {
		if seg.Kind == Code {
			last = i
		}
	}
	if last >= 0 {
		s.settled = append(s.settled, tail[:last+1]...)
		s.committed = tail[last].End
		tail = tail[last+1:]
	}

	out := make([]Segment, 0, len(s.settled)+len(tail))
	out = append(out, s.settled...)
	return append(out, tail...)
}

func (s *Incremental) Reset() {
	s.src = ""
	s.settled = nil
	s.committed = 0
}
