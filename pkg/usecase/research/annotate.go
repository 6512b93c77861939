package research

import (
	"regexp"
	"strconv"

	"github.com/m-mizutani/mnemo/pkg/model"
)

// Segment is one run of display text, optionally bound to a citation
// record. A sequence of segments renders sequentially; a bound segment is
// the interactive surface for its citation.
type Segment struct {
	Text     string
	Citation *model.Citation
}

// citeMarkerRegex matches the backend's positional citation markers:
// <cite data-citation=N>inner</cite>, N being 1-based reference order.
var citeMarkerRegex = regexp.MustCompile(`(?s)<cite[^>]*data-citation="?(\d+)"?[^>]*>(.*?)</cite>`)

// heuristicRegex scans raw settled text for citation candidates, in
// priority order: bracketed text, quoted text, bare capitalized phrases of
// 3-30 characters. Best effort, not a parser.
var heuristicRegex = regexp.MustCompile(`\[([^\]]+)\]|"([^"]+)"|\b([A-Z][a-zA-Z\s]{2,29})\b`)

// Resolve produces the renderable segments for a text buffer. Text still
// streaming passes through as a single plain segment; settled text goes
// through the marker path or the heuristic path depending on which event
// form settled it.
func Resolve(buf model.TextBuffer, idx *CitationIndex) []Segment {
	if buf.Text == "" {
		return nil
	}
	if !buf.Settled() {
		return []Segment{{Text: buf.Text}}
	}
	if buf.Annotated {
		return resolveMarkers(buf.Text, idx)
	}
	return resolveHeuristic(buf.Text, idx)
}

// resolveMarkers binds each positional marker to its citation. A marker
// whose position has no record yet renders its inner text unlinked.
func resolveMarkers(text string, idx *CitationIndex) []Segment {
	var segments []Segment
	last := 0
	for _, m := range citeMarkerRegex.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		pos, err := strconv.Atoi(text[m[2]:m[3]])
		inner := text[m[4]:m[5]]

		if start > last {
			segments = append(segments, Segment{Text: text[last:start]})
		}
		if c, ok := idx.ByPosition(pos); err == nil && ok {
			segments = append(segments, Segment{Text: inner, Citation: c})
		} else {
			segments = append(segments, Segment{Text: inner})
		}
		last = end
	}
	if last < len(text) {
		segments = append(segments, Segment{Text: text[last:]})
	}
	return segments
}

// resolveHeuristic matches candidate spans against citation titles,
// case-insensitive and exact on the whole span. First match wins per
// span, spans never overlap, unmatched candidates stay plain text.
func resolveHeuristic(text string, idx *CitationIndex) []Segment {
	if idx.Len() == 0 {
		return []Segment{{Text: text}}
	}

	var segments []Segment
	last := 0
	for _, m := range heuristicRegex.FindAllStringSubmatchIndex(text, -1) {
		candidate := firstGroup(text, m)
		c, ok := idx.ByTitle(candidate)
		if !ok {
			continue
		}
		if m[0] > last {
			segments = append(segments, Segment{Text: text[last:m[0]]})
		}
		segments = append(segments, Segment{Text: text[m[0]:m[1]], Citation: c})
		last = m[1]
	}
	if last < len(text) {
		segments = append(segments, Segment{Text: text[last:]})
	}
	if len(segments) == 0 {
		return []Segment{{Text: text}}
	}
	return segments
}

func firstGroup(text string, m []int) string {
	for g := 1; g <= 3; g++ {
		if m[2*g] >= 0 {
			return text[m[2*g]:m[2*g+1]]
		}
	}
	return ""
}
