package retriever

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators is the priority order used when none is configured.
var DefaultSeparators = []string{" ", ",", "\n"}

// Splitter cuts text into passages of at most chunkSize runes, splitting on
// a priority-ordered list of separators and carrying chunkOverlap trailing
// runes of one passage into the next. Boundaries are deterministic for the
// same input and parameters.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

func NewSplitter(chunkSize, chunkOverlap int, separators []string) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   separators,
	}
}

// Split returns the passages of text. Concatenating the non-overlap region
// of every passage reconstructs text exactly. The carried overlap shrinks
// when the next segment leaves no room for it, so a passage only exceeds
// chunkSize when a single separator-free segment does, which is emitted
// as-is rather than looping.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	segments := splitOnSeparators(text, s.separators, s.chunkSize)

	var chunks []string
	var core strings.Builder
	prefix := ""
	for _, seg := range segments {
		segLen := utf8.RuneCountInString(seg)
		if core.Len() > 0 &&
			utf8.RuneCountInString(prefix)+utf8.RuneCountInString(core.String())+segLen > s.chunkSize {
			chunks = append(chunks, prefix+core.String())
			overlap := s.chunkOverlap
			if room := s.chunkSize - segLen; room < overlap {
				overlap = room
			}
			prefix = tailRunes(core.String(), overlap)
			core.Reset()
		}
		core.WriteString(seg)
	}
	if core.Len() > 0 {
		chunks = append(chunks, prefix+core.String())
	}
	return chunks
}

// splitOnSeparators recursively cuts text on the highest-priority separator
// it contains, keeping separators attached to the preceding piece so that
// concatenation is lossless. Pieces still over the limit fall through to the
// lower-priority separators.
func splitOnSeparators(text string, separators []string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit || len(separators) == 0 {
		return []string{text}
	}
	sep := separators[0]
	if !strings.Contains(text, sep) {
		return splitOnSeparators(text, separators[1:], limit)
	}
	parts := strings.SplitAfter(text, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) > limit {
			out = append(out, splitOnSeparators(p, separators[1:], limit)...)
		} else {
			out = append(out, p)
		}
	}
	return out
}

func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
