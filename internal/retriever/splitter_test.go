package retriever

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

const sampleText = "The quick brown fox jumps over the lazy dog, then naps.\n" +
	"A second line follows, with several clauses, separated by commas.\n" +
	"And a third line closes the sample text."

// reconstruct strips the overlap prefix carried into each chunk and joins
// the remaining non-overlap regions.
func reconstruct(chunks []string, overlap int) string {
	var sb strings.Builder
	prevCore := ""
	for i, c := range chunks {
		if i == 0 {
			sb.WriteString(c)
			prevCore = c
			continue
		}
		prefix := tailRunes(prevCore, overlap)
		core := strings.TrimPrefix(c, prefix)
		sb.WriteString(core)
		prevCore = core
	}
	return sb.String()
}

func TestSplit_ReconstructsOriginal(t *testing.T) {
	for _, overlap := range []int{0, 5, 12} {
		s := NewSplitter(40, overlap, nil)
		chunks := s.Split(sampleText)
		require.NotEmpty(t, chunks)
		require.Equal(t, sampleText, reconstruct(chunks, overlap))
	}
}

func TestSplit_RespectsChunkSize(t *testing.T) {
	s := NewSplitter(40, 10, nil)
	for _, c := range s.Split(sampleText) {
		require.LessOrEqual(t, utf8.RuneCountInString(c), 40)
	}
}

func TestSplit_RespectsChunkSizeWithLongSegments(t *testing.T) {
	// segments longer than chunkSize-overlap force the carried overlap to
	// shrink instead of overflowing the passage
	text := strings.Repeat(strings.Repeat("a", 15)+" ", 3)
	s := NewSplitter(20, 6, nil)
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		require.LessOrEqual(t, utf8.RuneCountInString(c), 20)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	s := NewSplitter(40, 10, nil)
	first := s.Split(sampleText)
	second := s.Split(sampleText)
	require.Equal(t, first, second)
}

func TestSplit_UnsplittableText(t *testing.T) {
	// no separator within the bound: the splitter must emit the run as-is
	// instead of looping
	text := strings.Repeat("x", 50)
	s := NewSplitter(10, 0, nil)
	chunks := s.Split(text)
	require.Equal(t, []string{text}, chunks)
}

func TestSplit_MixedUnsplittableRun(t *testing.T) {
	long := strings.Repeat("y", 30)
	text := "short words here " + long + " more words"
	s := NewSplitter(10, 0, nil)
	chunks := s.Split(text)
	require.Equal(t, text, strings.Join(chunks, ""))
	// the long run survives as one oversized passage
	found := false
	for _, c := range chunks {
		if strings.Contains(c, long) {
			found = true
		}
	}
	require.True(t, found)
}

func TestSplit_Empty(t *testing.T) {
	s := NewSplitter(100, 0, nil)
	require.Empty(t, s.Split(""))
}

func TestSplit_OverlapCarriedForward(t *testing.T) {
	s := NewSplitter(20, 6, nil)
	chunks := s.Split(sampleText)
	require.Greater(t, len(chunks), 1)

	prevCore := chunks[0]
	for _, c := range chunks[1:] {
		prefix := tailRunes(prevCore, 6)
		require.True(t, strings.HasPrefix(c, prefix), "chunk %q should carry overlap %q", c, prefix)
		prevCore = strings.TrimPrefix(c, prefix)
	}
}

func TestSplit_SeparatorPriority(t *testing.T) {
	// with only newline as separator, lines stay intact
	s := NewSplitter(60, 0, []string{"\n"})
	chunks := s.Split(sampleText)
	require.Equal(t, sampleText, strings.Join(chunks, ""))
	for _, c := range chunks[:len(chunks)-1] {
		require.True(t, strings.HasSuffix(c, "\n"))
	}
}

func TestNewSplitter_NormalizesParameters(t *testing.T) {
	s := NewSplitter(0, -1, nil)
	require.Equal(t, 1000, s.chunkSize)
	require.Equal(t, 0, s.chunkOverlap)
	require.Equal(t, DefaultSeparators, s.separators)

	// overlap larger than the chunk is clamped
	s = NewSplitter(10, 20, nil)
	require.Equal(t, 5, s.chunkOverlap)
}
