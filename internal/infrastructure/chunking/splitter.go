package chunking

import (
	"strings"

	"github.com/kirillkom/docqa/internal/core/domain"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// Boundary tiers, tried in order: paragraph, line, sentence, word.
var boundaryTiers = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "? ", "! "},
	{" "},
}

// Splitter cuts page text into chunks of at most ChunkSize runes where each
// chunk repeats the last Overlap runes of the previous one.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Chunk(pages []domain.Page) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(pages))
	for _, page := range pages {
		for _, text := range s.Split(page.Text) {
			out = append(out, domain.Chunk{
				Index:      len(out),
				PageNumber: page.Number,
				Text:       text,
			})
		}
	}
	return out
}

func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)

	out := make([]string, 0, len(runes)/(s.ChunkSize-s.Overlap)+1)
	start := 0
	for {
		if len(runes)-start <= s.ChunkSize {
			out = append(out, string(runes[start:]))
			return out
		}
		end := s.cutPoint(runes, start)
		out = append(out, string(runes[start:end]))
		start = end - s.Overlap
	}
}

// cutPoint returns the exclusive end of the chunk starting at start. The end
// always lies past start+Overlap so the next chunk makes progress.
func (s *Splitter) cutPoint(runes []rune, start int) int {
	limit := start + s.ChunkSize
	minEnd := start + s.ChunkSize/2
	if minEnd <= start+s.Overlap {
		minEnd = start + s.Overlap + 1
	}

	for _, tier := range boundaryTiers {
		for end := limit; end >= minEnd; end-- {
			if endsWithAny(runes[start:end], tier) {
				return end
			}
		}
	}
	return limit
}

func endsWithAny(runes []rune, separators []string) bool {
	for _, sep := range separators {
		sepRunes := []rune(sep)
		if len(sepRunes) > len(runes) {
			continue
		}
		tail := runes[len(runes)-len(sepRunes):]
		if string(tail) == sep {
			return true
		}
	}
	return false
}
