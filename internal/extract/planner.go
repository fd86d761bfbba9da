package extract

import "github.com/bull/cpt-extract/internal/epub"

// DefaultChunkSize is the fixed-size chunk width in pages.
const DefaultChunkSize = 5

// Chunk is one contiguous page range processed as a unit of extraction work.
type Chunk struct {
	Start int
	End   int
}

// PlanFixed splits [start, end] into consecutive chunks of size pages; the
// final chunk is clipped to end.
func PlanFixed(start, end, size int) []Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks []Chunk
	for s := start; s <= end; s += size {
		chunks = append(chunks, Chunk{Start: s, End: min(s+size-1, end)})
	}
	return chunks
}

// PlanChapters selects every chapter boundary overlapping [start, end], in
// spine order, and uses each boundary's own full page range as one chunk.
// Chunks are deliberately not clipped to the requested range.
func PlanChapters(bounds []epub.ChapterBoundary, start, end int) []Chunk {
	var chunks []Chunk
	for _, b := range bounds {
		if max(b.StartPage, start) <= min(b.EndPage, end) {
			chunks = append(chunks, Chunk{Start: b.StartPage, End: b.EndPage})
		}
	}
	return chunks
}
