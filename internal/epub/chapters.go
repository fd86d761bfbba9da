package epub

// ChapterBoundary is the contiguous range of printed pages owned by one
// spine file.
type ChapterBoundary struct {
	FileID    string
	StartPage int
	EndPage   int
}

// Chapters groups indexed pages by owning spine file and returns one
// boundary per file that owns at least one page, in spine order.
func (n *Navigator) Chapters() []ChapterBoundary {
	type span struct {
		min, max int
		seen     bool
	}
	byFile := make(map[string]span)

	for page, loc := range n.pages {
		s := byFile[loc.FileID]
		if !s.seen || page < s.min {
			s.min = page
		}
		if !s.seen || page > s.max {
			s.max = page
		}
		s.seen = true
		byFile[loc.FileID] = s
	}

	var boundaries []ChapterBoundary
	for _, id := range n.spine {
		s, ok := byFile[id]
		if !ok {
			continue
		}
		boundaries = append(boundaries, ChapterBoundary{
			FileID:    id,
			StartPage: s.min,
			EndPage:   s.max,
		})
	}
	return boundaries
}
