package epub

// HierarchyContext is the four-level heading state active at a given page.
// Levels with no preceding heading are left empty.
type HierarchyContext struct {
	Section    string `json:"section,omitempty"`
	Subsection string `json:"subsection,omitempty"`
	Subheading string `json:"subheading,omitempty"`
	Topic      string `json:"topic,omitempty"`
}

// Resolved reports whether all four levels have been found.
func (c HierarchyContext) Resolved() bool {
	return c.Section != "" && c.Subsection != "" && c.Subheading != "" && c.Topic != ""
}

// HierarchyAt resolves the active section/subsection/subheading/topic as of
// the given page by walking the spine backward from the page's file,
// including that file itself. In each visited file the last occurrence of
// each heading tag wins, which approximates "closest heading before the
// page" without anchor-level precision. The walk short-circuits once all
// four levels are resolved; unreadable files are skipped.
func (n *Navigator) HierarchyAt(page int) HierarchyContext {
	var ctx HierarchyContext

	loc, ok := n.pages[page]
	if !ok {
		return ctx
	}
	start := n.spineIndex(loc.FileID)

	for i := start; i >= 0; i-- {
		data, err := n.readItem(n.spine[i])
		if err != nil {
			continue
		}
		headings, err := lastHeadings(data)
		if err != nil {
			continue
		}

		if ctx.Section == "" {
			ctx.Section = headings["h1"]
		}
		if ctx.Subsection == "" {
			ctx.Subsection = headings["h2"]
		}
		if ctx.Subheading == "" {
			ctx.Subheading = headings["h3"]
		}
		if ctx.Topic == "" {
			ctx.Topic = headings["h4"]
		}

		if ctx.Resolved() {
			break
		}
	}

	return ctx
}
