package epub

import (
	"encoding/json"
	"os"
)

// CacheSuffix is appended to the source path to name the page-index sidecar.
const CacheSuffix = ".pagemap.json"

// loadOrBuildPageIndex returns the page index, loading the sidecar cache when
// one exists next to the source document and scanning the spine otherwise.
// The cache is presence-based: it is never invalidated automatically when the
// source changes, only by deleting the sidecar file.
func (n *Navigator) loadOrBuildPageIndex() map[int]Location {
	cachePath := n.path + CacheSuffix

	if data, err := os.ReadFile(cachePath); err == nil {
		pages := make(map[int]Location)
		if err := json.Unmarshal(data, &pages); err == nil {
			n.logger.Info("loaded page index from cache", "path", cachePath, "pages", len(pages))
			return pages
		}
		n.logger.Warn("failed to parse page index cache, rebuilding", "path", cachePath, "error", err)
	}

	pages := n.buildPageIndex()

	if data, err := json.Marshal(pages); err == nil {
		if err := os.WriteFile(cachePath, data, 0o644); err != nil {
			n.logger.Warn("could not save page index cache", "path", cachePath, "error", err)
		} else {
			n.logger.Info("saved page index cache", "path", cachePath)
		}
	}

	return pages
}

// buildPageIndex scans every spine file once, in order, for page-boundary
// anchors. Duplicate page numbers keep the first location seen in spine
// order. Unreadable files are skipped; a partial index is not an error.
func (n *Navigator) buildPageIndex() map[int]Location {
	n.logger.Info("building page index", "files", len(n.spine))
	pages := make(map[int]Location)

	for _, id := range n.spine {
		data, err := n.readItem(id)
		if err != nil {
			n.logger.Warn("skipping unreadable spine file", "file_id", id, "error", err)
			continue
		}
		markers, err := pageMarkers(data)
		if err != nil {
			n.logger.Warn("skipping unparseable spine file", "file_id", id, "error", err)
			continue
		}
		for page, anchor := range markers {
			if _, seen := pages[page]; seen {
				continue
			}
			pages[page] = Location{
				FileID:   id,
				FilePath: n.manifest[id],
				AnchorID: anchor,
			}
		}
	}

	n.logger.Info("page index built", "pages", len(pages))
	return pages
}
