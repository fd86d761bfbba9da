// Package epub provides random access over a paginated EPUB: a page-number
// index across the spine, raw text extraction by page range, and heading
// hierarchy resolution for a given page.
package epub

import (
	"fmt"
	"io"
	"log/slog"

	goepub "github.com/taylorskalyo/goreader/epub"
)

// Location identifies where a printed page number begins inside the archive.
type Location struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
	AnchorID string `json:"anchor_id"`
}

// Navigator exposes page-number based access to a spine-ordered EPUB.
// It is read-only after Open and not safe for concurrent use.
type Navigator struct {
	path     string
	rc       *goepub.ReadCloser
	spine    []string // item ids in reading order
	items    map[string]*goepub.Item
	manifest map[string]string // item id -> href
	pages    map[int]Location
	logger   *slog.Logger
}

// Open opens the EPUB at path and builds (or loads from cache) its page index.
// Failure to open the archive or locate its rootfile is fatal; individual
// unreadable content files only degrade the index.
func Open(path string, logger *slog.Logger) (*Navigator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rc, err := goepub.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open epub %s: %w", path, err)
	}
	if len(rc.Rootfiles) == 0 {
		rc.Close()
		return nil, ErrNoRootfile
	}
	book := rc.Rootfiles[0]

	nav := &Navigator{
		path:     path,
		rc:       rc,
		items:    make(map[string]*goepub.Item),
		manifest: make(map[string]string),
		logger:   logger,
	}

	for i := range book.Manifest.Items {
		item := &book.Manifest.Items[i]
		nav.items[item.ID] = item
		nav.manifest[item.ID] = item.HREF
	}
	for _, ref := range book.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		nav.spine = append(nav.spine, ref.Item.ID)
	}

	nav.pages = nav.loadOrBuildPageIndex()
	return nav, nil
}

// Close releases the underlying archive.
func (n *Navigator) Close() {
	n.rc.Close()
}

// Spine returns the content-file ids in reading order.
func (n *Navigator) Spine() []string {
	return n.spine
}

// ManifestHref returns the archive path for a content-file id.
func (n *Navigator) ManifestHref(id string) (string, bool) {
	href, ok := n.manifest[id]
	return href, ok
}

// PageLocation returns the indexed location of a printed page number.
func (n *Navigator) PageLocation(page int) (Location, bool) {
	loc, ok := n.pages[page]
	return loc, ok
}

// PageCount returns the number of indexed printed pages.
func (n *Navigator) PageCount() int {
	return len(n.pages)
}

// readItem reads the full content of one spine file by id.
func (n *Navigator) readItem(id string) ([]byte, error) {
	item, ok := n.items[id]
	if !ok {
		return nil, fmt.Errorf("item %q not in manifest", id)
	}
	r, err := item.Open()
	if err != nil {
		return nil, fmt.Errorf("open item %q: %w", id, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read item %q: %w", id, err)
	}
	return data, nil
}

// spineIndex returns the position of a content-file id in the spine, or -1.
func (n *Navigator) spineIndex(id string) int {
	for i, s := range n.spine {
		if s == id {
			return i
		}
	}
	return -1
}
