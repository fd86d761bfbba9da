package epub

import (
	"fmt"
	"strings"
)

// TextForPages returns the plain text covering pages start through end
// inclusive. Extraction is file-granular: it concatenates the entire content
// of every spine file the span touches, so the result may include text before
// the start page and after the end page. The stop boundary is the file
// containing the page after end; that file is not consumed unless it is also
// the start file (multiple pages commonly share one file). When end+1 is not
// indexed, as at the end of the document, extraction continues through the
// end of the spine rather than truncating.
func (n *Navigator) TextForPages(start, end int) (string, error) {
	startLoc, ok := n.pages[start]
	if !ok {
		return "", fmt.Errorf("%w: start page %d", ErrPageNotFound, start)
	}
	stopLoc, haveStop := n.pages[end+1]

	var parts []string
	collecting := false
	for _, id := range n.spine {
		if !collecting {
			if id != startLoc.FileID {
				continue
			}
			collecting = true
		}
		if haveStop && id == stopLoc.FileID && id != startLoc.FileID {
			break
		}

		data, err := n.readItem(id)
		if err != nil {
			n.logger.Warn("skipping unreadable spine file in range", "file_id", id, "error", err)
		} else {
			parts = append(parts, plainText(data))
		}

		if haveStop && id == stopLoc.FileID {
			break
		}
	}

	return strings.Join(parts, "\n"), nil
}
