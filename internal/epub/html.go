package epub

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// pageMarkerRE matches anchor ids that encode a printed page number,
// e.g. <span id="page_42"/>.
var pageMarkerRE = regexp.MustCompile(`^page_(\d+)$`)

// pageMarkers scans an XHTML document for page-boundary anchors and returns
// page number -> anchor id. If the same page number appears more than once
// in the document, the first occurrence in document order wins.
func pageMarkers(content []byte) (map[int]string, error) {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return nil, err
	}

	markers := make(map[int]string)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key != "id" {
					continue
				}
				m := pageMarkerRE.FindStringSubmatch(attr.Val)
				if m == nil {
					continue
				}
				page, err := strconv.Atoi(m[1])
				if err != nil {
					continue
				}
				if _, seen := markers[page]; !seen {
					markers[page] = attr.Val
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return markers, nil
}

// headingLevels are the heading tags tracked for hierarchy resolution.
var headingLevels = []string{"h1", "h2", "h3", "h4"}

// lastHeadings returns the text of the last h1-h4 heading in document order,
// keyed by tag name. Tags with no occurrence are absent from the map.
func lastHeadings(content []byte) (map[string]string, error) {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return nil, err
	}

	headings := make(map[string]string)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, tag := range headingLevels {
				if n.Data == tag {
					// Later occurrences overwrite, so the last one in the file wins.
					headings[tag] = strings.TrimSpace(nodeText(n))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return headings, nil
}

// plainText extracts the visible text of an XHTML document, one text block
// per line, skipping script and style nodes.
func plainText(content []byte) string {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return ""
	}

	var out strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				out.WriteString(t)
				out.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out.String()
}

// nodeText collects the concatenated text content of a node's subtree.
func nodeText(n *html.Node) string {
	var out strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			out.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(out.String())
}
