package epub

import (
	"archive/zip"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// chapterFile describes one content file in a generated test EPUB.
type chapterFile struct {
	id   string
	href string
	body string // inner XHTML of <body>
}

// writeTestEPUB builds a minimal EPUB 2 archive in a temp dir and returns its
// path. Files appear in the spine in the order given.
func writeTestEPUB(t *testing.T, files []chapterFile) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "book.epub")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create epub: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	// mimetype must be first and uncompressed
	mt, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("create mimetype: %v", err)
	}
	if _, err := mt.Write([]byte("application/epub+zip")); err != nil {
		t.Fatalf("write mimetype: %v", err)
	}

	writeEntry := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	writeEntry("META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`)

	manifest := ""
	spine := ""
	for _, cf := range files {
		manifest += fmt.Sprintf(`    <item id=%q href=%q media-type="application/xhtml+xml"/>%s`, cf.id, cf.href, "\n")
		spine += fmt.Sprintf(`    <itemref idref=%q/>%s`, cf.id, "\n")
	}
	writeEntry("OEBPS/content.opf", fmt.Sprintf(`<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" unique-identifier="uid" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:identifier id="uid">test-book</dc:identifier>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
%s  </manifest>
  <spine>
%s  </spine>
</package>`, manifest, spine))

	for _, cf := range files {
		writeEntry("OEBPS/"+cf.href, fmt.Sprintf(`<?xml version="1.0"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>%s</title></head><body>
%s
</body></html>`, cf.id, cf.body))
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return path
}

func openTestEPUB(t *testing.T, files []chapterFile) *Navigator {
	t.Helper()
	nav, err := Open(writeTestEPUB(t, files), slog.Default())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { nav.Close() })
	return nav
}

// twoFileBook is the index scenario {1:(fileA,a1), 2:(fileA,a2), 3:(fileB,a3)}.
func twoFileBook() []chapterFile {
	return []chapterFile{
		{id: "fileA", href: "fileA.xhtml", body: `<span id="page_1"/><p>alpha text</p><span id="page_2"/><p>beta text</p>`},
		{id: "fileB", href: "fileB.xhtml", body: `<span id="page_3"/><p>gamma text</p>`},
	}
}

func TestOpen_BuildsPageIndex(t *testing.T) {
	nav := openTestEPUB(t, twoFileBook())

	if nav.PageCount() != 3 {
		t.Fatalf("expected 3 indexed pages, got %d", nav.PageCount())
	}

	loc, ok := nav.PageLocation(2)
	if !ok {
		t.Fatal("page 2 not indexed")
	}
	if loc.FileID != "fileA" {
		t.Errorf("page 2 file: expected fileA, got %s", loc.FileID)
	}
	if loc.AnchorID != "page_2" {
		t.Errorf("page 2 anchor: expected page_2, got %s", loc.AnchorID)
	}
	if loc.FilePath != "fileA.xhtml" {
		t.Errorf("page 2 path: expected fileA.xhtml, got %s", loc.FilePath)
	}

	loc, ok = nav.PageLocation(3)
	if !ok || loc.FileID != "fileB" {
		t.Errorf("page 3: expected fileB, got %+v (indexed=%v)", loc, ok)
	}
}

func TestPageIndex_GapsAllowed(t *testing.T) {
	nav := openTestEPUB(t, []chapterFile{
		{id: "front", href: "front.xhtml", body: `<p>front matter, no markers</p>`},
		{id: "ch1", href: "ch1.xhtml", body: `<span id="page_10"/><p>ten</p><span id="page_12"/><p>twelve</p>`},
	})

	if nav.PageCount() != 2 {
		t.Fatalf("expected 2 indexed pages, got %d", nav.PageCount())
	}
	if _, ok := nav.PageLocation(11); ok {
		t.Error("page 11 should not be indexed")
	}
}

func TestPageIndex_DuplicateMarkerFirstWins(t *testing.T) {
	nav := openTestEPUB(t, []chapterFile{
		{id: "intro", href: "intro.xhtml", body: `<span id="page_5"/><p>from front matter</p>`},
		{id: "body", href: "body.xhtml", body: `<span id="page_5"/><p>from body</p>`},
	})

	loc, ok := nav.PageLocation(5)
	if !ok {
		t.Fatal("page 5 not indexed")
	}
	if loc.FileID != "intro" {
		t.Errorf("duplicate page marker: expected first spine file intro, got %s", loc.FileID)
	}
}

func TestPageIndex_CacheRoundTrip(t *testing.T) {
	path := writeTestEPUB(t, twoFileBook())

	nav1, err := Open(path, slog.Default())
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	first := make(map[int]Location)
	for p := 1; p <= 3; p++ {
		loc, ok := nav1.PageLocation(p)
		if !ok {
			t.Fatalf("page %d missing after scan", p)
		}
		first[p] = loc
	}
	nav1.Close()

	if _, err := os.Stat(path + CacheSuffix); err != nil {
		t.Fatalf("cache sidecar not written: %v", err)
	}

	nav2, err := Open(path, slog.Default())
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer nav2.Close()

	if nav2.PageCount() != len(first) {
		t.Fatalf("cache reload: expected %d pages, got %d", len(first), nav2.PageCount())
	}
	for p, want := range first {
		got, ok := nav2.PageLocation(p)
		if !ok || got != want {
			t.Errorf("page %d: expected %+v, got %+v (indexed=%v)", p, want, got, ok)
		}
	}
}

func TestPageIndex_CacheLoadedVerbatim(t *testing.T) {
	path := writeTestEPUB(t, twoFileBook())

	nav1, err := Open(path, slog.Default())
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	nav1.Close()

	// A present cache is trusted as-is; the scan must be skipped entirely.
	err = os.WriteFile(path+CacheSuffix, []byte(`{"99": {"file_id": "fileB", "file_path": "fileB.xhtml", "anchor_id": "page_99"}}`), 0o644)
	if err != nil {
		t.Fatalf("overwrite cache: %v", err)
	}

	nav2, err := Open(path, slog.Default())
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer nav2.Close()

	if nav2.PageCount() != 1 {
		t.Fatalf("expected cache contents only, got %d pages", nav2.PageCount())
	}
	loc, ok := nav2.PageLocation(99)
	if !ok || loc.FileID != "fileB" {
		t.Errorf("page 99 from cache: got %+v (indexed=%v)", loc, ok)
	}
}

func TestTextForPages_SingleFileSpan(t *testing.T) {
	nav := openTestEPUB(t, twoFileBook())

	// Pages 1-2 live in fileA; page 3 (the stop boundary) starts fileB,
	// so only fileA is consumed.
	text, err := nav.TextForPages(1, 2)
	if err != nil {
		t.Fatalf("TextForPages(1,2): %v", err)
	}
	if !strings.Contains(text, "alpha text") || !strings.Contains(text, "beta text") {
		t.Errorf("expected fileA content, got %q", text)
	}
	if strings.Contains(text, "gamma text") {
		t.Errorf("fileB content leaked into range 1-2: %q", text)
	}
}

func TestTextForPages_SinglePageNeverEmpty(t *testing.T) {
	nav := openTestEPUB(t, twoFileBook())

	// Stop boundary page 2 shares fileA with page 1; the file must still be
	// returned in full.
	text, err := nav.TextForPages(1, 1)
	if err != nil {
		t.Fatalf("TextForPages(1,1): %v", err)
	}
	if text == "" {
		t.Fatal("single-page extraction returned empty text for an indexed page")
	}
	if !strings.Contains(text, "alpha text") {
		t.Errorf("expected page 1 content, got %q", text)
	}
}

func TestTextForPages_RunsThroughEndOfSpine(t *testing.T) {
	nav := openTestEPUB(t, twoFileBook())

	// end+1 = page 4 is unindexed: extraction must continue through the
	// last spine file instead of truncating.
	text, err := nav.TextForPages(2, 3)
	if err != nil {
		t.Fatalf("TextForPages(2,3): %v", err)
	}
	if !strings.Contains(text, "beta text") {
		t.Errorf("expected fileA content, got %q", text)
	}
	if !strings.Contains(text, "gamma text") {
		t.Errorf("expected fileB content, got %q", text)
	}
}

func TestTextForPages_MissingStartPage(t *testing.T) {
	nav := openTestEPUB(t, twoFileBook())

	_, err := nav.TextForPages(42, 50)
	if err == nil {
		t.Fatal("expected error for unindexed start page")
	}
	if !errors.Is(err, ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound, got %v", err)
	}
}

func TestHierarchyAt_LastHeadingInFileWins(t *testing.T) {
	nav := openTestEPUB(t, []chapterFile{
		{id: "fileA", href: "fileA.xhtml", body: `
<h1>Surgery</h1>
<h1>Medicine</h1>
<span id="page_1"/><p>content</p>`},
	})

	ctx := nav.HierarchyAt(1)
	if ctx.Section != "Medicine" {
		t.Errorf("section: expected Medicine (last h1 in file), got %q", ctx.Section)
	}
	if ctx.Subsection != "" || ctx.Subheading != "" || ctx.Topic != "" {
		t.Errorf("lower levels should be unresolved, got %+v", ctx)
	}
}

func TestHierarchyAt_WalksBackward(t *testing.T) {
	nav := openTestEPUB(t, []chapterFile{
		{id: "fileA", href: "fileA.xhtml", body: `<h1>Surgery</h1><h2>Musculoskeletal System</h2><span id="page_1"/>`},
		{id: "fileB", href: "fileB.xhtml", body: `<h3>Arthroscopy</h3><span id="page_2"/><p>codes</p>`},
	})

	ctx := nav.HierarchyAt(2)
	if ctx.Section != "Surgery" {
		t.Errorf("section: expected Surgery from earlier file, got %q", ctx.Section)
	}
	if ctx.Subsection != "Musculoskeletal System" {
		t.Errorf("subsection: expected Musculoskeletal System, got %q", ctx.Subsection)
	}
	if ctx.Subheading != "Arthroscopy" {
		t.Errorf("subheading: expected Arthroscopy from page's own file, got %q", ctx.Subheading)
	}
	if ctx.Topic != "" {
		t.Errorf("topic should be unresolved, got %q", ctx.Topic)
	}
}

func TestHierarchyAt_UnindexedPage(t *testing.T) {
	nav := openTestEPUB(t, twoFileBook())

	ctx := nav.HierarchyAt(1000)
	if ctx != (HierarchyContext{}) {
		t.Errorf("expected empty context for unindexed page, got %+v", ctx)
	}
}

func TestChapters_PartitionIndexedPages(t *testing.T) {
	nav := openTestEPUB(t, []chapterFile{
		{id: "front", href: "front.xhtml", body: `<p>no markers</p>`},
		{id: "ch1", href: "ch1.xhtml", body: `<span id="page_1"/><span id="page_2"/>`},
		{id: "ch2", href: "ch2.xhtml", body: `<span id="page_3"/><span id="page_5"/>`},
	})

	bounds := nav.Chapters()
	if len(bounds) != 2 {
		t.Fatalf("expected 2 boundaries (file without pages omitted), got %d", len(bounds))
	}
	if bounds[0].FileID != "ch1" || bounds[0].StartPage != 1 || bounds[0].EndPage != 2 {
		t.Errorf("boundary 0: got %+v", bounds[0])
	}
	if bounds[1].FileID != "ch2" || bounds[1].StartPage != 3 || bounds[1].EndPage != 5 {
		t.Errorf("boundary 1: got %+v", bounds[1])
	}

	// Every indexed page must fall in exactly one boundary.
	for _, page := range []int{1, 2, 3, 5} {
		owners := 0
		for _, b := range bounds {
			if page >= b.StartPage && page <= b.EndPage {
				owners++
			}
		}
		if owners != 1 {
			t.Errorf("page %d owned by %d boundaries, expected exactly 1", page, owners)
		}
	}
}

