package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CombinedArtifactName is the combined newline-delimited JSON output written
// at the end of a run.
const CombinedArtifactName = "all_extracted_codes.jsonl"

func chunkCombinedPath(dir string) string {
	return filepath.Join(dir, CombinedArtifactName)
}

func chunkArtifactPath(dir string, c Chunk) string {
	return filepath.Join(dir, fmt.Sprintf("cpt_%d_%d_chapter.jsonl", c.Start, c.End))
}

func debugArtifactPath(dir string, c Chunk) string {
	return filepath.Join(dir, fmt.Sprintf("cpt_%d_%d_raw_error.txt", c.Start, c.End))
}

// writeRecords persists records as newline-delimited JSON, one record per
// line.
func writeRecords(path string, records []CodeRecord) error {
	var b strings.Builder
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record %q: %w", rec.Code, err)
		}
		b.Write(line)
		b.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// writeRaw persists an unparseable response verbatim for manual recovery.
func writeRaw(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
