// Package flatten projects extracted code records onto a fixed-column CSV.
// It is a pure projection over already-produced artifacts and carries no
// pipeline state.
package flatten

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Columns is the fixed CSV column set, matching the extraction schema.
// Records missing a column are written with an empty value.
var Columns = []string{
	"code",
	"code_description",
	"code_type",
	"section",
	"section_text",
	"subsection",
	"subsection_text",
	"subheading",
	"subheading_text",
	"topic",
	"topic_text",
	"code_version",
}

// Summary reports what one flattening pass processed.
type Summary struct {
	Files   int
	Records int
	Skipped int
}

// Flatten reads one newline-delimited JSON file, or every *.jsonl file in a
// directory, and writes a single CSV. Files that are whole JSON arrays are
// accepted too. Invalid lines are logged and skipped.
func Flatten(inputPath, outputPath string, logger *slog.Logger) (*Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}

	files, err := resolveInputs(inputPath)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no JSONL files found at %s", inputPath)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", outputPath, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	summary := &Summary{Files: len(files)}
	for _, file := range files {
		records, skipped, err := readRecords(file, logger)
		if err != nil {
			logger.Warn("skipping unreadable file", "path", file, "error", err)
			continue
		}
		summary.Skipped += skipped
		for _, rec := range records {
			row := make([]string, len(Columns))
			for i, col := range Columns {
				row[i] = fieldString(rec[col])
			}
			if err := w.Write(row); err != nil {
				return nil, fmt.Errorf("write row: %w", err)
			}
			summary.Records++
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return summary, nil
}

// resolveInputs expands a path into the ordered list of files to process.
func resolveInputs(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("input path %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := filepath.Glob(filepath.Join(path, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// readRecords parses one file as JSONL. A file whose content starts with [
// is parsed as a whole JSON array instead, since its last element would
// otherwise parse as a lone line and shadow the rest of the array.
func readRecords(path string, logger *slog.Logger) ([]map[string]any, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}

	content := strings.TrimSpace(strings.Join(lines, "\n"))
	if strings.HasPrefix(content, "[") {
		var list []map[string]any
		if err := json.Unmarshal([]byte(content), &list); err == nil {
			return list, 0, nil
		}
	}

	var records []map[string]any
	skipped := 0
	for lineNum, line := range lines {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			logger.Warn("skipping invalid JSON line", "path", path, "line", lineNum+1)
			skipped++
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		var list []map[string]any
		if err := json.Unmarshal([]byte(content), &list); err == nil {
			return list, 0, nil
		}
	}
	return records, skipped, nil
}

func fieldString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
