package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/bull/cpt-extract/internal/epub"
	"github.com/bull/cpt-extract/internal/genai"
)

// Navigator is the document access the driver needs per chunk.
type Navigator interface {
	TextForPages(start, end int) (string, error)
	HierarchyAt(page int) epub.HierarchyContext
	Chapters() []epub.ChapterBoundary
}

// Generator is the text-generation call the driver makes per chunk.
type Generator interface {
	Generate(ctx context.Context, prompt string) (genai.Result, error)
	GenerateStream(ctx context.Context, prompt string, progress func()) (genai.Result, error)
}

// Options configures one extraction run.
type Options struct {
	Model        string
	StartPage    int
	EndPage      int
	ChunkSize    int  // fixed-size mode width; ignored when ByChapter
	ByChapter    bool // chapter-aligned chunking instead of fixed-size
	UseHierarchy bool // resolve heading hierarchy per chunk
	Stream       bool // drain the response incrementally
	SimpleSchema bool // code + description only
	OutputDir    string
	SkipCombined bool
	MaxChars     int // prompt text budget; 0 means DefaultMaxPromptChars
}

// State is the cross-chunk pipeline state, carried strictly forward within
// one run. LastRecord only advances on successfully parsed chunks, so a
// failed chunk leaves the next chunk with the last successful parent
// context.
type State struct {
	Hierarchy  epub.HierarchyContext
	LastRecord *CodeRecord
}

// FailedChunk records one chunk whose output was lost.
type FailedChunk struct {
	Start  int
	End    int
	Reason string
}

// RunResult summarizes a completed extraction run.
type RunResult struct {
	RunID        string
	Chunks       int
	FailedChunks []FailedChunk
	Records      []CodeRecord
	Usage        genai.Usage
	Cost         float64
	Duration     time.Duration
	CombinedPath string
}

// Driver runs the chunked extraction pipeline. Chunks are processed strictly
// in increasing page order because each chunk's request depends on the
// previous chunk's state.
type Driver struct {
	nav    Navigator
	gen    Generator
	opts   Options
	logger *slog.Logger
}

// NewDriver creates a driver over the given navigator and generator.
func NewDriver(nav Navigator, gen Generator, opts Options, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{nav: nav, gen: gen, opts: opts, logger: logger}
}

// Run processes every planned chunk in order and writes per-chunk and
// combined artifacts. A failed chunk costs that chunk's data, never the run:
// only argument errors and artifact-directory failures abort.
func (d *Driver) Run(ctx context.Context) (*RunResult, error) {
	if d.opts.StartPage <= 0 || d.opts.EndPage < d.opts.StartPage {
		return nil, fmt.Errorf("invalid page range %d-%d", d.opts.StartPage, d.opts.EndPage)
	}
	if err := os.MkdirAll(d.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var chunks []Chunk
	if d.opts.ByChapter {
		chunks = PlanChapters(d.nav.Chapters(), d.opts.StartPage, d.opts.EndPage)
	} else {
		chunks = PlanFixed(d.opts.StartPage, d.opts.EndPage, d.opts.ChunkSize)
	}

	result := &RunResult{
		RunID:  uuid.New().String(),
		Chunks: len(chunks),
	}
	start := time.Now()
	d.logger.Info("starting extraction run",
		"run_id", result.RunID,
		"model", d.opts.Model,
		"pages", fmt.Sprintf("%d-%d", d.opts.StartPage, d.opts.EndPage),
		"chunks", len(chunks),
		"by_chapter", d.opts.ByChapter,
	)

	state := &State{}
	for _, chunk := range chunks {
		d.processChunk(ctx, chunk, state, result)
	}

	if !d.opts.SkipCombined {
		combined := chunkCombinedPath(d.opts.OutputDir)
		if err := writeRecords(combined, result.Records); err != nil {
			d.logger.Warn("could not write combined artifact", "error", err)
		} else {
			result.CombinedPath = combined
		}
	}

	result.Duration = time.Since(start)
	d.logger.Info("extraction run complete",
		"run_id", result.RunID,
		"records", len(result.Records),
		"failed_chunks", len(result.FailedChunks),
		"total_tokens", result.Usage.TotalTokens,
		"estimated_cost_usd", result.Cost,
		"duration", result.Duration,
	)
	return result, nil
}

// processChunk runs one chunk end to end. Every failure mode is isolated:
// the chunk is recorded as failed and the loop moves on with state
// unchanged.
func (d *Driver) processChunk(ctx context.Context, chunk Chunk, state *State, result *RunResult) {
	chunkStart := time.Now()
	d.logger.Info("processing chunk", "start_page", chunk.Start, "end_page", chunk.End)

	text, err := d.nav.TextForPages(chunk.Start, chunk.End)
	if err != nil {
		if errors.Is(err, epub.ErrPageNotFound) {
			d.logger.Warn("chunk start page not indexed, skipping", "start_page", chunk.Start)
		} else {
			d.logger.Warn("range extraction failed, skipping chunk", "start_page", chunk.Start, "error", err)
		}
		result.FailedChunks = append(result.FailedChunks, FailedChunk{chunk.Start, chunk.End, err.Error()})
		return
	}

	hierarchy := epub.HierarchyContext{}
	if d.opts.UseHierarchy {
		hierarchy = d.nav.HierarchyAt(chunk.Start)
		state.Hierarchy = hierarchy
	}

	prompt := BuildPrompt(PromptInput{
		Text:         text,
		Hierarchy:    hierarchy,
		LastRecord:   state.LastRecord,
		SimpleSchema: d.opts.SimpleSchema,
		MaxChars:     d.opts.MaxChars,
	})
	if prompt.Truncated {
		d.logger.Warn("chunk text truncated to prompt budget",
			"start_page", chunk.Start, "end_page", chunk.End, "text_chars", len(text))
	}

	var res genai.Result
	var callErr error
	if d.opts.Stream {
		res, callErr = d.gen.GenerateStream(ctx, prompt.Text, nil)
	} else {
		res, callErr = d.gen.Generate(ctx, prompt.Text)
	}
	if callErr != nil {
		// Treated identically to an unparseable response: the chunk is lost,
		// carried state is not.
		d.logger.Warn("generation call failed", "start_page", chunk.Start, "error", callErr)
		res.Text = ""
	}

	result.Usage.Add(res.Usage)
	cost := genai.EstimateCost(d.opts.Model, res.Usage)
	result.Cost += cost

	parsed := ParseResponse(res.Text)
	if parsed.Failed() {
		debugPath := debugArtifactPath(d.opts.OutputDir, chunk)
		if err := writeRaw(debugPath, parsed.Raw); err != nil {
			d.logger.Warn("could not save raw response", "error", err)
		}
		d.logger.Warn("no records parsed from chunk, raw response saved",
			"start_page", chunk.Start, "end_page", chunk.End, "path", debugPath)
		result.FailedChunks = append(result.FailedChunks, FailedChunk{chunk.Start, chunk.End, "no parseable records"})
		return
	}

	result.Records = append(result.Records, parsed.Records...)
	state.LastRecord = &parsed.Records[len(parsed.Records)-1]

	chunkPath := chunkArtifactPath(d.opts.OutputDir, chunk)
	if err := writeRecords(chunkPath, parsed.Records); err != nil {
		d.logger.Warn("could not save chunk artifact", "error", err)
	}

	d.logger.Info("chunk complete",
		"start_page", chunk.Start,
		"end_page", chunk.End,
		"records", len(parsed.Records),
		"last_code", state.LastRecord.Code,
		"prompt_tokens", res.Usage.PromptTokens,
		"output_tokens", res.Usage.OutputTokens,
		"estimated_cost_usd", cost,
		"duration", time.Since(chunkStart),
	)
}
