// Package main provides the CLI for extracting CPT codes from a paginated
// EPUB with a text-generation service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/cpt-extract/internal/epub"
	"github.com/bull/cpt-extract/internal/extract"
	"github.com/bull/cpt-extract/internal/flatten"
	"github.com/bull/cpt-extract/internal/genai"
)

var rootCmd = &cobra.Command{
	Use:   "cpt-extract",
	Short: "CPT code extraction from paginated EPUB documents",
	Long:  "Extracts a structured, hierarchically-annotated CPT code table from an EPUB using a text-generation service",
}

var (
	extractEpubPath     string
	extractStart        int
	extractEnd          int
	extractOutputDir    string
	extractModel        string
	extractChunkSize    int
	extractNoHierarchy  bool
	extractByChapter    bool
	extractStream       bool
	extractSkipCombined bool
	extractSimpleSchema bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract codes from a page range",
	Long: `Extracts CPT codes from the given page range, chunk by chunk.

Each chunk's records are saved to their own JSONL file as soon as they are
parsed, so an interrupted run loses at most the in-flight chunk. Chunks whose
responses cannot be parsed are saved raw for manual recovery and never abort
the run.

Environment variables:
  OPENAI_API_KEY   API key for the generation endpoint (required)
  OPENAI_BASE_URL  OpenAI-compatible endpoint (optional)
  CPT_MODEL        Default model id (optional)`,
	RunE: runExtract,
}

var chaptersCmd = &cobra.Command{
	Use:   "chapters <epub>",
	Short: "Print the page range owned by each chapter file",
	Args:  cobra.ExactArgs(1),
	RunE:  runChapters,
}

var (
	flattenOutput string
)

var flattenCmd = &cobra.Command{
	Use:   "flatten <jsonl-file-or-dir>",
	Short: "Flatten extracted JSONL records into a single CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runFlatten,
}

func init() {
	extractCmd.Flags().StringVar(&extractEpubPath, "epub", "", "Path to the input EPUB file")
	extractCmd.Flags().IntVar(&extractStart, "start", 0, "Start page number")
	extractCmd.Flags().IntVar(&extractEnd, "end", 0, "End page number")
	extractCmd.Flags().StringVar(&extractOutputDir, "output-dir", "cpt_output", "Directory for output JSONL files")
	extractCmd.Flags().StringVar(&extractModel, "model", getEnv("CPT_MODEL", genai.DefaultModel), "Model ID to use")
	extractCmd.Flags().IntVar(&extractChunkSize, "chunk-size", extract.DefaultChunkSize, "Number of pages per chunk")
	extractCmd.Flags().BoolVar(&extractNoHierarchy, "no-hierarchy", false, "Disable hierarchy context retrieval")
	extractCmd.Flags().BoolVar(&extractByChapter, "by-chapter", false, "Process by chapter boundaries instead of fixed page chunks")
	extractCmd.Flags().BoolVar(&extractStream, "stream", false, "Stream the response to show progress")
	extractCmd.Flags().BoolVar(&extractSkipCombined, "skip-combined-output", false, "Do not save the combined output file, only individual chunks")
	extractCmd.Flags().BoolVar(&extractSimpleSchema, "simple-schema", false, "Use a simplified schema (code and description only) to reduce parsing errors")
	_ = extractCmd.MarkFlagRequired("epub")
	_ = extractCmd.MarkFlagRequired("start")
	_ = extractCmd.MarkFlagRequired("end")

	flattenCmd.Flags().StringVarP(&flattenOutput, "output", "o", "cpt_codes.csv", "Output CSV file path")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(chaptersCmd)
	rootCmd.AddCommand(flattenCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	if extractStart <= 0 || extractEnd < extractStart {
		return fmt.Errorf("invalid page range %d-%d", extractStart, extractEnd)
	}

	fmt.Printf("Opening %s...\n", extractEpubPath)
	nav, err := epub.Open(extractEpubPath, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	defer nav.Close()
	fmt.Printf("Indexed %d pages across %d spine files\n", nav.PageCount(), len(nav.Spine()))

	client, err := genai.NewClient(extractModel)
	if err != nil {
		return fmt.Errorf("failed to create generation client: %w", err)
	}

	driver := extract.NewDriver(nav, client, extract.Options{
		Model:        extractModel,
		StartPage:    extractStart,
		EndPage:      extractEnd,
		ChunkSize:    extractChunkSize,
		ByChapter:    extractByChapter,
		UseHierarchy: !extractNoHierarchy,
		Stream:       extractStream,
		SimpleSchema: extractSimpleSchema,
		OutputDir:    extractOutputDir,
		SkipCombined: extractSkipCombined,
	}, slog.Default())

	result, err := driver.Run(ctx)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Extraction complete!")
	fmt.Printf("  Records: %d\n", len(result.Records))
	fmt.Printf("  Chunks: %d/%d\n", result.Chunks-len(result.FailedChunks), result.Chunks)
	fmt.Printf("  Tokens: %d prompt, %d output\n", result.Usage.PromptTokens, result.Usage.OutputTokens)
	fmt.Printf("  Estimated cost: $%.6f\n", result.Cost)
	if result.CombinedPath != "" {
		fmt.Printf("  Combined output: %s\n", result.CombinedPath)
	}

	if len(result.FailedChunks) > 0 {
		fmt.Println()
		fmt.Println("Failed chunks:")
		for _, failed := range result.FailedChunks {
			fmt.Printf("  - pages %d-%d: %s\n", failed.Start, failed.End, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}

func runChapters(cmd *cobra.Command, args []string) error {
	nav, err := epub.Open(args[0], slog.Default())
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	defer nav.Close()

	boundaries := nav.Chapters()
	fmt.Printf("%d chapter files own indexed pages:\n", len(boundaries))
	for _, b := range boundaries {
		fmt.Printf("  %-30s pages %d-%d\n", b.FileID, b.StartPage, b.EndPage)
	}
	return nil
}

func runFlatten(cmd *cobra.Command, args []string) error {
	summary, err := flatten.Flatten(args[0], flattenOutput, slog.Default())
	if err != nil {
		return fmt.Errorf("flatten failed: %w", err)
	}

	fmt.Printf("Converted %d files to %s\n", summary.Files, flattenOutput)
	fmt.Printf("Total records: %d", summary.Records)
	if summary.Skipped > 0 {
		fmt.Printf(" (%d invalid lines skipped)", summary.Skipped)
	}
	fmt.Println()
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
