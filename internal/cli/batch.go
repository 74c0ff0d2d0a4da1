package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/clarifai/internal/pipeline"
	"github.com/ppiankov/clarifai/internal/state"
	"github.com/ppiankov/clarifai/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

var batchCmd = &cobra.Command{
	Use:   "batch <list-file>",
	Short: "Analyze many documents in parallel",
	Long: `Batch analyzes every document listed in a file (one path per line):
- Documents are processed concurrently with a bounded worker count
- Model calls share one rate limiter and one response cache
- A JSON and a Markdown report are written per document

Example:
  clarifai batch docs.txt
  clarifai batch docs.txt --concurrency 8 --output-dir ./reports
  clarifai batch docs.txt --verification web --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./clarifai-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	addRunFlags(batchCmd.Flags())
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	p, cfg, err := newLocalPipeline(cmd)
	if err != nil {
		return err
	}
	runCfg := state.ConfigurationFrom(cfg)
	// Nobody reads tokens in batch mode
	runCfg.StreamReport = false

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Clarifai Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Verification: %s\n", runCfg.ClaimVerificationSource)
	fmt.Fprintf(os.Stderr, "  Provider:     %s\n", cfg.LLM.Provider)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	processor := worker.NewBatchProcessor(&pipeline.Analyzer{Pipeline: p, Config: runCfg}, concurrency)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := pipeline.NewRenderer()
	successCount, failureCount := 0, 0
	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		slug := sanitizeFilename(result.Path)
		if err := renderer.RenderJSON(result.Report, filepath.Join(outputDir, slug+".json")); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Path, err)
			continue
		}
		if err := renderer.RenderMarkdown(result.Report, filepath.Join(outputDir, slug+".md")); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Path, err)
			continue
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s (index: %d/100)\n", result.Path, result.Report.Score.Index)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d documents failed", failureCount, len(results))
	}
	return nil
}

var filenameReplacer = strings.NewReplacer(
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// sanitizeFilename turns a document path into a report file name
func sanitizeFilename(path string) string {
	s := filepath.Base(filepath.Clean(path))
	s = strings.TrimSuffix(s, filepath.Ext(s))
	s = filenameReplacer.Replace(s)
	if s == "" || s == "." {
		s = "report"
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
