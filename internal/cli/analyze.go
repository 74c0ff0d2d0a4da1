package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ppiankov/clarifai/internal/model"
	"github.com/ppiankov/clarifai/internal/pipeline"
	"github.com/ppiankov/clarifai/internal/state"
)

var (
	outJSON      string
	outMD        string
	timeout      time.Duration
	verification string
	modelName    string
	chunkSize    int
	noCache      bool
	stripHTML    bool
	noStream     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a text file (or stdin) and print the report",
	Long: `Analyze runs a document through the full pipeline:
- Split the text into segments
- Extract factual claims and detect biased phrasing in parallel
- Verify the claims with a language model or with live web sources
- Write a report with a reliability index

The report text is streamed to stdout as it is generated.

Example:
  clarifai analyze article.txt
  cat article.txt | clarifai analyze
  clarifai analyze article.html --strip-html --verification web --json report.json --md report.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	analyzeCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall analysis timeout")
	analyzeCmd.Flags().BoolVar(&noStream, "no-stream", false, "print the report only once it is complete")
	addRunFlags(analyzeCmd.Flags())
}

// addRunFlags registers the flags shared by every command that runs the pipeline locally
func addRunFlags(fs *pflag.FlagSet) {
	fs.StringVar(&verification, "verification", model.VerificationLLM, "claim verification source (llm, web)")
	fs.StringVar(&modelName, "model", "", "model used by every step (overrides the per-step models)")
	fs.IntVar(&chunkSize, "chunk-size", 0, "segment size in characters")
	fs.BoolVar(&noCache, "no-cache", false, "disable the model response cache")
	fs.BoolVar(&stripHTML, "strip-html", false, "reduce HTML input to its visible text")
}

// applyRunFlags overrides the loaded config with the flags the user set
func applyRunFlags(cmd *cobra.Command, cfg *model.Config) error {
	fs := cmd.Flags()
	if fs.Changed("verification") {
		if verification != model.VerificationLLM && verification != model.VerificationWeb {
			return fmt.Errorf("unknown verification source %q (supported: llm, web)", verification)
		}
		cfg.Pipeline.ClaimVerificationSource = verification
	}
	if modelName != "" {
		cfg.Models = model.ModelsConfig{
			ExtractClaims: modelName,
			VerifyClaims:  modelName,
			BiasDetection: modelName,
			Aggregation:   modelName,
		}
	}
	if chunkSize > 0 {
		cfg.Pipeline.SegmentsChunkSize = chunkSize
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if stripHTML {
		cfg.Pipeline.StripHTML = true
	}
	return nil
}

// newLocalPipeline loads the config and wires a pipeline in process
func newLocalPipeline(cmd *cobra.Command) (*pipeline.Pipeline, *model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return nil, nil, err
	}
	client, err := newModelClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create model client: %w", err)
	}
	return pipeline.NewFromConfig(cfg, client, logger), cfg, nil
}

func readInput(args []string, stdin io.Reader) (source string, content string, err error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return "stdin", string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return args[0], string(data), nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	source, content, err := readInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	p, cfg, err := newLocalPipeline(cmd)
	if err != nil {
		return err
	}
	runCfg := state.ConfigurationFrom(cfg)
	if noStream {
		runCfg.StreamReport = false
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	run := p.NewRun(content, runCfg)
	chunks, err := run.Start(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	streamed := false
	for c := range chunks {
		switch c.Kind {
		case pipeline.ChunkToken:
			streamed = true
			fmt.Fprint(out, c.Token)
		case pipeline.ChunkUpdate:
			logger.Debug("step finished", zap.String("step", c.Node), zap.Strings("fields", c.Update.Fields()))
		}
	}

	final, err := run.Wait()
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	if streamed {
		fmt.Fprintln(out)
	} else {
		fmt.Fprintln(out, final.Report)
	}

	report := pipeline.BuildReport(run.ID, source, final)
	renderer := pipeline.NewRenderer()
	renderer.RenderSummary(cmd.ErrOrStderr(), report)

	if outJSON != "" {
		if err := renderer.RenderJSON(report, outJSON); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(report, outMD); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
	}
	return nil
}
