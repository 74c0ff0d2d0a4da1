package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/clarifai/internal/model"
	"github.com/ppiankov/clarifai/internal/state"
)

// BuildReport assembles the report of a finished run. Score and details come
// from the reporter event.
func BuildReport(runID, source string, st state.State) *model.Report {
	report := &model.Report{
		RunID:          runID,
		Source:         source,
		AnalyzedAt:     time.Now().UTC(),
		Segments:       st.Segments,
		Claims:         st.ExtractedClaims,
		Biases:         st.ExtractedBiases,
		VerifiedClaims: st.VerifiedClaims,
		Summary:        st.Report,
	}
	for _, ev := range st.Events {
		if p, ok := ev.Payload.(model.ReporterPayload); ok {
			if p.Score != nil {
				report.Score = *p.Score
			}
			report.Details = p.Details
		}
	}
	return report
}

// Analyzer runs whole documents through the pipeline with a fixed run configuration
type Analyzer struct {
	Pipeline *Pipeline
	Config   state.Configuration
}

// Analyze runs content to completion and builds its report
func (a *Analyzer) Analyze(ctx context.Context, source, content string) (*model.Report, error) {
	run := a.Pipeline.NewRun(content, a.Config)
	st, err := run.Invoke(ctx)
	if err != nil {
		return nil, err
	}
	return BuildReport(run.ID, source, st), nil
}

// Renderer writes reports as JSON and Markdown
type Renderer struct{}

// NewRenderer creates a renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the report as Markdown
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	var sb strings.Builder
	r.WriteMarkdown(&sb, report)
	return writeFile(path, []byte(sb.String()))
}

// WriteMarkdown renders the report as Markdown to w
func (r *Renderer) WriteMarkdown(w io.Writer, report *model.Report) {
	fmt.Fprintf(w, "# Reliability report: %s\n\n", report.Source)
	fmt.Fprintf(w, "- Run: `%s`\n", report.RunID)
	fmt.Fprintf(w, "- Analyzed: %s\n", report.AnalyzedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "- Reliability index: **%d/100** (confidence: %s)\n\n", report.Score.Index, report.Score.Confidence)

	fmt.Fprintf(w, "## Summary\n\n%s\n\n", strings.TrimSpace(report.Summary))

	if len(report.Score.Signals) > 0 {
		fmt.Fprintf(w, "## Signals\n\n")
		for _, s := range report.Score.Signals {
			fmt.Fprintf(w, "- **%s** (%s): %s\n", s.Type, s.Severity, s.Description)
		}
		fmt.Fprintln(w)
	}

	if len(report.Details) > 0 {
		fmt.Fprintf(w, "## Findings by segment\n\n")
		for _, d := range report.Details {
			fmt.Fprintf(w, "### Segment %d\n\n> %s\n\n", d.ID, strings.ReplaceAll(strings.TrimSpace(d.Content), "\n", "\n> "))
			for _, c := range d.Claims {
				fmt.Fprintf(w, "- Claim `%s`: %s", c.Verdict, c.Content)
				if c.Explanation != "" {
					fmt.Fprintf(w, " (%s)", c.Explanation)
				}
				if len(c.Sources) > 0 {
					fmt.Fprintf(w, " [sources: %s]", strings.Join(c.Sources, ", "))
				}
				fmt.Fprintln(w)
			}
			for _, b := range d.Biases {
				fmt.Fprintf(w, "- Bias `%s`: %s", b.BiasType, b.Content)
				if b.Explanation != "" {
					fmt.Fprintf(w, " (%s)", b.Explanation)
				}
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w)
		}
	}
}

// RenderSummary prints a short summary of the report
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	counts := make(map[model.Verdict]int)
	for _, c := range report.VerifiedClaims {
		counts[c.Verdict]++
	}

	fmt.Fprintf(w, "\n%s\n", report.Source)
	fmt.Fprintf(w, "  Reliability index: %d/100 (%s confidence)\n", report.Score.Index, report.Score.Confidence)
	fmt.Fprintf(w, "  Segments: %d  Claims: %d  Biases: %d\n", len(report.Segments), len(report.Claims), len(report.Biases))
	fmt.Fprintf(w, "  Verdicts: %d true, %d partially true, %d false, %d unverifiable\n",
		counts[model.VerdictTrue], counts[model.VerdictPartiallyTrue], counts[model.VerdictFalse], counts[model.VerdictUnverifiable])
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
