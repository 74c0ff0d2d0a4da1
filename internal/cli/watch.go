package cli

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ppiankov/clarifai/internal/client"
	"github.com/ppiankov/clarifai/internal/store"
)

var watchURL string

var watchCmd = &cobra.Command{
	Use:   "watch [file]",
	Short: "Send a document to a running server and follow the analysis",
	Long: `Watch posts a document (or stdin) to a clarifai server, prints stage
progress while events arrive, then prints the text with its findings marked.

Example:
  clarifai watch article.txt
  clarifai watch article.txt --url http://analysis.internal:8080/api/clarify`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchURL, "url", "http://localhost:8080/api/clarify", "analysis endpoint")
}

func runWatch(cmd *cobra.Command, args []string) error {
	_, content, err := readInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	s := store.New(client.NewConsumer(watchURL, &http.Client{}, logger), logger)

	progress := cmd.ErrOrStderr()
	var (
		mu   sync.Mutex
		seen = store.Empty().GraphLog
	)
	s.Subscribe(func(snap store.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		for _, stage := range store.Stages {
			if status := snap.GraphLog[stage]; status != seen[stage] {
				fmt.Fprintf(progress, "  %-18s %s\n", stage, status)
				seen[stage] = status
			}
		}
	})

	if err := s.Clarify(cmd.Context(), content); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	printAnnotated(cmd.OutOrStdout(), s.Snapshot())
	return nil
}

// printAnnotated writes every chunk with its findings in brackets, then the report
func printAnnotated(w io.Writer, snap store.Snapshot) {
	fmt.Fprintln(w)
	for _, chunk := range snap.Chunks {
		var b strings.Builder
		var notes []string
		for _, f := range store.Fragments(chunk.Content, chunk.Annotations) {
			if len(f.Annotations) == 0 {
				b.WriteString(f.Text)
				continue
			}
			fmt.Fprintf(&b, "[%s]", f.Text)
			for _, a := range f.Annotations {
				if a.Start != f.Start {
					continue
				}
				notes = append(notes, describe(a))
			}
		}
		fmt.Fprintln(w, b.String())
		for _, n := range notes {
			fmt.Fprintf(w, "    %s\n", n)
		}
		fmt.Fprintln(w)
	}

	if snap.Score != nil {
		fmt.Fprintf(w, "Reliability index: %d/100 (%s confidence)\n\n", snap.Score.Index, snap.Score.Confidence)
	}
	fmt.Fprintln(w, snap.Report)
}

func describe(a store.Annotation) string {
	switch {
	case a.Claim != nil:
		return fmt.Sprintf("claim `%s`: %s", a.Claim.Verdict, a.Claim.Explanation)
	case a.Bias != nil:
		return fmt.Sprintf("bias (%s): %s", a.Bias.BiasType, a.Bias.Explanation)
	default:
		return string(a.Type)
	}
}
