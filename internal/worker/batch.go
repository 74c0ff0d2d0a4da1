package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/clarifai/internal/model"
)

// Analyzer runs a full analysis over one document
type Analyzer interface {
	Analyze(ctx context.Context, source, content string) (*model.Report, error)
}

// DocumentResult is the outcome of analysing one file
type DocumentResult struct {
	Path   string
	Report *model.Report
	Error  error
}

// BatchProcessor analyses many documents concurrently
type BatchProcessor struct {
	analyzer Analyzer
	pool     *Pool
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer: analyzer,
		pool:     NewPool(concurrency),
	}
}

// ProcessPaths reads and analyses each file. Results are in input order.
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*DocumentResult {
	tasks := make([]Task[*model.Report], len(paths))
	for i, path := range paths {
		path := path
		tasks[i] = func(ctx context.Context) (*model.Report, error) {
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read document: %w", err)
			}
			return b.analyzer.Analyze(ctx, path, string(content))
		}
	}

	outcomes := Run(ctx, b.pool, tasks)

	results := make([]*DocumentResult, len(outcomes))
	for i, o := range outcomes {
		results[i] = &DocumentResult{Path: paths[i], Report: o.Value, Error: o.Err}
		if o.Err != nil {
			results[i].Report = nil
		}
	}
	return results
}

// ProcessFile reads document paths from a list file and processes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, listPath string) ([]*DocumentResult, error) {
	paths, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read paths: %w", err)
	}

	return b.ProcessPaths(ctx, paths), nil
}

// ReadPathsFromFile reads one path per line, skipping blanks, comments and duplicates
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
