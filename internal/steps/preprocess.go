package steps

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/clarifai/internal/extract"
	"github.com/ppiankov/clarifai/internal/model"
	"github.com/ppiankov/clarifai/internal/splitter"
	"github.com/ppiankov/clarifai/internal/state"
)

// Preprocess cleans the input and partitions it into segments
type Preprocess struct {
	log *zap.Logger
}

func (p *Preprocess) Name() string { return NodePreprocess }

func (p *Preprocess) Run(ctx context.Context, s state.State, _ Emitter) (state.Update, error) {
	if err := ctx.Err(); err != nil {
		return state.Update{}, err
	}
	start := time.Now()
	cfg := s.Configuration

	content := s.OriginalContent
	if cfg.StripHTML && extract.LooksLikeHTML(content) {
		text, err := extract.VisibleText(content)
		if err != nil {
			return state.Update{}, err
		}
		content = text
	}
	cleaned := strings.TrimSpace(content)

	var opts []splitter.Option
	if cfg.SegmentsChunkSize > 0 {
		opts = append(opts, splitter.WithChunkSize(cfg.SegmentsChunkSize))
	}
	if cfg.SegmentsChunkOverlap > 0 {
		opts = append(opts, splitter.WithOverlap(cfg.SegmentsChunkOverlap))
	}

	segments := []model.Segment{}
	for i, chunk := range splitter.New(opts...).Split(cleaned) {
		segments = append(segments, model.Segment{ID: i, Content: chunk})
	}

	p.log.Debug("content preprocessed",
		zap.String("step", NodePreprocess),
		zap.Int("segments", len(segments)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	return state.Update{
		CleanedContent: state.String(cleaned),
		Segments:       segments,
		Events: []model.Event{{
			StepID:  model.StepPreprocess,
			Label:   "Content preprocessed",
			Payload: model.PreprocessPayload{Segments: segments},
		}},
	}, nil
}
