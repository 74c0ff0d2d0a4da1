package steps

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/clarifai/internal/llm"
	"github.com/ppiankov/clarifai/internal/model"
	"github.com/ppiankov/clarifai/internal/state"
)

type claimsResponse struct {
	Claims []struct {
		Index   int    `json:"index"`
		Content string `json:"content"`
	} `json:"claims"`
}

type biasesResponse struct {
	Biases []struct {
		Index           int    `json:"index"`
		Content         string `json:"content"`
		BiasType        string `json:"bias_type"`
		Explanation     string `json:"explanation"`
		TypeExplanation string `json:"type_explanation"`
	} `json:"biases"`
}

// ExtractClaims finds factual claims in every segment with one model call
type ExtractClaims struct {
	llm llm.Client
	log *zap.Logger
}

func (e *ExtractClaims) Name() string { return NodeExtractClaims }

func (e *ExtractClaims) Run(ctx context.Context, s state.State, _ Emitter) (state.Update, error) {
	start := time.Now()
	claims := []model.Claim{}

	if len(s.Segments) > 0 {
		var resp claimsResponse
		err := llm.Structured(ctx, e.llm, llm.Request{
			Model:  modelOr(s.Configuration.ExtractClaimsModel),
			System: extractClaimsSystem,
			Prompt: segmentsPrompt(s.Segments, extractClaimsSchema),
		}, &resp)
		if err != nil {
			return state.Update{}, err
		}

		for _, c := range resp.Claims {
			seg, ok := segmentAt(s.Segments, c.Index)
			if !ok {
				attributionMiss(e.log, NodeExtractClaims, c.Index, c.Content)
				continue
			}
			content := strings.TrimSpace(c.Content)
			if content == "" {
				continue
			}
			claims = append(claims, model.Claim{SegmentID: seg.ID, Content: content})
		}
	}

	e.log.Debug("claims extracted",
		zap.String("step", NodeExtractClaims),
		zap.Int("segments", len(s.Segments)),
		zap.Int("claims", len(claims)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	return state.Update{
		ExtractedClaims: claims,
		Events: []model.Event{{
			StepID:  model.StepExtractClaims,
			Label:   "Claims extracted",
			Payload: model.ExtractClaimsPayload{Claims: claims},
		}},
	}, nil
}

// DetectBiases finds biased passages in every segment with one model call
type DetectBiases struct {
	llm llm.Client
	log *zap.Logger
}

func (d *DetectBiases) Name() string { return NodeDetectBiases }

func (d *DetectBiases) Run(ctx context.Context, s state.State, _ Emitter) (state.Update, error) {
	start := time.Now()
	biases := []model.Bias{}

	if len(s.Segments) > 0 {
		var resp biasesResponse
		err := llm.Structured(ctx, d.llm, llm.Request{
			Model:  modelOr(s.Configuration.BiasDetectionModel),
			System: detectBiasesSystem,
			Prompt: segmentsPrompt(s.Segments, detectBiasesSchema),
		}, &resp)
		if err != nil {
			return state.Update{}, err
		}

		for _, b := range resp.Biases {
			seg, ok := segmentAt(s.Segments, b.Index)
			if !ok {
				attributionMiss(d.log, NodeDetectBiases, b.Index, b.Content)
				continue
			}
			content := strings.TrimSpace(b.Content)
			if content == "" {
				// Whole segment is the biased passage
				content = seg.Content
			}
			biasType := strings.ToLower(strings.TrimSpace(b.BiasType))
			if biasType == "" {
				biasType = "other"
			}
			biases = append(biases, model.Bias{
				SegmentID:       seg.ID,
				Content:         content,
				BiasType:        biasType,
				Explanation:     b.Explanation,
				TypeExplanation: b.TypeExplanation,
			})
		}
	}

	d.log.Debug("biases detected",
		zap.String("step", NodeDetectBiases),
		zap.Int("segments", len(s.Segments)),
		zap.Int("biases", len(biases)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	return state.Update{
		ExtractedBiases: biases,
		Events: []model.Event{{
			StepID:  model.StepDetectBiases,
			Label:   "Biases detected",
			Payload: model.DetectBiasesPayload{Biases: biases},
		}},
	}, nil
}

// segmentAt resolves a positional index from model output
func segmentAt(segments []model.Segment, index int) (model.Segment, bool) {
	if index < 0 || index >= len(segments) {
		return model.Segment{}, false
	}
	return segments[index], true
}

func attributionMiss(log *zap.Logger, step string, ref int, content string) {
	log.Warn("dropping finding with unknown segment",
		zap.String("step", step),
		zap.Int("segment_ref", ref),
		zap.String("content", content))
}
