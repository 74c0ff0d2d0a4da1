package steps

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/clarifai/internal/llm"
	"github.com/ppiankov/clarifai/internal/model"
	"github.com/ppiankov/clarifai/internal/score"
	"github.com/ppiankov/clarifai/internal/state"
	"github.com/ppiankov/clarifai/internal/validate"
)

// NothingToVerify is the report used when the model returns no text for a run without findings
const NothingToVerify = "Nothing to verify: the text contains no factual claims and no detectable bias."

// Reporter writes the final report from the joined state. With StreamReport set
// the text is streamed through the emitter as it is generated.
type Reporter struct {
	llm        llm.Client
	scorer     *score.Scorer
	classifier *validate.AuthorityClassifier
	log        *zap.Logger
}

func (r *Reporter) Name() string { return NodeReporter }

func (r *Reporter) Run(ctx context.Context, s state.State, emit Emitter) (state.Update, error) {
	start := time.Now()

	evidence := r.citedEvidence(s.VerifiedClaims, s.Configuration.VerifiesOnWeb())
	sc := r.scorer.Calculate(s.Segments, s.VerifiedClaims, s.ExtractedBiases, evidence)
	details := model.GroupBySegment(s.Segments, s.VerifiedClaims, s.ExtractedBiases)

	req := llm.Request{
		Model:  modelOr(s.Configuration.AggregationModel),
		System: reporterSystem,
		Prompt: reportPrompt(s.VerifiedClaims, s.ExtractedBiases, sc),
	}

	var (
		text string
		err  error
	)
	streamed := s.Configuration.StreamReport && emit != nil
	if streamed {
		text, err = r.llm.Stream(ctx, req, func(tok string) {
			if tok != "" {
				emit(tok)
			}
		})
	} else {
		text, err = r.llm.Complete(ctx, req)
	}
	if err != nil {
		return state.Update{}, err
	}

	if strings.TrimSpace(text) == "" {
		text = fallbackReport(s, sc)
		if streamed {
			emit(text)
		}
	}

	r.log.Debug("report generated",
		zap.String("step", NodeReporter),
		zap.Int("claims", len(s.VerifiedClaims)),
		zap.Int("biases", len(s.ExtractedBiases)),
		zap.Int("score", sc.Index),
		zap.Bool("streamed", streamed),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	return state.Update{
		Report: state.String(text),
		Events: []model.Event{{
			StepID:  model.StepReporter,
			Label:   "Report generated",
			Payload: model.ReporterPayload{Report: text, Score: &sc, Details: details},
		}},
	}, nil
}

// citedEvidence turns the http(s) sources cited by verified claims into
// classified evidence for scoring. Sources only count as fetched when they
// came from web verification.
func (r *Reporter) citedEvidence(claims []model.VerifiedClaim, fetched bool) []model.Evidence {
	seen := make(map[string]bool)
	var out []model.Evidence
	for _, c := range claims {
		for _, src := range c.Sources {
			u, err := url.Parse(src)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				continue
			}
			if seen[src] {
				continue
			}
			seen[src] = true
			out = append(out, model.Evidence{URL: src, Fetched: fetched})
		}
	}
	r.classifier.Annotate(out)
	return out
}

func fallbackReport(s state.State, sc model.Score) string {
	if len(s.VerifiedClaims) == 0 && len(s.ExtractedBiases) == 0 {
		return NothingToVerify
	}
	return fmt.Sprintf("Reliability index %d/100 (%s confidence): %d verified claims, %d biases detected.",
		sc.Index, sc.Confidence, len(s.VerifiedClaims), len(s.ExtractedBiases))
}
