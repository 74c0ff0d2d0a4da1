package steps

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/clarifai/internal/llm"
	"github.com/ppiankov/clarifai/internal/model"
	"github.com/ppiankov/clarifai/internal/state"
)

// ErrNoGatherer is returned by web verification when no evidence gatherer is configured
var ErrNoGatherer = errors.New("web verification needs an evidence gatherer")

type verifyResponse struct {
	Claims []struct {
		SegmentID   int      `json:"segmentId"`
		Content     string   `json:"content"`
		Verdict     string   `json:"verdict"`
		Explanation string   `json:"explanation"`
		Sources     []string `json:"sources"`
	} `json:"claims"`
}

// VerifyClaimsLLM asks the model to verify claims from its own knowledge
type VerifyClaimsLLM struct {
	llm llm.Client
	log *zap.Logger
}

func (v *VerifyClaimsLLM) Name() string { return NodeVerifyClaimsLLM }

func (v *VerifyClaimsLLM) Run(ctx context.Context, s state.State, _ Emitter) (state.Update, error) {
	start := time.Now()

	var resp verifyResponse
	err := llm.Structured(ctx, v.llm, llm.Request{
		Model:  modelOr(s.Configuration.VerifyClaimsModel),
		System: verifyClaimsSystem,
		Prompt: claimsPrompt(s.ExtractedClaims, verifyClaimsSchema),
	}, &resp)
	if err != nil {
		return state.Update{}, err
	}

	verified := attributeVerdicts(v.log, NodeVerifyClaimsLLM, s.SegmentIndex(), resp, nil)
	v.log.Debug("claims verified",
		zap.String("step", NodeVerifyClaimsLLM),
		zap.Int("claims", len(verified)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	return verifiedUpdate(verified), nil
}

// VerifyClaimsWeb gathers web evidence for each claim, then asks the model to
// judge the claims against that evidence
type VerifyClaimsWeb struct {
	llm      llm.Client
	gatherer EvidenceGatherer
	log      *zap.Logger
}

func (v *VerifyClaimsWeb) Name() string { return NodeVerifyClaimsWeb }

func (v *VerifyClaimsWeb) Run(ctx context.Context, s state.State, _ Emitter) (state.Update, error) {
	if v.gatherer == nil {
		return state.Update{}, ErrNoGatherer
	}
	start := time.Now()

	gathered, err := v.gatherer.Gather(ctx, s.ExtractedClaims)
	if err != nil {
		return state.Update{}, err
	}

	var resp verifyResponse
	err = llm.Structured(ctx, v.llm, llm.Request{
		Model:  modelOr(s.Configuration.VerifyClaimsModel),
		System: verifyClaimsWebSystem,
		Prompt: evidencePrompt(gathered, verifyClaimsSchema),
	}, &resp)
	if err != nil {
		return state.Update{}, err
	}

	// Only sources that were actually looked at may be cited
	allowed := make(map[string]bool)
	for _, ce := range gathered {
		for _, e := range ce.Evidence {
			if e.Fetched || e.Snippet != "" {
				allowed[e.URL] = true
			}
		}
	}

	verified := attributeVerdicts(v.log, NodeVerifyClaimsWeb, s.SegmentIndex(), resp, allowed)
	v.log.Debug("claims verified",
		zap.String("step", NodeVerifyClaimsWeb),
		zap.Int("claims", len(verified)),
		zap.Int("sources", len(allowed)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	return verifiedUpdate(verified), nil
}

// attributeVerdicts keeps the verdicts whose segment exists. A non-nil allowed
// set restricts the cited sources to its members.
func attributeVerdicts(log *zap.Logger, step string, idx model.SegmentIndex, resp verifyResponse, allowed map[string]bool) []model.VerifiedClaim {
	verified := []model.VerifiedClaim{}
	for _, c := range resp.Claims {
		if !idx.Has(c.SegmentID) {
			attributionMiss(log, step, c.SegmentID, c.Content)
			continue
		}

		sources := []string{}
		for _, src := range c.Sources {
			src = strings.TrimSpace(src)
			if src == "" {
				continue
			}
			if allowed != nil && !allowed[src] {
				log.Debug("dropping uncited source", zap.String("step", step), zap.String("source", src))
				continue
			}
			sources = append(sources, src)
		}

		verified = append(verified, model.VerifiedClaim{
			SegmentID:   c.SegmentID,
			Content:     strings.TrimSpace(c.Content),
			Verdict:     model.NormalizeVerdict(c.Verdict),
			Explanation: c.Explanation,
			Sources:     sources,
		})
	}
	return verified
}

func verifiedUpdate(verified []model.VerifiedClaim) state.Update {
	return state.Update{
		VerifiedClaims: verified,
		Events: []model.Event{{
			StepID:  model.StepVerifyClaims,
			Label:   "Claims verified",
			Payload: model.VerifyClaimsPayload{Claims: verified},
		}},
	}
}
