// Package steps implements the analysis steps run by the pipeline. A step reads
// a snapshot of the state and returns a partial update; it never mutates shared state.
package steps

import (
	"context"

	"go.uber.org/zap"

	"github.com/ppiankov/clarifai/internal/llm"
	"github.com/ppiankov/clarifai/internal/model"
	"github.com/ppiankov/clarifai/internal/score"
	"github.com/ppiankov/clarifai/internal/state"
	"github.com/ppiankov/clarifai/internal/validate"
)

// Graph node names. Both verification nodes report events as model.StepVerifyClaims.
const (
	NodePreprocess      = "preprocess"
	NodeExtractClaims   = "extractClaims"
	NodeDetectBiases    = "detectBiases"
	NodeVerifyClaimsWeb = "verifyClaimsWeb"
	NodeVerifyClaimsLLM = "verifyClaimsLlm"
	NodeReporter        = "reporter"
)

// Emitter receives streamed text fragments while a step runs
type Emitter func(token string)

// Step is one node of the analysis graph
type Step interface {
	Name() string
	Run(ctx context.Context, s state.State, emit Emitter) (state.Update, error)
}

// EvidenceGatherer looks up web evidence for claims
type EvidenceGatherer interface {
	Gather(ctx context.Context, claims []model.Claim) ([]model.ClaimEvidence, error)
}

// Deps are the collaborators shared by the steps
type Deps struct {
	LLM        llm.Client
	Gatherer   EvidenceGatherer // only needed for web verification
	Scorer     *score.Scorer
	Classifier *validate.AuthorityClassifier
	Log        *zap.Logger
}

// Set is the full collection of steps making up the graph
type Set struct {
	Preprocess      Step
	ExtractClaims   Step
	DetectBiases    Step
	VerifyClaimsWeb Step
	VerifyClaimsLLM Step
	Reporter        Step
}

// NewSet builds every step from deps
func NewSet(deps Deps) Set {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Scorer == nil {
		deps.Scorer = score.NewScorer()
	}
	if deps.Classifier == nil {
		deps.Classifier = validate.NewAuthorityClassifier(nil)
	}
	log := deps.Log.Named("steps")

	return Set{
		Preprocess:      &Preprocess{log: log},
		ExtractClaims:   &ExtractClaims{llm: deps.LLM, log: log},
		DetectBiases:    &DetectBiases{llm: deps.LLM, log: log},
		VerifyClaimsWeb: &VerifyClaimsWeb{llm: deps.LLM, gatherer: deps.Gatherer, log: log},
		VerifyClaimsLLM: &VerifyClaimsLLM{llm: deps.LLM, log: log},
		Reporter:        &Reporter{llm: deps.LLM, scorer: deps.Scorer, classifier: deps.Classifier, log: log},
	}
}

// modelOr falls back to the default model when the run configuration leaves it empty
func modelOr(name string) string {
	if name == "" {
		return model.DefaultConfig().Models.ExtractClaims
	}
	return name
}
