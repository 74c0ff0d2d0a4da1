// Package state holds the analysis state threaded through a pipeline run and
// the per-field policy used to merge partial updates into it.
package state

import (
	"github.com/ppiankov/clarifai/internal/model"
)

// Configuration holds the immutable parameters of one run
type Configuration struct {
	ClaimVerificationSource string `json:"claimVerificationSource"` // "llm" or "web"
	ExtractClaimsModel      string `json:"extractClaimsModel"`
	VerifyClaimsModel       string `json:"verifyClaimsModel"`
	BiasDetectionModel      string `json:"biasDetectionModel"`
	AggregationModel        string `json:"aggregationModel"`
	SegmentsChunkSize       int    `json:"segmentsChunkSize"`
	SegmentsChunkOverlap    int    `json:"segmentsChunkOverlap"`
	StreamReport            bool   `json:"streamReport"`
	StripHTML               bool   `json:"stripHtml"`
}

// ConfigurationFrom derives the run configuration from the application config
func ConfigurationFrom(cfg *model.Config) Configuration {
	return Configuration{
		ClaimVerificationSource: cfg.Pipeline.ClaimVerificationSource,
		ExtractClaimsModel:      cfg.Models.ExtractClaims,
		VerifyClaimsModel:       cfg.Models.VerifyClaims,
		BiasDetectionModel:      cfg.Models.BiasDetection,
		AggregationModel:        cfg.Models.Aggregation,
		SegmentsChunkSize:       cfg.Pipeline.SegmentsChunkSize,
		SegmentsChunkOverlap:    cfg.Pipeline.SegmentsChunkOverlap,
		StreamReport:            cfg.Pipeline.StreamReport,
		StripHTML:               cfg.Pipeline.StripHTML,
	}
}

// VerifiesOnWeb reports whether claims are verified with live web lookups
func (c Configuration) VerifiesOnWeb() bool {
	return c.ClaimVerificationSource == model.VerificationWeb
}

// State is the single source of truth of a run.
// Findings reference segments through SegmentID only.
type State struct {
	OriginalContent string
	CleanedContent  string
	Configuration   Configuration

	Segments        []model.Segment
	ExtractedClaims []model.Claim
	ExtractedBiases []model.Bias
	VerifiedClaims  []model.VerifiedClaim

	Report string
	Events []model.Event
}

// New returns the initial state of a run
func New(content string, cfg Configuration) State {
	return State{
		OriginalContent: content,
		Configuration:   cfg,
	}
}

// Clone returns a copy whose slices do not alias s
func (s State) Clone() State {
	out := s
	out.Segments = cloneSlice(s.Segments)
	out.ExtractedClaims = cloneSlice(s.ExtractedClaims)
	out.ExtractedBiases = cloneSlice(s.ExtractedBiases)
	out.VerifiedClaims = cloneSlice(s.VerifiedClaims)
	out.Events = cloneSlice(s.Events)
	return out
}

// SegmentIndex returns a lookup of the current segments
func (s State) SegmentIndex() model.SegmentIndex {
	return model.IndexSegments(s.Segments)
}

// Update is the partial result of one step. A nil field is absent and leaves the
// state untouched; scalar fields replace, accumulating fields append.
type Update struct {
	OriginalContent *string
	CleanedContent  *string
	Configuration   *Configuration
	Report          *string

	Segments        []model.Segment
	ExtractedClaims []model.Claim
	ExtractedBiases []model.Bias
	VerifiedClaims  []model.VerifiedClaim
	Events          []model.Event
}

// String returns a pointer to s, for building updates
func String(s string) *string {
	return &s
}

// FirstEvent returns the first event carried by the update, if any
func (u Update) FirstEvent() (model.Event, bool) {
	if len(u.Events) == 0 {
		return model.Event{}, false
	}
	return u.Events[0], true
}

// Fields lists the fields the update supplies, in declaration order
func (u Update) Fields() []string {
	var names []string
	for _, f := range Fields {
		if f.present(u) {
			names = append(names, f.Name)
		}
	}
	return names
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
