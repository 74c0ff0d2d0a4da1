package score

import (
	"testing"

	"github.com/ppiankov/clarifai/internal/model"
)

func segments(n int) []model.Segment {
	out := make([]model.Segment, n)
	for i := range out {
		out[i] = model.Segment{ID: i, Content: "segment"}
	}
	return out
}

func findSignal(signals []model.Signal, t model.SignalType) (model.Signal, bool) {
	for _, s := range signals {
		if s.Type == t {
			return s, true
		}
	}
	return model.Signal{}, false
}

func TestScorer_AllTrueWithPrimarySources(t *testing.T) {
	claims := []model.VerifiedClaim{
		{SegmentID: 0, Verdict: model.VerdictTrue},
		{SegmentID: 1, Verdict: model.VerdictTrue},
		{SegmentID: 2, Verdict: model.VerdictTrue},
	}
	evidence := []model.Evidence{{URL: "https://who.int/x", Authority: model.TierPrimary, Fetched: true}}

	score := NewScorer().Calculate(segments(3), claims, nil, evidence)

	if score.Index != 100 {
		t.Errorf("Expected index 100, got %d", score.Index)
	}
	if score.Confidence != "high" {
		t.Errorf("Expected high confidence, got %s", score.Confidence)
	}
	if _, ok := findSignal(score.Signals, model.SignalFalseClaims); ok {
		t.Error("Did not expect a false_claims signal")
	}
}

func TestScorer_NoClaims(t *testing.T) {
	score := NewScorer().Calculate(nil, nil, nil, nil)

	if score.Index != 65 {
		t.Errorf("Expected neutral index 65, got %d", score.Index)
	}
	if score.Confidence != "low" {
		t.Errorf("Expected low confidence, got %s", score.Confidence)
	}
	if _, ok := findSignal(score.Signals, model.SignalNoClaims); !ok {
		t.Error("Expected a no_claims signal")
	}
	if len(score.Signals) != 5 {
		t.Errorf("Expected 5 signals, got %d", len(score.Signals))
	}
}

func TestScorer_FalseClaimsAndBias(t *testing.T) {
	claims := []model.VerifiedClaim{
		{SegmentID: 0, Verdict: model.VerdictTrue},
		{SegmentID: 0, Verdict: model.VerdictFalse},
	}
	biases := []model.Bias{{SegmentID: 0}, {SegmentID: 0}}

	score := NewScorer().Calculate(segments(1), claims, biases, nil)

	// verdict 25 + unverifiable 10 + bias 0 + authority 5
	if score.Index != 40 {
		t.Errorf("Expected index 40, got %d", score.Index)
	}

	sig, ok := findSignal(score.Signals, model.SignalFalseClaims)
	if !ok {
		t.Fatal("Expected a false_claims signal")
	}
	if sig.Severity != model.SeverityCritical {
		t.Errorf("Expected critical severity, got %s", sig.Severity)
	}

	bias, _ := findSignal(score.Signals, model.SignalBiasDensity)
	if bias.Severity != model.SeverityCritical {
		t.Errorf("Expected critical bias density, got %s", bias.Severity)
	}
}

func TestScorer_UnfetchedEvidenceIgnored(t *testing.T) {
	evidence := []model.Evidence{
		{URL: "https://who.int/x", Authority: model.TierPrimary, Fetched: false},
		{URL: "https://blog.example/x", Authority: model.TierTertiary, Fetched: true},
	}

	sig, _ := findSignal(NewScorer().Calculate(nil, nil, nil, evidence).Signals, model.SignalSourceAuthority)
	if sig.Data["total"] != 1 {
		t.Errorf("Expected only fetched sources to count, got %v", sig.Data["total"])
	}
	if sig.Severity != model.SeverityWarning {
		t.Errorf("Expected warning without primary sources, got %s", sig.Severity)
	}
}

func TestScorer_NormalizesRawVerdicts(t *testing.T) {
	claims := []model.VerifiedClaim{
		{Verdict: "Partially True"},
		{Verdict: "mixed"},
		{Verdict: "nonsense"},
	}
	sig, _ := findSignal(NewScorer().Calculate(segments(1), claims, nil, nil).Signals, model.SignalVerdictMix)
	if sig.Data["partially_true"] != 2 || sig.Data["unverifiable"] != 1 {
		t.Errorf("Unexpected verdict counts: %v", sig.Data)
	}
}
