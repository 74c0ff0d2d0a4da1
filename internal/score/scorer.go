package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/clarifai/internal/model"
)

// Scorer turns verdicts, biases and sources into a reliability index with signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate computes the reliability index (0-100) and its diagnostic signals.
// evidence may be empty when claims were verified from model knowledge only.
func (s *Scorer) Calculate(segments []model.Segment, claims []model.VerifiedClaim, biases []model.Bias, evidence []model.Evidence) model.Score {
	var signals []model.Signal

	if len(claims) == 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalNoClaims,
			Severity:    model.SeverityInfo,
			Description: "No verifiable claims found",
			Data:        map[string]interface{}{"segments": len(segments)},
		})
	}

	// 1. Verdict mix (0-50 points)
	verdictScore, verdictSignal := s.verdictMix(claims)
	signals = append(signals, verdictSignal)

	// 2. False claims (signal only, folded into the verdict mix)
	if sig, ok := s.falseClaims(claims); ok {
		signals = append(signals, sig)
	}

	// 3. Unverifiable share (0-10 points)
	unverifiableScore, unverifiableSignal := s.unverifiable(claims)
	signals = append(signals, unverifiableSignal)

	// 4. Bias density (0-30 points)
	biasScore, biasSignal := s.biasDensity(segments, biases)
	signals = append(signals, biasSignal)

	// 5. Source authority (0-10 points)
	authorityScore, authoritySignal := s.sourceAuthority(evidence)
	signals = append(signals, authoritySignal)

	total := verdictScore + unverifiableScore + biasScore + authorityScore
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}

	return model.Score{
		Index:      total,
		Confidence: s.determineConfidence(total, len(claims), len(evidence)),
		Signals:    signals,
	}
}

func (s *Scorer) verdictMix(claims []model.VerifiedClaim) (int, model.Signal) {
	if len(claims) == 0 {
		return 25, model.Signal{
			Type:        model.SignalVerdictMix,
			Severity:    model.SeverityInfo,
			Description: "No verdicts to weigh (assuming neutral)",
			Data:        map[string]interface{}{"claims": 0, "score": 25},
		}
	}

	counts := countVerdicts(claims)
	weighted := float64(counts[model.VerdictTrue]) +
		0.5*float64(counts[model.VerdictPartiallyTrue]) +
		0.25*float64(counts[model.VerdictUnverifiable])
	ratio := weighted / float64(len(claims))
	score := int(math.Round(ratio * 50))

	severity := model.SeverityInfo
	if ratio < 0.4 {
		severity = model.SeverityCritical
	} else if ratio < 0.7 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalVerdictMix,
		Severity:    severity,
		Description: fmt.Sprintf("Verdicts: %d true, %d partially true, %d false, %d unverifiable", counts[model.VerdictTrue], counts[model.VerdictPartiallyTrue], counts[model.VerdictFalse], counts[model.VerdictUnverifiable]),
		Data: map[string]interface{}{
			"true":           counts[model.VerdictTrue],
			"partially_true": counts[model.VerdictPartiallyTrue],
			"false":          counts[model.VerdictFalse],
			"unverifiable":   counts[model.VerdictUnverifiable],
			"ratio":          ratio,
			"score":          score,
			"formula":        "(true + 0.5*partially_true + 0.25*unverifiable) / claims * 50",
		},
	}
}

func (s *Scorer) falseClaims(claims []model.VerifiedClaim) (model.Signal, bool) {
	n := countVerdicts(claims)[model.VerdictFalse]
	if n == 0 {
		return model.Signal{}, false
	}

	ratio := float64(n) / float64(len(claims))
	severity := model.SeverityWarning
	if ratio > 0.3 {
		severity = model.SeverityCritical
	}

	return model.Signal{
		Type:        model.SignalFalseClaims,
		Severity:    severity,
		Description: fmt.Sprintf("%d of %d claims found false", n, len(claims)),
		Data:        map[string]interface{}{"false": n, "claims": len(claims), "ratio": ratio},
	}, true
}

func (s *Scorer) unverifiable(claims []model.VerifiedClaim) (int, model.Signal) {
	if len(claims) == 0 {
		return 5, model.Signal{
			Type:        model.SignalUnverifiable,
			Severity:    model.SeverityInfo,
			Description: "No claims to verify",
			Data:        map[string]interface{}{"claims": 0, "score": 5},
		}
	}

	n := countVerdicts(claims)[model.VerdictUnverifiable]
	ratio := float64(n) / float64(len(claims))
	score := int(math.Round((1 - ratio) * 10))

	severity := model.SeverityInfo
	if ratio > 0.5 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalUnverifiable,
		Severity:    severity,
		Description: fmt.Sprintf("Unverifiable: %d/%d (%.0f%%)", n, len(claims), ratio*100),
		Data: map[string]interface{}{
			"unverifiable": n,
			"claims":       len(claims),
			"ratio":        ratio,
			"score":        score,
			"formula":      "(1 - unverifiable / claims) * 10",
		},
	}
}

func (s *Scorer) biasDensity(segments []model.Segment, biases []model.Bias) (int, model.Signal) {
	if len(segments) == 0 {
		return 30, model.Signal{
			Type:        model.SignalBiasDensity,
			Severity:    model.SeverityInfo,
			Description: "No segments analysed",
			Data:        map[string]interface{}{"segments": 0, "biases": len(biases), "score": 30},
		}
	}

	density := float64(len(biases)) / float64(len(segments))
	score := int(math.Round(math.Max(0, 1-density) * 30))

	severity := model.SeverityInfo
	if density >= 1 {
		severity = model.SeverityCritical
	} else if density >= 0.5 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalBiasDensity,
		Severity:    severity,
		Description: fmt.Sprintf("Bias density: %d biases over %d segments", len(biases), len(segments)),
		Data: map[string]interface{}{
			"biases":   len(biases),
			"segments": len(segments),
			"density":  density,
			"score":    score,
			"formula":  "max(0, 1 - biases / segments) * 30",
		},
	}
}

// sourceAuthority scores the authority distribution of fetched sources (0-10 points)
func (s *Scorer) sourceAuthority(evidence []model.Evidence) (int, model.Signal) {
	var primary, secondary, tertiary int
	for _, e := range evidence {
		if !e.Fetched {
			continue
		}
		switch e.Authority {
		case model.TierPrimary:
			primary++
		case model.TierSecondary:
			secondary++
		default:
			tertiary++
		}
	}

	total := primary + secondary + tertiary
	if total == 0 {
		return 5, model.Signal{
			Type:        model.SignalSourceAuthority,
			Severity:    model.SeverityInfo,
			Description: "No web sources consulted (assuming moderate)",
			Data:        map[string]interface{}{"sources": 0, "score": 5},
		}
	}

	weightedSum := float64(primary*3 + secondary*2 + tertiary)
	score := int((weightedSum / float64(total*3)) * 10)

	severity := model.SeverityInfo
	if primary == 0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalSourceAuthority,
		Severity:    severity,
		Description: fmt.Sprintf("Sources: %d primary, %d secondary, %d tertiary", primary, secondary, tertiary),
		Data: map[string]interface{}{
			"primary":   primary,
			"secondary": secondary,
			"tertiary":  tertiary,
			"total":     total,
			"score":     score,
			"formula":   "(primary*3 + secondary*2 + tertiary*1) / (total*3) * 10",
		},
	}
}

func (s *Scorer) determineConfidence(score, claimCount, evidenceCount int) string {
	if claimCount < 3 {
		return "low"
	}

	switch {
	case score >= 75 && evidenceCount > 0:
		return "high"
	case score >= 50:
		return "medium"
	default:
		return "low"
	}
}

func countVerdicts(claims []model.VerifiedClaim) map[model.Verdict]int {
	counts := make(map[model.Verdict]int)
	for _, c := range claims {
		counts[model.NormalizeVerdict(string(c.Verdict))]++
	}
	return counts
}
