package model

import "time"

// Report is the complete result of one analysis run, as written by `analyze` and `batch`
type Report struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`      // File path or "stdin"
	AnalyzedAt time.Time `json:"analyzed_at"` // When the run finished

	Segments       []Segment       `json:"segments"`
	Claims         []Claim         `json:"claims"`
	Biases         []Bias          `json:"biases"`
	VerifiedClaims []VerifiedClaim `json:"verified_claims"`

	Score   Score           `json:"score"`             // Reliability index and scoring breakdown
	Details []SegmentDetail `json:"details,omitempty"` // Findings grouped per segment
	Summary string          `json:"summary"`           // Model-written report text
}

// SegmentDetail groups the findings attributed to one segment
type SegmentDetail struct {
	ID      int             `json:"id"`
	Content string          `json:"content"`
	Claims  []VerifiedClaim `json:"claims"`
	Biases  []Bias          `json:"biases"`
}

// Score represents the transparent reliability breakdown
type Score struct {
	Index      int      `json:"index"`      // Overall reliability index (0-100)
	Confidence string   `json:"confidence"` // "low", "medium", "high"
	Signals    []Signal `json:"signals"`    // Diagnostic signals with transparent data
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"` // Inputs and formula behind the signal
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalNoClaims        SignalType = "no_claims"        // Nothing verifiable in the text
	SignalVerdictMix      SignalType = "verdict_mix"      // Share of claims found true
	SignalFalseClaims     SignalType = "false_claims"     // Claims found false
	SignalUnverifiable    SignalType = "unverifiable"     // Claims nobody could check
	SignalBiasDensity     SignalType = "bias_density"     // Biases per segment
	SignalSourceAuthority SignalType = "source_authority" // Authority of cited sources
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// GroupBySegment attributes verified claims and biases to their segments, in segment order.
// Findings that reference an unknown segment are skipped.
func GroupBySegment(segments []Segment, claims []VerifiedClaim, biases []Bias) []SegmentDetail {
	details := make([]SegmentDetail, len(segments))
	idx := IndexSegments(segments)
	for i, s := range segments {
		details[i] = SegmentDetail{ID: s.ID, Content: s.Content, Claims: []VerifiedClaim{}, Biases: []Bias{}}
	}
	for _, c := range claims {
		if pos, ok := idx[c.SegmentID]; ok {
			details[pos].Claims = append(details[pos].Claims, c)
		}
	}
	for _, b := range biases {
		if pos, ok := idx[b.SegmentID]; ok {
			details[pos].Biases = append(details[pos].Biases, b)
		}
	}

	// Only segments with at least one finding are interesting
	out := details[:0]
	for _, d := range details {
		if len(d.Claims) > 0 || len(d.Biases) > 0 {
			out = append(out, d)
		}
	}
	return out
}
