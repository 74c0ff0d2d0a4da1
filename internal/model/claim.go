package model

// Claim is a factual assertion found in a segment
type Claim struct {
	SegmentID int    `json:"segmentId"` // Segment the claim was found in (lookup key only)
	Content   string `json:"content"`   // The claim text as cited from the segment
}

// Verdict is the outcome of verifying a claim
type Verdict string

const (
	VerdictTrue          Verdict = "true"
	VerdictFalse         Verdict = "false"
	VerdictPartiallyTrue Verdict = "partially_true"
	VerdictUnverifiable  Verdict = "unverifiable"
)

// Valid reports whether v is one of the known verdicts
func (v Verdict) Valid() bool {
	switch v {
	case VerdictTrue, VerdictFalse, VerdictPartiallyTrue, VerdictUnverifiable:
		return true
	}
	return false
}

// NormalizeVerdict maps loose model output ("unknown", "Partially true") onto a known verdict
func NormalizeVerdict(raw string) Verdict {
	switch v := Verdict(normalizeToken(raw)); v {
	case VerdictTrue, VerdictFalse, VerdictPartiallyTrue, VerdictUnverifiable:
		return v
	case "partially", "partial", "mixed", "partly_true":
		return VerdictPartiallyTrue
	default:
		return VerdictUnverifiable
	}
}

// VerifiedClaim is a claim with its verification outcome
type VerifiedClaim struct {
	SegmentID   int      `json:"segmentId"`
	Content     string   `json:"content"`
	Verdict     Verdict  `json:"verdict"`
	Explanation string   `json:"explanation"`
	Sources     []string `json:"sources"`
}
