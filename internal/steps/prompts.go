package steps

import (
	"fmt"
	"strings"

	"github.com/ppiankov/clarifai/internal/model"
)

const extractClaimsSystem = `You extract explicit factual claims from a text.

A factual claim:
- is a statement that can be checked as true or false,
- is phrased affirmatively,
- is not an opinion, a question or a vague comment.

You receive numbered segments. For each segment decide whether it contains factual claims. If it does,
quote each claim exactly as written in the segment, so it can be found again in the text.`

const extractClaimsSchema = `Return {"claims": [{"index": <segment number>, "content": "<claim, quoted verbatim>"}]}.
Return {"claims": []} when there are none.`

const detectBiasesSystem = `You review a text for editorial or rhetorical bias.

Bias may show up as:
- emotional or exaggerated language,
- an implicit or explicit stance,
- unbalanced presentation of facts,
- overgeneralisation,
- loaded or ambiguous wording.

For each numbered segment decide whether it contains one or more biases. List every bias you find.
Ignore segments without bias.`

const detectBiasesSchema = `Return {"biases": [{"index": <segment number>, "content": "<biased passage, quoted verbatim>",
"bias_type": "<emotional|ideological|exaggeration|omission|other>", "explanation": "<short justification>",
"type_explanation": "<plain-language explanation of this kind of bias>"}]}. Return {"biases": []} when there are none.`

const verifyClaimsSystem = `You assess the accuracy of factual claims. For each claim:

1. Say whether it is true, false, partially_true or unverifiable.
2. Give a short factual explanation.
3. When possible, cite the source or knowledge you relied on.`

const verifyClaimsWebSystem = verifyClaimsSystem + `

Each claim comes with evidence gathered from the web. Base your verdict on that evidence.
Only cite URLs that appear in the evidence; if the evidence is insufficient, answer unverifiable.`

const verifyClaimsSchema = `Return {"claims": [{"segmentId": <segmentId as given>, "content": "<claim as given>",
"verdict": "<true|false|partially_true|unverifiable>", "explanation": "<short explanation>", "sources": ["<source>"]}]}.`

const reporterSystem = `You are an analyst assessing the reliability of a document.

You receive the claims found in the text with their verification status, the biases detected,
and a reliability score computed from them.

Write a short structured report for a non-expert reader with:
- an overall assessment of how reliable the text is,
- the points that deserve attention or doubt,
- a concise summary of any biases,
- a neutral, factual tone.

If the text contains no claims and no biases, say plainly that there is nothing to verify.`

// numberedSegments renders segments as "[index] content" lines
func numberedSegments(segments []model.Segment) string {
	var sb strings.Builder
	for i, s := range segments {
		fmt.Fprintf(&sb, "[%d] %s\n", i, s.Content)
	}
	return sb.String()
}

func segmentsPrompt(segments []model.Segment, schema string) string {
	return "Segments:\n" + numberedSegments(segments) + "\n" + schema
}

func claimsPrompt(claims []model.Claim, schema string) string {
	var sb strings.Builder
	sb.WriteString("Claims to assess:\n")
	for _, c := range claims {
		fmt.Fprintf(&sb, "segmentId: %d - content: %s\n", c.SegmentID, c.Content)
	}
	sb.WriteString("\n")
	sb.WriteString(schema)
	return sb.String()
}

func evidencePrompt(gathered []model.ClaimEvidence, schema string) string {
	var sb strings.Builder
	sb.WriteString("Claims to assess, with evidence:\n")
	for _, ce := range gathered {
		fmt.Fprintf(&sb, "\nsegmentId: %d - content: %s\n", ce.Claim.SegmentID, ce.Claim.Content)
		usable := 0
		for _, e := range ce.Evidence {
			if e.Snippet == "" {
				continue
			}
			usable++
			fmt.Fprintf(&sb, "  - %s (%s source): %s\n", e.URL, e.Authority, e.Snippet)
		}
		if usable == 0 {
			sb.WriteString("  (no evidence found)\n")
		}
	}
	sb.WriteString("\n")
	sb.WriteString(schema)
	return sb.String()
}

func reportPrompt(claims []model.VerifiedClaim, biases []model.Bias, score model.Score) string {
	var sb strings.Builder

	sb.WriteString("### Claims and verdicts\n")
	if len(claims) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, c := range claims {
		fmt.Fprintf(&sb, "- **%s**: %s (explanation: %s, sources: %s)\n", c.Verdict, c.Content, c.Explanation, strings.Join(c.Sources, ", "))
	}

	sb.WriteString("\n### Detected biases\n")
	if len(biases) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, b := range biases {
		fmt.Fprintf(&sb, "- **%s**: %s\n", b.BiasType, b.Content)
	}

	fmt.Fprintf(&sb, "\n### Reliability score\n%d/100 (confidence: %s)\n", score.Index, score.Confidence)
	for _, s := range score.Signals {
		if s.Severity != model.SeverityInfo {
			fmt.Fprintf(&sb, "- %s: %s\n", s.Type, s.Description)
		}
	}

	return sb.String()
}
