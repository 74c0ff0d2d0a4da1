package store

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ppiankov/clarifai/internal/model"
)

// Reducer applies stream events to snapshots. It never fails: events it
// cannot use are logged and ignored.
type Reducer struct {
	log *zap.Logger
}

// NewReducer creates a reducer
func NewReducer(log *zap.Logger) *Reducer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reducer{log: log}
}

// Reduce returns the snapshot after ev. snap is not modified.
func (r *Reducer) Reduce(snap Snapshot, ev model.WireEvent) Snapshot {
	payload, err := ev.Decode()
	if err != nil {
		r.log.Warn("ignoring event with undecodable payload", zap.String("step", ev.StepID), zap.Error(err))
		return snap
	}

	next := snap.Clone()
	switch p := payload.(type) {
	case model.TokenPayload:
		return r.Token(snap, string(p))

	case model.PreprocessPayload:
		for _, seg := range p.Segments {
			next.Chunks = append(next.Chunks, Chunk{ID: seg.ID, Content: seg.Content, Annotations: []Annotation{}})
		}
		next.setStatus(StagePreprocessing, StatusDone)
		next.setStatus(StageExtractingClaims, StatusInProgress)
		next.setStatus(StageDetectingBiases, StatusInProgress)

	case model.ExtractClaimsPayload:
		next.ExtractedClaims = len(p.Claims)
		next.setStatus(StageExtractingClaims, StatusDone)
		if len(p.Claims) == 0 {
			// Verification is bypassed on the server
			next.setStatus(StageVerifyingClaims, StatusDone)
		} else {
			next.setStatus(StageVerifyingClaims, StatusInProgress)
		}

	case model.DetectBiasesPayload:
		for i := range p.Biases {
			b := p.Biases[i]
			r.annotate(&next, b.SegmentID, b.Content, Annotation{Type: AnnotationBias, Bias: &b})
		}
		next.setStatus(StageDetectingBiases, StatusDone)

	case model.VerifyClaimsPayload:
		for i := range p.Claims {
			c := p.Claims[i]
			r.annotate(&next, c.SegmentID, c.Content, Annotation{Type: AnnotationClaim, Claim: &c})
		}
		next.setStatus(StageVerifyingClaims, StatusDone)

	case model.ReporterPayload:
		next.Report = p.Report
		next.Score = p.Score
		next.Details = p.Details
		next.setStatus(StageGeneratingReport, StatusDone)

	case model.DonePayload:
		next.Processing = false

	case model.ErrorPayload:
		next.Processing = false
		next.Error = p.Error
		for stage, status := range next.GraphLog {
			if status == StatusInProgress {
				next.GraphLog[stage] = StatusError
			}
		}

	default:
		r.log.Warn("unhandled event", zap.String("step", ev.StepID), zap.String("label", ev.Label))
		return snap
	}

	next.deriveReportStatus()
	return next
}

// Token appends a streamed report fragment
func (r *Reducer) Token(snap Snapshot, tok string) Snapshot {
	next := snap.Clone()
	next.Report += tok
	return next
}

func (s *Snapshot) setStatus(stage Stage, status Status) {
	if s.GraphLog == nil {
		s.GraphLog = newGraphLog(StatusTodo)
	}
	s.GraphLog[stage] = status
}

// deriveReportStatus starts report generation once both parallel branches are done
func (s *Snapshot) deriveReportStatus() {
	if s.GraphLog[StageGeneratingReport] == StatusTodo &&
		s.GraphLog[StageVerifyingClaims] == StatusDone &&
		s.GraphLog[StageDetectingBiases] == StatusDone {
		s.GraphLog[StageGeneratingReport] = StatusInProgress
	}
}

// annotate anchors a finding onto its chunk by locating the cited text.
// Findings whose chunk or text cannot be found are dropped.
func (r *Reducer) annotate(s *Snapshot, segmentID int, cited string, a Annotation) {
	pos := -1
	for i := range s.Chunks {
		if s.Chunks[i].ID == segmentID {
			pos = i
			break
		}
	}
	if pos < 0 {
		r.log.Warn("finding references unknown segment", zap.String("type", string(a.Type)), zap.Int("segment_ref", segmentID))
		return
	}

	chunk := &s.Chunks[pos]
	start, end, ok := locate(chunk.Content, cited)
	if !ok {
		r.log.Warn("cited text not found in segment",
			zap.String("type", string(a.Type)),
			zap.Int("segment_ref", segmentID),
			zap.String("content", cited))
		return
	}
	a.Start, a.End = start, end
	chunk.Annotations = append(chunk.Annotations, a)
}

// locate returns the rune offsets of the first occurrence of sub in content
func locate(content, sub string) (start, end int, ok bool) {
	if sub == "" {
		return 0, 0, false
	}
	i := strings.Index(content, sub)
	if i < 0 {
		return 0, 0, false
	}
	start = utf8.RuneCountInString(content[:i])
	return start, start + utf8.RuneCountInString(sub), true
}
