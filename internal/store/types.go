package store

import (
	"maps"
	"slices"

	"github.com/ppiankov/clarifai/internal/model"
)

// Stage is a user-facing progress stage. Stages do not map one to one onto graph nodes.
type Stage string

const (
	StagePreprocessing    Stage = "preprocessing"
	StageExtractingClaims Stage = "extracting_claims"
	StageDetectingBiases  Stage = "detecting_biases"
	StageVerifyingClaims  Stage = "verifying_claims"
	StageGeneratingReport Stage = "generating_report"
)

// Stages lists every stage in display order
var Stages = []Stage{
	StagePreprocessing,
	StageExtractingClaims,
	StageDetectingBiases,
	StageVerifyingClaims,
	StageGeneratingReport,
}

// Status is the progress of a stage
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// GraphLog holds the status of every stage
type GraphLog map[Stage]Status

func newGraphLog(status Status) GraphLog {
	log := make(GraphLog, len(Stages))
	for _, s := range Stages {
		log[s] = status
	}
	return log
}

// startLog is the log of a run that has just been submitted
func startLog() GraphLog {
	log := newGraphLog(StatusTodo)
	log[StagePreprocessing] = StatusInProgress
	return log
}

// AnnotationType tells claim annotations from bias annotations
type AnnotationType string

const (
	AnnotationBias  AnnotationType = "bias"
	AnnotationClaim AnnotationType = "claim"
)

// Annotation anchors a finding onto its segment. Start and End are rune
// offsets into the segment content, End exclusive.
type Annotation struct {
	Start int                  `json:"start"`
	End   int                  `json:"end"`
	Type  AnnotationType       `json:"type"`
	Bias  *model.Bias          `json:"bias,omitempty"`
	Claim *model.VerifiedClaim `json:"claim,omitempty"`
}

// Chunk is a segment as shown to the user, with the annotations found in it
type Chunk struct {
	ID          int          `json:"id"`
	Content     string       `json:"content"`
	Annotations []Annotation `json:"annotations"`
}

// Snapshot is the client-side view of a run
type Snapshot struct {
	Chunks          []Chunk               `json:"chunks"`
	GraphLog        GraphLog              `json:"graphLog"`
	Report          string                `json:"report"`
	Score           *model.Score          `json:"score,omitempty"`
	Details         []model.SegmentDetail `json:"details,omitempty"`
	ExtractedClaims int                   `json:"extractedClaimsLength"`
	HasSubmitted    bool                  `json:"hasSubmitted"`
	Processing      bool                  `json:"processing"`
	Error           string                `json:"error,omitempty"`
}

// Empty returns the snapshot of a store that never ran
func Empty() Snapshot {
	return Snapshot{Chunks: []Chunk{}, GraphLog: newGraphLog(StatusTodo)}
}

// Clone returns a deep copy of s. Findings behind annotations are shared; they are never mutated.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Chunks = slices.Clone(s.Chunks)
	for i := range out.Chunks {
		out.Chunks[i].Annotations = slices.Clone(out.Chunks[i].Annotations)
	}
	out.GraphLog = maps.Clone(s.GraphLog)
	if s.Score != nil {
		sc := *s.Score
		out.Score = &sc
	}
	out.Details = slices.Clone(s.Details)
	return out
}
