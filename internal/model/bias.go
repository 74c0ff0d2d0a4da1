package model

// Bias is an editorial or rhetorical bias detected in a segment
type Bias struct {
	SegmentID       int    `json:"segmentId"`
	Content         string `json:"content"`         // Biased passage as cited from the segment
	BiasType        string `json:"biasType"`        // emotional, ideological, exaggeration, omission, ...
	Explanation     string `json:"explanation"`     // Why the passage is biased
	TypeExplanation string `json:"typeExplanation"` // What this kind of bias is, in plain words
}
