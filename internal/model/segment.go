package model

import "strings"

// Segment is a contiguous slice of the analyzed text and the unit of attribution
type Segment struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
}

// SegmentIndex maps segment ids to their position in a segment list
type SegmentIndex map[int]int

// IndexSegments builds a lookup from segment id to position
func IndexSegments(segments []Segment) SegmentIndex {
	idx := make(SegmentIndex, len(segments))
	for i, s := range segments {
		idx[s.ID] = i
	}
	return idx
}

// Has reports whether a segment with the given id exists
func (idx SegmentIndex) Has(id int) bool {
	_, ok := idx[id]
	return ok
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}
