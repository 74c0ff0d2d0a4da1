package state

import (
	"errors"
	"fmt"
)

// Policy is how a field merges incoming values
type Policy int

const (
	// Scalar fields take the latest supplied value
	Scalar Policy = iota
	// WriteOnce fields may be set once; later writes must carry the same value
	WriteOnce
	// Accumulate fields append incoming values in arrival order
	Accumulate
)

func (p Policy) String() string {
	switch p {
	case Scalar:
		return "scalar"
	case WriteOnce:
		return "write_once"
	case Accumulate:
		return "accumulate"
	default:
		return "unknown"
	}
}

// ErrImmutableField is returned when an update rewrites a write-once field
var ErrImmutableField = errors.New("write-once field rewritten")

// Field describes one state field and its merge policy
type Field struct {
	Name   string
	Policy Policy

	present func(Update) bool
	apply   func(*State, Update) error
}

// Fields is the merge policy table, one entry per state field
var Fields = []Field{
	{
		Name: "originalContent", Policy: WriteOnce,
		present: func(u Update) bool { return u.OriginalContent != nil },
		apply: func(s *State, u Update) error {
			return setOnce(&s.OriginalContent, *u.OriginalContent, "originalContent")
		},
	},
	{
		Name: "cleanedContent", Policy: WriteOnce,
		present: func(u Update) bool { return u.CleanedContent != nil },
		apply: func(s *State, u Update) error {
			return setOnce(&s.CleanedContent, *u.CleanedContent, "cleanedContent")
		},
	},
	{
		Name: "configuration", Policy: WriteOnce,
		present: func(u Update) bool { return u.Configuration != nil },
		apply: func(s *State, u Update) error {
			return setOnce(&s.Configuration, *u.Configuration, "configuration")
		},
	},
	{
		Name: "segments", Policy: Accumulate,
		present: func(u Update) bool { return u.Segments != nil },
		apply: func(s *State, u Update) error {
			s.Segments = append(s.Segments, u.Segments...)
			return nil
		},
	},
	{
		Name: "extractedClaims", Policy: Accumulate,
		present: func(u Update) bool { return u.ExtractedClaims != nil },
		apply: func(s *State, u Update) error {
			s.ExtractedClaims = append(s.ExtractedClaims, u.ExtractedClaims...)
			return nil
		},
	},
	{
		Name: "extractedBiases", Policy: Accumulate,
		present: func(u Update) bool { return u.ExtractedBiases != nil },
		apply: func(s *State, u Update) error {
			s.ExtractedBiases = append(s.ExtractedBiases, u.ExtractedBiases...)
			return nil
		},
	},
	{
		Name: "verifiedClaims", Policy: Accumulate,
		present: func(u Update) bool { return u.VerifiedClaims != nil },
		apply: func(s *State, u Update) error {
			s.VerifiedClaims = append(s.VerifiedClaims, u.VerifiedClaims...)
			return nil
		},
	},
	{
		Name: "report", Policy: Scalar,
		present: func(u Update) bool { return u.Report != nil },
		apply: func(s *State, u Update) error {
			s.Report = *u.Report
			return nil
		},
	},
	{
		Name: "events", Policy: Accumulate,
		present: func(u Update) bool { return u.Events != nil },
		apply: func(s *State, u Update) error {
			s.Events = append(s.Events, u.Events...)
			return nil
		},
	},
}

// Apply merges u into s and returns the resulting state. Either every supplied
// field is applied or, on error, s is returned unchanged.
func Apply(s State, u Update) (State, error) {
	next := s.Clone()
	for _, f := range Fields {
		if !f.present(u) {
			continue
		}
		if err := f.apply(&next, u); err != nil {
			return s, err
		}
	}
	return next, nil
}

// ApplyAll merges updates in order
func ApplyAll(s State, updates ...Update) (State, error) {
	var err error
	for i, u := range updates {
		if s, err = Apply(s, u); err != nil {
			return s, fmt.Errorf("update %d: %w", i, err)
		}
	}
	return s, nil
}

func setOnce[T comparable](dst *T, v T, name string) error {
	var zero T
	if *dst != zero && *dst != v {
		return fmt.Errorf("%s: %w", name, ErrImmutableField)
	}
	*dst = v
	return nil
}
