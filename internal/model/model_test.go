package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVerdict(t *testing.T) {
	tests := map[string]Verdict{
		"FALSE":          VerdictFalse,
		" true ":         VerdictTrue,
		"Partially true": VerdictPartiallyTrue,
		"mixed":          VerdictPartiallyTrue,
		"unknown":        VerdictUnverifiable,
		"":               VerdictUnverifiable,
	}
	for raw, want := range tests {
		assert.Equal(t, want, NormalizeVerdict(raw), raw)
	}
}

func TestWireEvent_Decode(t *testing.T) {
	p, err := WireEvent{StepID: StepVerifyClaims, Payload: json.RawMessage(`{"claims":[{"segmentId":2,"content":"x","verdict":"false"}]}`)}.Decode()
	require.NoError(t, err)
	v, ok := p.(VerifyClaimsPayload)
	require.True(t, ok)
	require.Len(t, v.Claims, 1)
	assert.Equal(t, 2, v.Claims[0].SegmentID)
	assert.Equal(t, VerdictFalse, v.Claims[0].Verdict)

	p, err = WireEvent{StepID: StepToken, Label: "frag", Payload: json.RawMessage(`""`)}.Decode()
	require.NoError(t, err)
	assert.Equal(t, TokenPayload("frag"), p)

	p, err = WireEvent{StepID: StepError, Label: "boom"}.Decode()
	require.NoError(t, err)
	assert.Equal(t, ErrorPayload{Error: "boom"}, p)

	_, err = WireEvent{StepID: StepPreprocess, Payload: json.RawMessage(`{"segments":"nope"}`)}.Decode()
	assert.Error(t, err)
}

func TestWireEvent_UnknownStepIsKept(t *testing.T) {
	raw := json.RawMessage(`{"futureField":1}`)
	p, err := WireEvent{StepID: "summarize", Payload: raw}.Decode()
	require.NoError(t, err)

	u, ok := p.(UnknownPayload)
	require.True(t, ok)
	assert.Equal(t, "summarize", u.StepID)

	out, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(out))
}

func TestIndexSegments(t *testing.T) {
	idx := IndexSegments([]Segment{{ID: 3}, {ID: 7}})
	assert.True(t, idx.Has(7))
	assert.False(t, idx.Has(0))
	assert.Equal(t, 1, idx[7])
}
