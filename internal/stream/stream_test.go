package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ppiankov/clarifai/internal/llm"
	"github.com/ppiankov/clarifai/internal/llm/llmtest"
	"github.com/ppiankov/clarifai/internal/model"
	"github.com/ppiankov/clarifai/internal/pipeline"
	"github.com/ppiankov/clarifai/internal/state"
	"github.com/ppiankov/clarifai/internal/steps"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var runConfig = state.Configuration{
	ClaimVerificationSource: model.VerificationLLM,
	ExtractClaimsModel:      "extract",
	BiasDetectionModel:      "biases",
	VerifyClaimsModel:       "verify",
	AggregationModel:        "report",
	SegmentsChunkSize:       1000,
	StreamReport:            true,
}

func newPipeline(answers map[string]string) *pipeline.Pipeline {
	fake := &llmtest.Fake{Respond: func(req llm.Request) (string, error) {
		text, ok := answers[req.Model]
		if !ok {
			return "", errors.New("model " + req.Model + " unavailable")
		}
		return text, nil
	}}
	return pipeline.New(steps.NewSet(steps.Deps{LLM: fake}), nil)
}

var happyAnswers = map[string]string{
	"extract": `{"claims": [{"index": 0, "content": "Claim B is false."}]}`,
	"biases":  `{"biases": []}`,
	"verify":  `{"claims": [{"segmentId": 0, "content": "Claim B is false.", "verdict": "false"}]}`,
	"report":  "One false claim.",
}

func readAll(t *testing.T, r io.Reader) []WireFrame {
	t.Helper()
	dec := NewDecoder(r)
	var frames []WireFrame
	for {
		f, err := dec.Next()
		if err == io.EOF {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}
}

func TestForward_Success(t *testing.T) {
	p := newPipeline(happyAnswers)
	var buf bytes.Buffer

	err := Forward(context.Background(), p.NewRun("Claim A. Claim B is false.", runConfig), NewEncoder(&buf))
	require.NoError(t, err)

	frames := readAll(t, &buf)
	require.NotEmpty(t, frames)

	last := frames[len(frames)-1]
	assert.Equal(t, model.StepDone, last.Event.StepID)
	assert.True(t, last.Done)

	var (
		ids    []string
		tokens strings.Builder
	)
	for _, f := range frames[:len(frames)-1] {
		assert.False(t, f.Done)
		assert.NotEqual(t, model.StepDone, f.Event.StepID)
		if f.Event.StepID == model.StepToken {
			p, err := f.Event.Decode()
			require.NoError(t, err)
			tokens.WriteString(string(p.(model.TokenPayload)))
			continue
		}
		ids = append(ids, f.Event.StepID)
	}

	assert.Equal(t, "One false claim.", tokens.String())
	assert.Equal(t, model.StepPreprocess, ids[0])
	assert.ElementsMatch(t, []string{
		model.StepPreprocess, model.StepExtractClaims, model.StepDetectBiases, model.StepVerifyClaims, model.StepReporter,
	}, ids)
	assert.Equal(t, model.StepReporter, ids[len(ids)-1])
}

func TestForward_FailureEndsWithErrorFrame(t *testing.T) {
	answers := map[string]string{"biases": `{"biases": []}`}
	p := newPipeline(answers)
	var buf bytes.Buffer

	err := Forward(context.Background(), p.NewRun("Claim A.", runConfig), NewEncoder(&buf))
	require.Error(t, err)

	frames := readAll(t, &buf)
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	assert.Equal(t, model.StepError, last.Event.StepID)
	assert.True(t, last.Done)

	payload, err := last.Event.Decode()
	require.NoError(t, err)
	assert.Contains(t, payload.(model.ErrorPayload).Error, "extractClaims")

	for _, f := range frames {
		assert.NotEqual(t, model.StepDone, f.Event.StepID)
	}
}

type failingWriter struct {
	ok int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.ok == 0 {
		return 0, errors.New("client gone")
	}
	w.ok--
	return len(p), nil
}

func TestForward_WriteFailureCancelsRun(t *testing.T) {
	p := newPipeline(happyAnswers)
	run := p.NewRun("Claim A. Claim B is false.", runConfig)

	err := Forward(context.Background(), run, NewEncoder(&failingWriter{ok: 1}))
	require.EqualError(t, err, "client gone")

	_, runErr := run.Wait()
	require.ErrorIs(t, runErr, context.Canceled)
}

func TestForward_RejectsStartedRun(t *testing.T) {
	p := newPipeline(happyAnswers)
	run := p.NewRun("x", runConfig)

	ch, err := run.Start(context.Background())
	require.NoError(t, err)
	for range ch {
	}

	var buf bytes.Buffer
	err = Forward(context.Background(), run, NewEncoder(&buf))
	require.ErrorIs(t, err, pipeline.ErrRunStarted)

	frames := readAll(t, &buf)
	require.Len(t, frames, 1)
	assert.Equal(t, model.StepError, frames[0].Event.StepID)
}

func TestFrameOf_ForwardsFirstEventOnly(t *testing.T) {
	upd := state.Update{Events: []model.Event{
		{StepID: model.StepDetectBiases, Label: "first"},
		{StepID: model.StepDetectBiases, Label: "second"},
	}}

	f, ok := FrameOf(pipeline.Chunk{Kind: pipeline.ChunkUpdate, Update: upd})
	require.True(t, ok)
	assert.Equal(t, "first", f.Event.Label)

	_, ok = FrameOf(pipeline.Chunk{Kind: pipeline.ChunkUpdate, Update: state.Update{Report: state.String("x")}})
	assert.False(t, ok)

	reserved := state.Update{Events: []model.Event{{StepID: model.StepDone, Label: "fake end"}}}
	_, ok = FrameOf(pipeline.Chunk{Kind: pipeline.ChunkUpdate, Node: "reporter", Update: reserved})
	assert.False(t, ok)

	f, ok = FrameOf(pipeline.Chunk{Kind: pipeline.ChunkToken, Token: "Hel"})
	require.True(t, ok)
	assert.Equal(t, model.StepToken, f.Event.StepID)
	assert.Equal(t, "Hel", f.Event.Label)
}

func TestEncoder_WireFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	enc := NewEncoder(rec)

	require.NoError(t, enc.Encode(Frame{Event: model.Event{StepID: model.StepToken, Label: "a", Payload: model.TokenPayload("a")}}))
	require.NoError(t, enc.Encode(DoneFrame()))

	assert.True(t, rec.Flushed)
	assert.Equal(t,
		`data: {"event":{"stepId":"token","label":"a","payload":"a"},"done":false}`+"\n\n"+
			`data: {"event":{"stepId":"[DONE]","label":"Done","payload":{}},"done":true}`+"\n\n",
		rec.Body.String())
}

func TestDecoder_SkipsMalformedFrames(t *testing.T) {
	input := ": keep-alive\n\n" +
		"data: {not json}\n\n" +
		"event: message\n" +
		"data: {\"event\":{\"stepId\":\"token\",\n" +
		"data: \"label\":\"x\",\"payload\":\"x\"},\"done\":false}\r\n\r\n" +
		"data: {\"event\":{\"stepId\":\"[DONE]\",\"label\":\"\",\"payload\":null},\"done\":true}"

	dec := NewDecoder(strings.NewReader(input))

	_, err := dec.Next()
	require.ErrorIs(t, err, ErrMalformedFrame)

	f, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, model.StepToken, f.Event.StepID)
	assert.Equal(t, "x", f.Event.Label)

	f, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, model.StepDone, f.Event.StepID)
	assert.True(t, f.Done)

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}
