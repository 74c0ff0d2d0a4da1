package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ppiankov/clarifai/internal/llm"
	"github.com/ppiankov/clarifai/internal/llm/llmtest"
	"github.com/ppiankov/clarifai/internal/model"
	"github.com/ppiankov/clarifai/internal/state"
	"github.com/ppiankov/clarifai/internal/steps"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stepFunc struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context, s state.State, emit steps.Emitter) (state.Update, error)
}

func (f *stepFunc) Name() string { return f.name }

func (f *stepFunc) Run(ctx context.Context, s state.State, emit steps.Emitter) (state.Update, error) {
	f.calls.Add(1)
	return f.fn(ctx, s, emit)
}

func event(stepID string) []model.Event {
	return []model.Event{{StepID: stepID, Label: stepID}}
}

// fakeSteps is a set of scripted steps. The reporter records the state it observed.
type fakeSteps struct {
	preprocess, extract, biases, verifyWeb, verifyLLM, reporter *stepFunc

	mu       sync.Mutex
	observed state.State
}

func newFakeSteps() *fakeSteps {
	f := &fakeSteps{}
	f.preprocess = &stepFunc{name: steps.NodePreprocess, fn: func(_ context.Context, s state.State, _ steps.Emitter) (state.Update, error) {
		segs := []model.Segment{}
		if s.OriginalContent != "" {
			segs = append(segs, model.Segment{ID: 0, Content: s.OriginalContent})
		}
		return state.Update{CleanedContent: state.String(s.OriginalContent), Segments: segs, Events: event(model.StepPreprocess)}, nil
	}}
	f.extract = &stepFunc{name: steps.NodeExtractClaims, fn: func(_ context.Context, s state.State, _ steps.Emitter) (state.Update, error) {
		claims := []model.Claim{}
		for _, seg := range s.Segments {
			claims = append(claims, model.Claim{SegmentID: seg.ID, Content: seg.Content})
		}
		return state.Update{ExtractedClaims: claims, Events: event(model.StepExtractClaims)}, nil
	}}
	f.biases = &stepFunc{name: steps.NodeDetectBiases, fn: func(_ context.Context, s state.State, _ steps.Emitter) (state.Update, error) {
		biases := []model.Bias{}
		for _, seg := range s.Segments {
			biases = append(biases, model.Bias{SegmentID: seg.ID, Content: seg.Content, BiasType: "emotional"})
		}
		return state.Update{ExtractedBiases: biases, Events: event(model.StepDetectBiases)}, nil
	}}
	verify := func(verdict model.Verdict) func(context.Context, state.State, steps.Emitter) (state.Update, error) {
		return func(_ context.Context, s state.State, _ steps.Emitter) (state.Update, error) {
			verified := []model.VerifiedClaim{}
			for _, c := range s.ExtractedClaims {
				verified = append(verified, model.VerifiedClaim{SegmentID: c.SegmentID, Content: c.Content, Verdict: verdict})
			}
			return state.Update{VerifiedClaims: verified, Events: event(model.StepVerifyClaims)}, nil
		}
	}
	f.verifyWeb = &stepFunc{name: steps.NodeVerifyClaimsWeb, fn: verify(model.VerdictTrue)}
	f.verifyLLM = &stepFunc{name: steps.NodeVerifyClaimsLLM, fn: verify(model.VerdictFalse)}
	f.reporter = &stepFunc{name: steps.NodeReporter, fn: func(_ context.Context, s state.State, emit steps.Emitter) (state.Update, error) {
		f.mu.Lock()
		f.observed = s
		f.mu.Unlock()
		emit("Report ")
		emit("text")
		return state.Update{Report: state.String("Report text"), Events: event(model.StepReporter)}, nil
	}}
	return f
}

func (f *fakeSteps) set() steps.Set {
	return steps.Set{
		Preprocess:      f.preprocess,
		ExtractClaims:   f.extract,
		DetectBiases:    f.biases,
		VerifyClaimsWeb: f.verifyWeb,
		VerifyClaimsLLM: f.verifyLLM,
		Reporter:        f.reporter,
	}
}

func (f *fakeSteps) reporterInput() state.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.observed
}

func drain(ch <-chan Chunk) []Chunk {
	var out []Chunk
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func updateNodes(chunks []Chunk) []string {
	var nodes []string
	for _, c := range chunks {
		if c.Kind == ChunkUpdate {
			nodes = append(nodes, c.Node)
		}
	}
	return nodes
}

func TestRun_JoinWaitsForBothBranches(t *testing.T) {
	for _, biasFirst := range []bool{true, false} {
		name := "verification first"
		if biasFirst {
			name = "bias first"
		}
		t.Run(name, func(t *testing.T) {
			f := newFakeSteps()
			biasGate, verifyGate := make(chan struct{}), make(chan struct{})

			biasRun, verifyRun := f.biases.fn, f.verifyLLM.fn
			f.biases.fn = func(ctx context.Context, s state.State, e steps.Emitter) (state.Update, error) {
				<-biasGate
				return biasRun(ctx, s, e)
			}
			f.verifyLLM.fn = func(ctx context.Context, s state.State, e steps.Emitter) (state.Update, error) {
				<-verifyGate
				return verifyRun(ctx, s, e)
			}

			p := New(f.set(), nil)
			run := p.NewRun("Claim A. Claim B is false.", state.Configuration{})
			ch, err := run.Start(context.Background())
			require.NoError(t, err)

			// Both branches are parked once extraction has been merged
			for c := range ch {
				if c.Kind == ChunkUpdate && c.Node == steps.NodeExtractClaims {
					break
				}
			}

			first, second := steps.NodeDetectBiases, steps.NodeVerifyClaimsLLM
			firstGate, secondGate := biasGate, verifyGate
			if !biasFirst {
				first, second = second, first
				firstGate, secondGate = secondGate, firstGate
			}

			close(firstGate)
			c := <-ch
			assert.Equal(t, first, c.Node)
			assert.Zero(t, f.reporter.calls.Load(), "reporter ran before the join")

			close(secondGate)
			rest := drain(ch)
			require.NotEmpty(t, rest)
			assert.Equal(t, second, rest[0].Node)

			final, err := run.Wait()
			require.NoError(t, err)

			seen := f.reporterInput()
			assert.Len(t, seen.ExtractedBiases, 1)
			assert.Len(t, seen.VerifiedClaims, 1)
			assert.Equal(t, int32(1), f.reporter.calls.Load())

			assert.Equal(t, []model.Bias{{SegmentID: 0, Content: "Claim A. Claim B is false.", BiasType: "emotional"}}, final.ExtractedBiases)
			assert.Equal(t, model.VerdictFalse, final.VerifiedClaims[0].Verdict)
			assert.Equal(t, "Report text", final.Report)
			assert.Len(t, final.Events, 5)
		})
	}
}

func TestRun_TokensPrecedeReporterUpdate(t *testing.T) {
	f := newFakeSteps()
	p := New(f.set(), nil)

	run, ch := p.Stream(context.Background(), "text", state.Configuration{})
	chunks := drain(ch)
	_, err := run.Wait()
	require.NoError(t, err)

	n := len(chunks)
	require.GreaterOrEqual(t, n, 3)
	assert.Equal(t, Chunk{Kind: ChunkToken, Node: steps.NodeReporter, Token: "Report "}, chunks[n-3])
	assert.Equal(t, Chunk{Kind: ChunkToken, Node: steps.NodeReporter, Token: "text"}, chunks[n-2])
	assert.Equal(t, ChunkUpdate, chunks[n-1].Kind)
	assert.Equal(t, steps.NodeReporter, chunks[n-1].Node)

	assert.Equal(t, steps.NodePreprocess, updateNodes(chunks)[0])
}

func TestRun_BypassesVerificationWithoutClaims(t *testing.T) {
	f := newFakeSteps()
	f.extract.fn = func(context.Context, state.State, steps.Emitter) (state.Update, error) {
		return state.Update{ExtractedClaims: []model.Claim{}, Events: event(model.StepExtractClaims)}, nil
	}
	p := New(f.set(), nil)

	final, err := p.Invoke(context.Background(), "Nothing factual here.", state.Configuration{ClaimVerificationSource: model.VerificationWeb})
	require.NoError(t, err)

	assert.Zero(t, f.verifyWeb.calls.Load())
	assert.Zero(t, f.verifyLLM.calls.Load())
	assert.Equal(t, int32(1), f.reporter.calls.Load())
	assert.Len(t, f.reporterInput().ExtractedBiases, 1)
	assert.Equal(t, "Report text", final.Report)
}

func TestRun_RoutesToWebVerification(t *testing.T) {
	f := newFakeSteps()
	p := New(f.set(), nil)

	final, err := p.Invoke(context.Background(), "Water boils at 100C.", state.Configuration{ClaimVerificationSource: model.VerificationWeb})
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.verifyWeb.calls.Load())
	assert.Zero(t, f.verifyLLM.calls.Load())
	assert.Equal(t, model.VerdictTrue, final.VerifiedClaims[0].Verdict)
}

func TestRun_StepFailureAbortsRun(t *testing.T) {
	f := newFakeSteps()
	boom := errors.New("model unavailable")
	f.biases.fn = func(context.Context, state.State, steps.Emitter) (state.Update, error) {
		return state.Update{}, boom
	}
	f.verifyLLM.fn = func(ctx context.Context, _ state.State, _ steps.Emitter) (state.Update, error) {
		<-ctx.Done()
		return state.Update{}, ctx.Err()
	}
	p := New(f.set(), nil)

	run, ch := p.Stream(context.Background(), "Claim A.", state.Configuration{})
	chunks := drain(ch)
	_, err := run.Wait()

	require.ErrorIs(t, err, boom)
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, steps.NodeDetectBiases, se.Step)

	assert.Zero(t, f.reporter.calls.Load())
	assert.NotContains(t, updateNodes(chunks), steps.NodeDetectBiases)
	assert.NotContains(t, updateNodes(chunks), steps.NodeReporter)
}

func TestRun_Cancellation(t *testing.T) {
	f := newFakeSteps()
	f.biases.fn = func(ctx context.Context, _ state.State, _ steps.Emitter) (state.Update, error) {
		<-ctx.Done()
		return state.Update{}, ctx.Err()
	}
	p := New(f.set(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	run, ch := p.Stream(ctx, "Claim A.", state.Configuration{})

	first := <-ch
	assert.Equal(t, steps.NodePreprocess, first.Node)
	cancel()
	drain(ch)

	_, err := run.Wait()
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.reporter.calls.Load())
}

func TestRun_AbandonedConsumerDoesNotLeak(t *testing.T) {
	f := newFakeSteps()
	p := New(f.set(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	run, _ := p.Stream(ctx, "Claim A.", state.Configuration{})
	cancel()

	<-run.Done()
	_, err := run.Wait()
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_StartsOnce(t *testing.T) {
	p := New(newFakeSteps().set(), nil)
	run := p.NewRun("x", state.Configuration{})

	_, err := run.Wait()
	require.ErrorIs(t, err, ErrRunNotStarted)

	ch, err := run.Start(context.Background())
	require.NoError(t, err)

	_, err = run.Start(context.Background())
	require.ErrorIs(t, err, ErrRunStarted)

	drain(ch)
	_, err = run.Wait()
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
}

func TestRun_Invoke(t *testing.T) {
	p := New(newFakeSteps().set(), nil)

	run := p.NewRun("One. Two.", state.Configuration{})
	final, err := run.Invoke(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, final.Segments)
	assert.NotEmpty(t, final.Report)

	// A handle runs once, whichever entry point started it
	_, err = run.Invoke(context.Background())
	require.ErrorIs(t, err, ErrRunStarted)
}

// modelRouter answers each step by the model name configured for it
func modelRouter(answers map[string]string) *llmtest.Fake {
	return &llmtest.Fake{Respond: func(req llm.Request) (string, error) {
		text, ok := answers[req.Model]
		if !ok {
			return "", errors.New("unexpected model " + req.Model)
		}
		return text, nil
	}}
}

var routedConfig = state.Configuration{
	ClaimVerificationSource: model.VerificationLLM,
	ExtractClaimsModel:      "extract",
	BiasDetectionModel:      "biases",
	VerifyClaimsModel:       "verify",
	AggregationModel:        "report",
	SegmentsChunkSize:       1000,
	StreamReport:            true,
}

func TestInvoke_ClaimFoundFalse(t *testing.T) {
	fake := modelRouter(map[string]string{
		"extract": `{"claims": [{"index": 0, "content": "Claim B is false."}]}`,
		"biases":  `{"biases": []}`,
		"verify":  `{"claims": [{"segmentId": 0, "content": "Claim B is false.", "verdict": "false", "explanation": "contradicted", "sources": []}]}`,
		"report":  "One claim was checked and found false.",
	})
	p := New(steps.NewSet(steps.Deps{LLM: fake}), nil)

	final, err := p.Invoke(context.Background(), "Claim A. Claim B is false.", routedConfig)
	require.NoError(t, err)

	require.Len(t, final.Segments, 1)
	assert.Len(t, final.ExtractedClaims, 1)
	require.Len(t, final.VerifiedClaims, 1)
	assert.Equal(t, model.VerdictFalse, final.VerifiedClaims[0].Verdict)
	assert.Equal(t, "One claim was checked and found false.", final.Report)
}

func TestInvoke_EmptyInput(t *testing.T) {
	fake := modelRouter(map[string]string{"report": ""})
	p := New(steps.NewSet(steps.Deps{LLM: fake}), nil)

	final, err := p.Invoke(context.Background(), "", routedConfig)
	require.NoError(t, err)

	assert.Empty(t, final.Segments)
	assert.Equal(t, steps.NothingToVerify, final.Report)
	for _, ev := range final.Events {
		assert.NotEqual(t, model.StepVerifyClaims, ev.StepID)
	}
	assert.Len(t, final.Events, 4)

	// Only the reporter reached the model
	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "report", calls[0].Model)
}

func TestGraph_Mermaid(t *testing.T) {
	out := DefaultGraph().Mermaid()

	assert.Contains(t, out, "graph TD\n")
	assert.Contains(t, out, "__start__ --> preprocess")
	assert.Contains(t, out, "preprocess --> extractClaims")
	assert.Contains(t, out, "preprocess --> detectBiases")
	assert.Contains(t, out, "extractClaims -.-> verifyClaimsWeb")
	assert.Contains(t, out, "extractClaims -.-> verifyClaimsLlm")
	assert.Contains(t, out, "extractClaims -.-> reporter")
	assert.Contains(t, out, "detectBiases --> reporter")
	assert.Contains(t, out, "reporter --> __end__")
}

func TestGraph_RejectsUndeclaredBranchTarget(t *testing.T) {
	g := DefaultGraph()
	b := g.Branches[steps.NodeExtractClaims]
	b.Route = func(state.State) string { return "nowhere" }
	g.Branches[steps.NodeExtractClaims] = b

	_, err := g.next(steps.NodeExtractClaims, state.State{})
	require.Error(t, err)
}
