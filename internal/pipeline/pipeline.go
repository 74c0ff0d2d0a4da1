package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/clarifai/internal/llm"
	"github.com/ppiankov/clarifai/internal/model"
	"github.com/ppiankov/clarifai/internal/score"
	"github.com/ppiankov/clarifai/internal/state"
	"github.com/ppiankov/clarifai/internal/steps"
	"github.com/ppiankov/clarifai/internal/validate"
	"github.com/ppiankov/clarifai/internal/web"
)

var (
	// ErrRunStarted is returned when a run handle is started twice
	ErrRunStarted = errors.New("run already started")

	// ErrRunNotStarted is returned by Wait on a run that was never started
	ErrRunNotStarted = errors.New("run not started")
)

// StepError is a failure raised by a step. It aborts the run.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ChunkKind tells update chunks from streamed text fragments
type ChunkKind int

const (
	ChunkUpdate ChunkKind = iota // A step finished and its update was merged
	ChunkToken                   // A text fragment emitted while a step runs
)

// Chunk is one item of the lazy output sequence of a run
type Chunk struct {
	Kind   ChunkKind
	Node   string
	Update state.Update
	Token  string
}

// Pipeline runs the analysis graph
type Pipeline struct {
	graph *Graph
	steps map[string]steps.Step
	log   *zap.Logger
}

// New creates a pipeline over the default graph
func New(set steps.Set, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		graph: DefaultGraph(),
		steps: map[string]steps.Step{
			steps.NodePreprocess:      set.Preprocess,
			steps.NodeExtractClaims:   set.ExtractClaims,
			steps.NodeDetectBiases:    set.DetectBiases,
			steps.NodeVerifyClaimsWeb: set.VerifyClaimsWeb,
			steps.NodeVerifyClaimsLLM: set.VerifyClaimsLLM,
			steps.NodeReporter:        set.Reporter,
		},
		log: log.Named("pipeline"),
	}
}

// NewFromConfig wires the steps from the application config and a model client
func NewFromConfig(cfg *model.Config, client llm.Client, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	classifier := validate.NewAuthorityClassifier(&cfg.Authority)
	set := steps.NewSet(steps.Deps{
		LLM:        client,
		Gatherer:   web.NewGathererFromConfig(cfg.Web, cfg.Authority, log),
		Scorer:     score.NewScorer(),
		Classifier: classifier,
		Log:        log,
	})
	return New(set, log)
}

// Graph returns the topology the pipeline runs
func (p *Pipeline) Graph() *Graph {
	return p.graph
}

// Run is a single analysis. It can be started once.
type Run struct {
	ID string

	p       *Pipeline
	initial state.State
	started atomic.Bool
	done    chan struct{}

	final state.State
	err   error
}

// NewRun prepares a run over content. Nothing happens until Start.
func (p *Pipeline) NewRun(content string, cfg state.Configuration) *Run {
	return &Run{
		ID:      uuid.NewString(),
		p:       p,
		initial: state.New(content, cfg),
		done:    make(chan struct{}),
	}
}

// Stream prepares and starts a run
func (p *Pipeline) Stream(ctx context.Context, content string, cfg state.Configuration) (*Run, <-chan Chunk) {
	r := p.NewRun(content, cfg)
	ch, _ := r.Start(ctx)
	return r, ch
}

// Invoke runs the graph to completion and returns the final state
func (p *Pipeline) Invoke(ctx context.Context, content string, cfg state.Configuration) (state.State, error) {
	return p.NewRun(content, cfg).Invoke(ctx)
}

// Start launches the run. The returned channel yields one update chunk per
// finished step, in merge order, and the token chunks emitted while steps run.
// It is closed when the run ends. The caller must drain it or cancel ctx.
func (r *Run) Start(ctx context.Context) (<-chan Chunk, error) {
	if !r.started.CompareAndSwap(false, true) {
		return nil, ErrRunStarted
	}
	out := make(chan Chunk)
	go r.execute(ctx, out)
	return out, nil
}

// Invoke starts the run, discards its chunks and returns the final state
func (r *Run) Invoke(ctx context.Context) (state.State, error) {
	chunks, err := r.Start(ctx)
	if err != nil {
		return r.initial, err
	}
	for range chunks {
	}
	return r.Wait()
}

// Wait blocks until the run has ended and returns its final state
func (r *Run) Wait() (state.State, error) {
	if !r.started.Load() {
		return r.initial, ErrRunNotStarted
	}
	<-r.done
	return r.final, r.err
}

// Done is closed when the run has ended
func (r *Run) Done() <-chan struct{} {
	return r.done
}

type completion struct {
	node     string
	update   state.Update
	err      error
	duration time.Duration
}

func (r *Run) execute(parent context.Context, out chan<- Chunk) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	g := r.p.graph
	log := r.p.log.With(zap.String("run_id", r.ID))
	start := time.Now()

	eg, gctx := errgroup.WithContext(ctx)
	// Every node runs at most once, so completions never block
	results := make(chan completion, len(g.Nodes))
	pending := g.arrivals()

	var (
		st       = r.initial
		inflight int
		failure  error
		finished bool
	)

	send := func(c Chunk) bool {
		select {
		case out <- c:
			return true
		case <-gctx.Done():
			return false
		}
	}

	schedule := func(node string) {
		step, ok := r.p.steps[node]
		if !ok || step == nil {
			failure = &StepError{Step: node, Err: errors.New("no step registered")}
			cancel()
			return
		}
		inflight++
		snapshot := st.Clone()
		eg.Go(func() error {
			began := time.Now()
			emit := func(tok string) {
				send(Chunk{Kind: ChunkToken, Node: node, Token: tok})
			}
			upd, err := step.Run(gctx, snapshot, emit)
			if err != nil {
				err = &StepError{Step: node, Err: err}
			}
			results <- completion{node: node, update: upd, err: err, duration: time.Since(began)}
			return err
		})
	}

	log.Info("run started", zap.Int("content_chars", len(st.OriginalContent)))
	schedule(g.Entry)

	for inflight > 0 {
		c := <-results
		inflight--

		if c.err != nil {
			log.Warn("step failed", zap.String("step", c.node), zap.Error(c.err))
			if failure == nil {
				failure = c.err
			}
			continue
		}
		if failure != nil || gctx.Err() != nil {
			// Aborting; drain what is still running
			continue
		}

		next, err := state.Apply(st, c.update)
		if err != nil {
			failure = &StepError{Step: c.node, Err: err}
			cancel()
			continue
		}
		st = next
		log.Debug("step merged",
			zap.String("step", c.node),
			zap.Strings("fields", c.update.Fields()),
			zap.Int64("duration_ms", c.duration.Milliseconds()))

		if !send(Chunk{Kind: ChunkUpdate, Node: c.node, Update: c.update}) {
			continue
		}

		if c.node == g.Exit {
			finished = true
			continue
		}

		targets, err := g.next(c.node, st)
		if err != nil {
			failure = &StepError{Step: c.node, Err: err}
			cancel()
			continue
		}
		for _, t := range targets {
			pending[t]--
			if pending[t] == 0 {
				schedule(t)
			}
		}
	}

	// A failing step reports its completion before the group cancels the
	// others, so failure already holds the first error
	_ = eg.Wait()

	switch {
	case finished && failure == nil:
	case parent.Err() != nil:
		r.err = parent.Err()
	case failure != nil:
		r.err = failure
	default:
		r.err = fmt.Errorf("run ended before %s was reached", g.Exit)
	}
	r.final = st

	if r.err != nil {
		log.Warn("run aborted", zap.Error(r.err), zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	} else {
		log.Info("run finished",
			zap.Int("segments", len(st.Segments)),
			zap.Int("claims", len(st.VerifiedClaims)),
			zap.Int("biases", len(st.ExtractedBiases)),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	}

	close(out)
	close(r.done)
}
