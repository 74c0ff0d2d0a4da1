// Package store keeps the client-side state of an analysis, rebuilt from the event stream.
package store

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/ppiankov/clarifai/internal/client"
	"github.com/ppiankov/clarifai/internal/model"
)

// ErrRunInProgress is returned by Clarify while another analysis is streaming
var ErrRunInProgress = errors.New("an analysis is already in progress")

// Streamer opens an analysis stream. *client.Consumer implements it.
type Streamer interface {
	Stream(ctx context.Context, content string, h client.Handlers) error
}

// Store owns the snapshot of one analysis at a time
type Store struct {
	streamer Streamer
	reducer  *Reducer
	log      *zap.Logger

	mu        sync.Mutex
	snap      Snapshot
	listeners []func(Snapshot)

	// busy is held from the start of Clarify until it returns, even after a Reset
	busy bool
	// run is the analysis allowed to write into snap; nil after a Reset
	run *activeRun
}

type activeRun struct {
	cancel context.CancelFunc
}

// New creates an empty store
func New(streamer Streamer, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("store")
	return &Store{
		streamer: streamer,
		reducer:  NewReducer(log),
		log:      log,
		snap:     Empty(),
	}
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Subscribe registers fn to be called with the new snapshot after every change
func (s *Store) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Dispatch applies one stream event
func (s *Store) Dispatch(ev model.WireEvent) {
	s.update(nil, func(snap Snapshot) Snapshot {
		return s.reducer.Reduce(snap, ev)
	})
}

// Reset clears the store and cancels the running analysis, if any. Events the
// cancelled analysis still delivers are discarded. A new Clarify is accepted
// once the cancelled one has returned.
func (s *Store) Reset() {
	s.mu.Lock()
	if s.run != nil {
		s.run.cancel()
		s.run = nil
	}
	s.mu.Unlock()
	s.update(nil, func(Snapshot) Snapshot { return Empty() })
}

// Clarify resets the store and streams the analysis of content into it. It
// returns ErrRunInProgress if another analysis has not finished yet.
func (s *Store) Clarify(ctx context.Context, content string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	run := &activeRun{cancel: cancel}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrRunInProgress
	}
	s.busy = true
	s.run = run
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		if s.run == run {
			s.run = nil
		}
		s.mu.Unlock()
	}()

	s.update(run, func(Snapshot) Snapshot {
		next := Empty()
		next.HasSubmitted = true
		next.Processing = true
		next.GraphLog = startLog()
		return next
	})

	err := s.streamer.Stream(ctx, content, client.Handlers{
		OnEvent: func(ev model.WireEvent) {
			s.update(run, func(snap Snapshot) Snapshot {
				return s.reducer.Reduce(snap, ev)
			})
		},
		OnToken: func(tok string) {
			s.update(run, func(snap Snapshot) Snapshot {
				return s.reducer.Token(snap, tok)
			})
		},
		OnComplete: func() { s.log.Debug("stream complete") },
	})

	s.update(run, func(snap Snapshot) Snapshot {
		next := snap.Clone()
		next.Processing = false
		if err != nil {
			next.Error = err.Error()
			for stage, status := range next.GraphLog {
				if status == StatusInProgress {
					next.GraphLog[stage] = StatusError
				}
			}
		}
		return next
	})
	return err
}

// update applies fn and notifies listeners. A non-nil run only writes while it
// still owns the store.
func (s *Store) update(run *activeRun, fn func(Snapshot) Snapshot) {
	s.mu.Lock()
	if run != nil && s.run != run {
		s.mu.Unlock()
		return
	}
	s.snap = fn(s.snap)
	listeners := s.listeners
	snap := s.snap.Clone()
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}
