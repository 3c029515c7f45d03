// Package diagnostics receives the per-fold target distributions before and
// after resampling. Sinks are purely observational: nothing they do feeds
// back into a cross-validation run.
package diagnostics

import (
	"sync"

	"github.com/YuminosukeSato/smogncv/pkg/errors"
	"github.com/YuminosukeSato/smogncv/pkg/log"
)

// Observation is one fold's resampling outcome.
type Observation struct {
	RunID string
	Fold  int

	// Before and After are the training targets handed to and returned
	// by the resampler.
	Before []float64
	After  []float64

	NonZeroBefore int
	NonZeroAfter  int
	Synthetic     int
}

// Sink consumes observations. Implementations must be safe for concurrent
// use when folds run in parallel.
type Sink interface {
	Observe(o Observation)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(o Observation)

// Observe calls f(o).
func (f SinkFunc) Observe(o Observation) { f(o) }

type tee []Sink

func (t tee) Observe(o Observation) {
	for _, s := range t {
		s.Observe(o)
	}
}

// Tee fans every observation out to sinks in order. nil sinks are ignored.
func Tee(sinks ...Sink) Sink {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Recorder keeps observations in memory.
type Recorder struct {
	mu  sync.Mutex
	obs []Observation
}

// Observe appends o.
func (r *Recorder) Observe(o Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, o)
}

// Observations returns a copy of what was recorded so far.
func (r *Recorder) Observations() []Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Observation(nil), r.obs...)
}

// LogSink writes one summary record per observation.
type LogSink struct {
	logger log.Logger
}

// NewLogSink returns a sink logging at Info level.
func NewLogSink(logger log.Logger) *LogSink {
	if logger == nil {
		logger = log.Nop()
	}
	return &LogSink{logger: logger.With(log.ComponentKey, "diagnostics")}
}

// Observe logs the non-zero target counts before and after resampling.
func (s *LogSink) Observe(o Observation) {
	s.logger.Info("non zeros in new/old data",
		log.RunIDKey, o.RunID,
		log.FoldKey, o.Fold,
		log.NonZeroAfterKey, o.NonZeroAfter,
		log.NonZeroBeforeKey, o.NonZeroBefore,
		log.SyntheticKey, o.Synthetic,
		log.SamplesKey, len(o.After),
	)
}

// AsyncSink decouples a slow sink from the folds. Observe never blocks:
// when the buffer is full the observation is dropped and counted.
type AsyncSink struct {
	next   Sink
	logger log.Logger

	mu      sync.Mutex
	closed  bool
	ch      chan Observation
	done    chan struct{}
	dropped int
}

// NewAsyncSink starts the delivery goroutine. buffer <= 0 means 16.
func NewAsyncSink(next Sink, buffer int, logger log.Logger) *AsyncSink {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = log.Nop()
	}
	s := &AsyncSink{
		next:   next,
		logger: logger.With(log.ComponentKey, "diagnostics"),
		ch:     make(chan Observation, buffer),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for o := range s.ch {
		err := errors.SafeExecute("diagnostics.Observe", func() error {
			s.next.Observe(o)
			return nil
		})
		if err != nil {
			s.logger.Error("diagnostics sink failed", err, log.FoldKey, o.Fold)
		}
	}
}

// Observe queues o for delivery.
func (s *AsyncSink) Observe(o Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.dropped++
		return
	}
	select {
	case s.ch <- o:
	default:
		s.dropped++
		s.logger.Warn("diagnostics buffer full, observation dropped", log.FoldKey, o.Fold)
	}
}

// Dropped returns the number of observations that were not delivered.
func (s *AsyncSink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close stops accepting observations and waits until the queued ones have
// been delivered. It is safe to call more than once.
func (s *AsyncSink) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()
	<-s.done
	return nil
}
