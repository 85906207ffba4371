// Package scan sweeps the visibility classifier over a global grid in short
// time slices so the host event loop stays responsive.
//
// A scan is a chain of Steps. Each Step classifies cells until its time
// budget is spent, then returns a continuation that the host re-enqueues on
// its own task queue. Starting a new scan bumps the generation counter;
// continuations of an older generation notice the mismatch and stop without
// touching the sink.
//
// A Scheduler is not safe for concurrent use. All calls to Start and
// Step.Run must come from the host's single event loop goroutine.
package scan

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/unklstewy/hilalscope/internal/visibility"
)

// DefaultBudget is the wall-clock time a single slice may spend classifying.
const DefaultBudget = 20 * time.Millisecond

// Classifier maps a date and location to a visibility tier.
type Classifier interface {
	Classify(date time.Time, lat, lon float64) visibility.Tier
}

// Sink receives classified points. Only the live generation writes to it.
type Sink interface {
	ClearTier(tier visibility.Tier)
	AddPoint(tier visibility.Tier, lat, lon float64, color string)
}

// Recorder observes scan progress, typically for metrics.
type Recorder interface {
	ScanStarted(gen Generation)
	CellClassified(tier visibility.Tier)
	SliceYielded()
	ScanSuperseded()
	ScanCompleted(elapsed time.Duration)
}

// Generation identifies one full sweep for one date.
type Generation uint64

// Completion is delivered once every point of a generation has been emitted.
type Completion struct {
	Generation Generation    `json:"generation"`
	RunID      string        `json:"run_id"`
	Date       time.Time     `json:"date"`
	Cells      int           `json:"cells"`
	Elapsed    time.Duration `json:"elapsed"`
}

// run is the bookkeeping of the live generation.
type run struct {
	id      string
	date    time.Time
	started time.Time
	cells   int
	span    trace.Span
}

// Scheduler owns the generation counter and the in-progress scan position.
type Scheduler struct {
	classifier Classifier
	sink       Sink
	grid       Grid
	budget     time.Duration
	now        func() time.Time
	recorder   Recorder
	tracer     trace.Tracer
	onComplete func(Completion)

	generation Generation
	live       *run
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithGrid sets the lattice to sweep.
func WithGrid(g Grid) Option {
	return func(s *Scheduler) {
		s.grid = g
	}
}

// WithBudget sets the per-slice time budget.
func WithBudget(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.budget = d
		}
	}
}

// WithClock replaces time.Now for budget accounting.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithRecorder attaches a progress recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) {
		s.recorder = r
	}
}

// WithTracer sets the tracer used for per-generation spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) {
		s.tracer = t
	}
}

// OnComplete registers the completion callback.
func OnComplete(fn func(Completion)) Option {
	return func(s *Scheduler) {
		s.onComplete = fn
	}
}

// NewScheduler validates the grid and returns an idle Scheduler.
func NewScheduler(classifier Classifier, sink Sink, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		classifier: classifier,
		sink:       sink,
		grid:       DefaultGrid(),
		budget:     DefaultBudget,
		now:        time.Now,
		recorder:   nopRecorder{},
		tracer:     otel.Tracer("github.com/unklstewy/hilalscope/internal/scan"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.grid.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Grid returns the lattice being swept.
func (s *Scheduler) Grid() Grid {
	return s.grid
}

// Generation returns the current generation.
func (s *Scheduler) Generation() Generation {
	return s.generation
}

// Busy reports whether the current generation is still emitting points.
func (s *Scheduler) Busy() bool {
	return s.live != nil
}

// Start invalidates any in-flight scan, clears every tier from the sink and
// returns the first step of a new generation for date.
func (s *Scheduler) Start(date time.Time) *Step {
	if s.live != nil {
		s.live.span.SetStatus(codes.Error, "superseded")
		s.live.span.End()
		s.recorder.ScanSuperseded()
		zap.L().Debug("scan superseded", zap.String("run_id", s.live.id), zap.Uint64("generation", uint64(s.generation)))
	}

	s.generation++
	r := &run{
		id:      uuid.NewString(),
		date:    date,
		started: s.now(),
	}
	_, r.span = s.tracer.Start(context.Background(), "scan.generation", trace.WithAttributes(
		attribute.String("scan.run_id", r.id),
		attribute.Int64("scan.generation", int64(s.generation)),
		attribute.String("scan.date", date.Format(time.DateOnly)),
		attribute.Float64("scan.step_degrees", s.grid.Step),
		attribute.Int("scan.cells", s.grid.Cells()),
	))
	s.live = r

	for _, tier := range visibility.Tiers {
		s.sink.ClearTier(tier)
	}
	s.recorder.ScanStarted(s.generation)
	zap.L().Debug("scan started",
		zap.String("run_id", r.id),
		zap.Uint64("generation", uint64(s.generation)),
		zap.String("date", date.Format(time.DateOnly)),
		zap.Int("cells", s.grid.Cells()),
	)

	return &Step{s: s, gen: s.generation, date: date}
}

// Run drives a full scan for date through host and returns its generation.
func (s *Scheduler) Run(host Host, date time.Time) Generation {
	var pump func(*Step)
	pump = func(st *Step) {
		if next := st.Run(); next != nil {
			host.Enqueue(func() { pump(next) })
		}
	}

	first := s.Start(date)
	host.Enqueue(func() { pump(first) })
	return first.gen
}

func (s *Scheduler) complete(st *Step) {
	r := s.live
	s.live = nil

	elapsed := s.now().Sub(r.started)
	r.span.SetAttributes(attribute.Int("scan.emitted", r.cells))
	r.span.End()
	s.recorder.ScanCompleted(elapsed)

	zap.L().Debug("scan complete",
		zap.String("run_id", r.id),
		zap.Uint64("generation", uint64(st.gen)),
		zap.Int("cells", r.cells),
		zap.Duration("elapsed", elapsed),
	)

	if s.onComplete != nil {
		s.onComplete(Completion{
			Generation: st.gen,
			RunID:      r.id,
			Date:       r.date,
			Cells:      r.cells,
			Elapsed:    elapsed,
		})
	}
}

// Step is a resumable slice of a scan. It captures the generation and the
// exact grid position to continue from.
type Step struct {
	s    *Scheduler
	gen  Generation
	date time.Time
	row  int
	col  int
}

// Generation returns the generation this step belongs to.
func (st *Step) Generation() Generation {
	return st.gen
}

// Position returns the row and column the step resumes at.
func (st *Step) Position() (row, col int) {
	return st.row, st.col
}

// Stale reports whether a newer scan has superseded this step.
func (st *Step) Stale() bool {
	return st.gen != st.s.generation
}

// Run classifies cells in row-major order until the slice budget is spent.
// It returns the continuation to enqueue, or nil when the scan finished or
// was superseded. At least one cell is classified per call.
func (st *Step) Run() *Step {
	s := st.s
	if st.Stale() || s.live == nil {
		return nil
	}

	rows, cols := s.grid.Rows(), s.grid.Cols()
	deadline := s.now().Add(s.budget)
	processed := 0

	for st.row < rows {
		lat := s.grid.Lat(st.row)
		for st.col < cols {
			if processed > 0 && !s.now().Before(deadline) {
				s.recorder.SliceYielded()
				return st
			}

			lon := s.grid.Lon(st.col)
			tier := s.classifier.Classify(st.date, lat, lon)
			processed++
			st.col++

			if st.Stale() {
				return nil
			}
			s.sink.AddPoint(tier, lat, lon, tier.Color())
			s.live.cells++
			s.recorder.CellClassified(tier)
		}
		st.col = 0
		st.row++
	}

	s.complete(st)
	return nil
}

type nopRecorder struct{}

func (nopRecorder) ScanStarted(Generation)         {}
func (nopRecorder) CellClassified(visibility.Tier) {}
func (nopRecorder) SliceYielded()                  {}
func (nopRecorder) ScanSuperseded()                {}
func (nopRecorder) ScanCompleted(time.Duration)    {}
