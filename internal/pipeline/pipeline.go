package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/trustcrawl/internal/model"
)

// Step is one stage of a trust request.
type Step interface {
	// Do advances the report. A returned error fails the whole request.
	Do(ctx context.Context, report *model.TrustReport) error

	// Name is recorded in TrustReport.PerformedSteps.
	Name() string
}

// StepObserver is told how long each step took. *metrics.Metrics implements it.
type StepObserver interface {
	ObserveStep(chain, step string, elapsed time.Duration, err error)
}

// Pipeline runs its steps in order and stops at the first failure.
// A Pipeline carries no request state; one value may run many reports,
// though not concurrently with AddSteps.
type Pipeline struct {
	steps    []Step
	logger   *slog.Logger
	observer StepObserver
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithStepObserver reports every finished step to o.
func WithStepObserver(o StepObserver) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// New returns an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddSteps appends steps in execution order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps))
	for _, s := range p.steps {
		names = append(names, s.Name())
	}
	return names
}

// Execute runs every step on report. Cancellation is checked between steps;
// a step that is already running stops on its own ctx.
//
// The failing error, including a cancellation, is stored in report.Error and
// returned. PerformedSteps lists the steps that finished without error.
func (p *Pipeline) Execute(ctx context.Context, report *model.TrustReport) error {
	log := p.logger.With("request_id", report.RequestID, "chain", report.Chain)

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			log.Warn("request cancelled", "before", step.Name(), "reason", err)
			return fail(report, err)
		}

		start := time.Now()
		err := step.Do(ctx, report)
		elapsed := time.Since(start)
		if p.observer != nil {
			p.observer.ObserveStep(report.Chain, step.Name(), elapsed, err)
		}

		if err != nil {
			log.Error("step failed", "step", step.Name(), "elapsed", elapsed, "error", err)
			return fail(report, err)
		}
		log.Debug("step done", "step", step.Name(), "elapsed", elapsed)
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}
	return nil
}

func fail(report *model.TrustReport, err error) error {
	report.Error = err
	report.ErrorMessage = err.Error()
	return err
}
