package probe

import (
	"context"
	"errors"
	"fmt"

	"cudadoctor/internal/capability"
	"cudadoctor/internal/logging"
)

var errNoParser = errors.New("step has no parser")

// Step pairs a strategy with the parser that turns its raw output into a value.
type Step[T any] struct {
	Strategy Strategy
	Parse    func(raw string) (T, bool)
}

// Runner executes strategy chains. Strategies are attempted strictly in
// order and the chain stops at the first one that yields a parseable value.
type Runner struct {
	exec   Executor
	logger *logging.Logger
}

// NewRunner creates a chain runner on top of an executor.
func NewRunner(exec Executor, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Runner{exec: exec, logger: logger}
}

// Fact runs a chain of string-valued steps and wraps the outcome as a fact.
func (r *Runner) Fact(ctx context.Context, name string, steps []Step[string]) capability.Fact {
	value, ok := Run(ctx, r, name, steps)
	if !ok {
		return capability.NotDetected
	}
	return capability.Detected(value)
}

// Run attempts each step in order and returns the first parsed value.
// Failures, parse rejections and panics all fall through to the next step;
// when every step fails it returns the zero value and false.
func Run[T any](ctx context.Context, r *Runner, name string, steps []Step[T]) (T, bool) {
	var zero T

	for i, step := range steps {
		if ctx.Err() != nil {
			r.logger.Debug("probe.chain.cancelled", "Chain cancelled", map[string]interface{}{
				"capability": name,
				"error":      ctx.Err().Error(),
			})
			return zero, false
		}

		value, err := attempt(ctx, r.exec, step)
		if err != nil {
			r.logger.Debug("probe.attempt.failed", "Strategy failed", map[string]interface{}{
				"capability": name,
				"strategy":   step.Strategy.Label(),
				"kind":       string(step.Strategy.Kind),
				"position":   i + 1,
				"error":      err.Error(),
			})
			continue
		}

		r.logger.Debug("probe.attempt.ok", "Strategy succeeded", map[string]interface{}{
			"capability": name,
			"strategy":   step.Strategy.Label(),
			"position":   i + 1,
		})
		return value, true
	}

	r.logger.Debug("probe.chain.exhausted", "No strategy succeeded", map[string]interface{}{
		"capability": name,
		"attempts":   len(steps),
	})
	return zero, false
}

func attempt[T any](ctx context.Context, exec Executor, step Step[T]) (value T, err error) {
	defer func() {
		if p := recover(); p != nil {
			var zero T
			value = zero
			err = fmt.Errorf("strategy panicked: %v", p)
		}
	}()

	if step.Parse == nil {
		return value, errNoParser
	}

	res := exec.Execute(ctx, step.Strategy)
	if !res.OK() {
		return value, res.Err
	}

	parsed, ok := step.Parse(res.Output)
	if !ok {
		return value, ErrUnparseable
	}
	return parsed, nil
}
