// Package saga runs a sequence of remote writes with reverse-order compensation.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/models"

	"go.uber.org/zap"
)

// Step is one forward action with an optional compensation.
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
	// Attempts is the number of forward tries; values below 1 mean 1.
	Attempts int
	// Backoff is the delay before the second try, doubled on each further try.
	Backoff time.Duration
	// BestEffort steps never fail the saga. Their final error is reported in Result.Incomplete.
	BestEffort bool
}

// StepLog records step outcomes.
type StepLog interface {
	Record(ctx context.Context, entry *models.CommitStep) error
}

// Result summarises a run.
type Result struct {
	Completed  []string
	Incomplete map[string]error
}

// StepError is returned when a required step fails. The failed step and the steps before it have been compensated.
type StepError struct {
	Step              string
	Err               error
	Compensated       []string
	CompensationError error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
	if e.CompensationError != nil {
		msg += fmt.Sprintf(" (compensation incomplete: %v)", e.CompensationError)
	}
	return msg
}

func (e *StepError) Unwrap() error { return e.Err }

// Runner executes steps sequentially.
type Runner struct {
	log    StepLog
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRunner(log StepLog, logger *zap.Logger) *Runner {
	return &Runner{log: log, logger: logger, sleep: sleepCtx}
}

// WithSleep replaces the backoff sleeper.
func (r *Runner) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Runner {
	r.sleep = sleep
	return r
}

// Run executes steps in order. When a required step fails, the failed step and
// every completed step with a compensation are undone in reverse order and a
// *StepError is returned. A remote write may have been applied before its error
// was seen, so compensations must tolerate undoing something that never happened.
func (r *Runner) Run(ctx context.Context, meta models.CommitStep, steps []Step) (*Result, error) {
	res := &Result{Incomplete: map[string]error{}}
	done := make([]Step, 0, len(steps))

	for _, step := range steps {
		err := r.forward(ctx, meta, step)
		if err == nil {
			res.Completed = append(res.Completed, step.Name)
			done = append(done, step)
			continue
		}
		if step.BestEffort {
			r.logger.Warn("Best-effort commit step incomplete",
				zap.String("commit_id", meta.CommitID), zap.String("step", step.Name), zap.Error(err))
			res.Incomplete[step.Name] = err
			continue
		}

		compensated, compErr := r.compensate(meta, append(done, step))
		return res, &StepError{Step: step.Name, Err: err, Compensated: compensated, CompensationError: compErr}
	}
	return res, nil
}

func (r *Runner) forward(ctx context.Context, meta models.CommitStep, step Step) error {
	attempts := step.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := step.Backoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if serr := r.sleep(ctx, delay); serr != nil {
				return errors.Join(err, serr)
			}
			delay *= 2
		}
		err = step.Action(ctx)
		if err == nil {
			r.record(ctx, meta, step.Name, attempt, models.StepSucceeded, "")
			return nil
		}
		r.record(ctx, meta, step.Name, attempt, models.StepFailed, err.Error())
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

// Undo runs the compensations of steps in reverse order, for a commit whose
// forward run was lost. Steps without a compensation are skipped.
func (r *Runner) Undo(meta models.CommitStep, steps []Step) ([]string, error) {
	return r.compensate(meta, steps)
}

// compensate runs on a fresh context so a cancelled request still gets rolled back.
func (r *Runner) compensate(meta models.CommitStep, done []Step) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var compensated []string
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			r.logger.Error("Compensation failed",
				zap.String("commit_id", meta.CommitID), zap.String("step", step.Name), zap.Error(err))
			r.record(ctx, meta, step.Name, 1, models.StepCompFailed, err.Error())
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
			continue
		}
		r.record(ctx, meta, step.Name, 1, models.StepCompensated, "")
		compensated = append(compensated, step.Name)
	}
	return compensated, errors.Join(errs...)
}

func (r *Runner) record(ctx context.Context, meta models.CommitStep, name string, attempt int, outcome, detail string) {
	if r.log == nil {
		return
	}
	entry := meta
	entry.ID = 0
	entry.Step = name
	entry.Attempt = attempt
	entry.Outcome = outcome
	entry.Detail = detail
	if err := r.log.Record(ctx, &entry); err != nil {
		r.logger.Warn("Failed to record commit step",
			zap.String("commit_id", meta.CommitID), zap.String("step", name), zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
