// Package retry runs a job a bounded number of times with a fixed wait between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uhppoted/uhppoted-app-report/log"
)

type State int

const (
	Running State = iota
	Done
)

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Done:
		return "DONE"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}

var ErrExhausted = errors.New("retries exhausted")

// ExhaustedError is returned when every attempt has failed. Err is the error from the
// last attempt.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts (%v)", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Err}
}

// Driver invokes a job up to Attempts times, sleeping for Wait after every failed
// attempt except the last. Retryable (optional) stops the retries early for errors that
// another attempt cannot fix. Sleep defaults to a context aware time.After.
type Driver struct {
	Attempts  int
	Wait      time.Duration
	Sleep     func(ctx context.Context, d time.Duration) error
	Retryable func(err error) bool

	state State
}

func (d *Driver) State() State {
	return d.state
}

// Run invokes fn until it succeeds or the attempts are exhausted. A panic in fn is
// recovered and treated as a failed attempt. The returned error is nil on success, the
// context error if cancelled and an *ExhaustedError otherwise.
func (d *Driver) Run(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := d.Attempts
	if attempts < 1 {
		attempts = 1
	}

	sleep := d.Sleep
	if sleep == nil {
		sleep = wait
	}

	d.state = Running
	defer func() {
		d.state = Done
	}()

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := invoke(ctx, attempt, fn)
		if err == nil {
			return nil
		}

		last = err
		log.Errorf("an error occurred: %v", err)

		if ctx.Err() != nil {
			return ctx.Err()
		} else if errors.Is(err, context.Canceled) {
			return err
		}

		if d.Retryable != nil && !d.Retryable(err) {
			log.Warnf("not retrying - error is not retryable")
			return &ExhaustedError{Attempts: attempt, Err: err}
		}

		if attempt < attempts {
			log.Infof("waiting %v before retrying...", d.Wait)

			if err := sleep(ctx, d.Wait); err != nil {
				return err
			}
		}
	}

	log.Errorf("failed to run the program after %d tries", attempts)

	return &ExhaustedError{Attempts: attempts, Err: last}
}

func invoke(ctx context.Context, attempt int, fn func(ctx context.Context, attempt int) error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("attempt %d panicked (%v)", attempt, v)
		}
	}()

	return fn(ctx, attempt)
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
