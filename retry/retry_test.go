package retry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

type recorder struct {
	calls  []int
	sleeps []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.sleeps = append(r.sleeps, d)
	return nil
}

func TestRunPersistentFailure(t *testing.T) {
	r := recorder{}
	d := Driver{Attempts: 5, Wait: 60 * time.Second, Sleep: r.sleep}

	err := d.Run(context.Background(), func(ctx context.Context, attempt int) error {
		r.calls = append(r.calls, attempt)
		return fmt.Errorf("attempt %v failed", attempt)
	})

	if !reflect.DeepEqual(r.calls, []int{1, 2, 3, 4, 5}) {
		t.Errorf("incorrect calls - expected:%v, got:%v", []int{1, 2, 3, 4, 5}, r.calls)
	}

	expected := []time.Duration{60 * time.Second, 60 * time.Second, 60 * time.Second, 60 * time.Second}
	if !reflect.DeepEqual(r.sleeps, expected) {
		t.Errorf("incorrect sleeps - expected:%v, got:%v", expected, r.sleeps)
	}

	var e *ExhaustedError
	if !errors.As(err, &e) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}

	if e.Attempts != 5 || e.Err.Error() != "attempt 5 failed" {
		t.Errorf("incorrect error - got:%+v", *e)
	}

	if !errors.Is(err, ErrExhausted) {
		t.Errorf("expected error to wrap ErrExhausted")
	}

	if d.State() != Done {
		t.Errorf("incorrect state - expected:%v, got:%v", Done, d.State())
	}
}

func TestRunSucceedsOnAttemptK(t *testing.T) {
	for k := 1; k <= 5; k++ {
		r := recorder{}
		d := Driver{Attempts: 5, Wait: time.Minute, Sleep: r.sleep}

		err := d.Run(context.Background(), func(ctx context.Context, attempt int) error {
			r.calls = append(r.calls, attempt)
			if attempt < k {
				return fmt.Errorf("attempt %v failed", attempt)
			}

			return nil
		})

		if err != nil {
			t.Errorf("K=%v: unexpected error (%v)", k, err)
		}

		if len(r.calls) != k {
			t.Errorf("K=%v: expected %v calls, got %v", k, k, len(r.calls))
		}

		if len(r.sleeps) != k-1 {
			t.Errorf("K=%v: expected %v sleeps, got %v", k, k-1, len(r.sleeps))
		}

		if d.State() != Done {
			t.Errorf("K=%v: incorrect state - expected:%v, got:%v", k, Done, d.State())
		}
	}
}

func TestRunRecoversPanic(t *testing.T) {
	r := recorder{}
	d := Driver{Attempts: 2, Sleep: r.sleep}

	err := d.Run(context.Background(), func(ctx context.Context, attempt int) error {
		r.calls = append(r.calls, attempt)
		panic("oops")
	})

	if !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}

	if len(r.calls) != 2 {
		t.Errorf("expected 2 calls, got %v", len(r.calls))
	}
}

func TestRunNotRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	r := recorder{}
	d := Driver{
		Attempts:  5,
		Sleep:     r.sleep,
		Retryable: func(err error) bool { return !errors.Is(err, fatal) },
	}

	err := d.Run(context.Background(), func(ctx context.Context, attempt int) error {
		r.calls = append(r.calls, attempt)
		return fatal
	})

	if !errors.Is(err, fatal) || !errors.Is(err, ErrExhausted) {
		t.Errorf("expected exhausted fatal error, got %v", err)
	}

	if len(r.calls) != 1 || len(r.sleeps) != 0 {
		t.Errorf("expected 1 call and no sleeps, got %v calls and %v sleeps", len(r.calls), len(r.sleeps))
	}
}

func TestRunCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	d := Driver{Attempts: 5, Wait: time.Hour}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := d.Run(ctx, func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("failed")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	if calls != 1 {
		t.Errorf("expected 1 call, got %v", calls)
	}
}

func TestRunZeroAttempts(t *testing.T) {
	calls := 0
	d := Driver{}

	if err := d.Run(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	}); err != nil {
		t.Errorf("unexpected error (%v)", err)
	}

	if calls != 1 {
		t.Errorf("expected 1 call, got %v", calls)
	}
}
