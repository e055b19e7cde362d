package fileops

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
)

func TestExecutor_RunsAllTasks(t *testing.T) {
	var (
		mu  sync.Mutex
		ran []string
	)
	tasks := make([]Task, 10)
	for i := range tasks {
		name := "task-" + strconv.Itoa(i)
		tasks[i] = Task{Name: name, Run: func(context.Context) error {
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
			return nil
		}}
	}

	sum := Executor{Limit: 3}.Run(context.Background(), tasks)

	if sum.Done != 10 || sum.Failed != 0 || sum.Cancelled != 0 {
		t.Errorf("summary = %d done, %d failed, %d cancelled, want 10/0/0",
			sum.Done, sum.Failed, sum.Cancelled)
	}
	if len(ran) != 10 {
		t.Errorf("ran %d tasks, want 10", len(ran))
	}
	for i, res := range sum.Results {
		if res.Name != tasks[i].Name {
			t.Errorf("Results[%d].Name = %q, want %q (results must keep input order)",
				i, res.Name, tasks[i].Name)
		}
		if res.Status != StatusDone {
			t.Errorf("Results[%d].Status = %v, want done", i, res.Status)
		}
	}
	if err := sum.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestExecutor_FailureDoesNotAbortSiblings(t *testing.T) {
	boom := errors.New("boom")
	tasks := []Task{
		{Name: "a", Run: func(context.Context) error { return nil }},
		{Name: "b", Run: func(context.Context) error { return boom }},
		{Name: "c", Run: func(context.Context) error { return nil }},
	}

	sum := Executor{Limit: 1}.Run(context.Background(), tasks)

	if sum.Done != 2 || sum.Failed != 1 {
		t.Errorf("summary = %d done, %d failed, want 2/1", sum.Done, sum.Failed)
	}
	if sum.Results[1].Status != StatusFailed || !errors.Is(sum.Results[1].Err, boom) {
		t.Errorf("Results[1] = %+v, want the failure", sum.Results[1])
	}
	if sum.Results[2].Status != StatusDone {
		t.Errorf("Results[2].Status = %v, want done after a sibling failure", sum.Results[2].Status)
	}
	if err := sum.Err(); err == nil {
		t.Error("Err() = nil, want a failure summary")
	}
}

func TestExecutor_ConcurrencyBounded(t *testing.T) {
	const limit = 2

	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	tasks := make([]Task, 12)
	for i := range tasks {
		tasks[i] = Task{Name: strconv.Itoa(i), Run: func(context.Context) error {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			mu.Lock()
			inFlight--
			mu.Unlock()
			return nil
		}}
	}

	Executor{Limit: limit}.Run(context.Background(), tasks)

	if peak > limit {
		t.Errorf("peak in-flight = %d, want at most %d", peak, limit)
	}
}

func TestExecutor_PreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	tasks := []Task{
		{Name: "a", Run: func(context.Context) error { ran = true; return nil }},
		{Name: "b", Run: func(context.Context) error { ran = true; return nil }},
	}

	var progressCalls int
	sum := Executor{Progress: func(int, int) { progressCalls++ }}.Run(ctx, tasks)

	if ran {
		t.Error("a task ran despite the cancelled context")
	}
	if sum.Cancelled != 2 || sum.Done != 0 {
		t.Errorf("summary = %d done, %d cancelled, want 0/2", sum.Done, sum.Cancelled)
	}
	for i, res := range sum.Results {
		if res.Status != StatusCancelled || res.Err != nil {
			t.Errorf("Results[%d] = %+v, want a cancelled result with nil error", i, res)
		}
	}
	if progressCalls != 0 {
		t.Errorf("progress calls = %d, want 0 for cancelled tasks", progressCalls)
	}
	if err := sum.Err(); err != nil {
		t.Errorf("Err() = %v, cancellation must not count as failure", err)
	}
}

// Cancelling mid-run short-circuits the tasks not yet dispatched while the
// in-flight task finishes normally.
func TestExecutor_MidRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	tasks := make([]Task, 5)
	tasks[0] = Task{Name: "first", Run: func(context.Context) error {
		cancel()
		return nil
	}}
	for i := 1; i < len(tasks); i++ {
		tasks[i] = Task{Name: strconv.Itoa(i), Run: func(context.Context) error { return nil }}
	}

	sum := Executor{Limit: 1}.Run(ctx, tasks)

	if sum.Results[0].Status != StatusDone {
		t.Errorf("Results[0].Status = %v, want done", sum.Results[0].Status)
	}
	// The task racing the cancel may land either way; everything after it
	// must be cancelled.
	for i := 2; i < len(tasks); i++ {
		if sum.Results[i].Status != StatusCancelled {
			t.Errorf("Results[%d].Status = %v, want cancelled", i, sum.Results[i].Status)
		}
	}
}

func TestExecutor_ProgressMonotonicAndComplete(t *testing.T) {
	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = Task{Name: strconv.Itoa(i), Run: func(context.Context) error { return nil }}
	}

	var calls []int
	e := Executor{Limit: 3, Progress: func(completed, total int) {
		if total != 8 {
			t.Errorf("total = %d, want 8", total)
		}
		calls = append(calls, completed)
	}}
	e.Run(context.Background(), tasks)

	if len(calls) != 8 {
		t.Fatalf("progress calls = %d, want 8", len(calls))
	}
	for i := 1; i < len(calls); i++ {
		if calls[i] < calls[i-1] {
			t.Fatalf("progress went backwards: %v", calls)
		}
	}
	if calls[len(calls)-1] != 8 {
		t.Errorf("final completed = %d, want 8", calls[len(calls)-1])
	}
}

func TestExecutor_EmptyBatch(t *testing.T) {
	sum := Executor{}.Run(context.Background(), nil)
	if len(sum.Results) != 0 || sum.Done != 0 {
		t.Errorf("summary = %+v, want empty", sum)
	}
	if err := sum.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}
