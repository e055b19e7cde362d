package fileops

// executor.go runs batches of file tasks with bounded concurrency.
//
// Failures are recorded per task and never stop siblings. Cancellation is
// cooperative: it is checked before each dispatch, so pending tasks
// short-circuit to a cancelled result while tasks already in flight run to
// completion. The executor makes no promises about completion order;
// callers needing deterministic output impose their own ordering on the
// inputs and read results by index.

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel file work when Executor.Limit is
// unset. Photo batches are disk-bound; a small number of writers is the
// sweet spot on both spinning and flash storage.
const DefaultConcurrency = 4

// Task is one unit of file work. Run must be non-nil.
type Task struct {
	// Name identifies the task in results, usually the destination path.
	Name string
	Run  func(ctx context.Context) error
}

// Status is the terminal state of one task.
type Status int

const (
	// StatusDone means the task ran to completion.
	StatusDone Status = iota
	// StatusFailed means the task ran and returned an error.
	StatusFailed
	// StatusCancelled means the run was cancelled before the task was
	// dispatched; the task never ran.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is the outcome of one task. Err is set only for StatusFailed;
// cancellation is a distinct outcome, not an error.
type Result struct {
	Name   string
	Status Status
	Err    error
}

// Summary aggregates a run's results. Results holds one entry per input
// task, in input order.
type Summary struct {
	Results   []Result
	Done      int
	Failed    int
	Cancelled int
}

// Err reduces the summary to a single error for callers that only need
// pass/fail. Cancelled tasks do not count as failures.
func (s Summary) Err() error {
	if s.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d file operations failed", s.Failed, len(s.Results))
}

// Executor runs tasks with bounded concurrency. The zero value is usable.
type Executor struct {
	// Limit is the maximum number of tasks in flight. DefaultConcurrency
	// when zero or negative.
	Limit int

	// Progress, when set, is invoked after each completed task with the
	// cumulative completed count and the total. Calls are serialized and
	// the count never decreases. Cancelled tasks are not completed tasks
	// and do not advance it.
	Progress func(completed, total int)
}

// Run executes tasks and returns per-task results in input order.
func (e Executor) Run(ctx context.Context, tasks []Task) Summary {
	limit := e.Limit
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]Result, len(tasks))

	var g errgroup.Group
	g.SetLimit(limit)

	var (
		mu        sync.Mutex
		completed int
	)

	for i, task := range tasks {
		if ctx.Err() != nil {
			results[i] = Result{Name: task.Name, Status: StatusCancelled}
			continue
		}

		i, task := i, task
		g.Go(func() error {
			res := Result{Name: task.Name, Status: StatusDone}
			if err := task.Run(ctx); err != nil {
				res.Status = StatusFailed
				res.Err = err
			}

			mu.Lock()
			results[i] = res
			completed++
			if e.Progress != nil {
				e.Progress(completed, len(tasks))
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	s := Summary{Results: results}
	for _, r := range results {
		switch r.Status {
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		default:
			s.Done++
		}
	}
	return s
}
