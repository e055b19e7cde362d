package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shutterworks/photoflow/internal/catalog"
	"github.com/shutterworks/photoflow/internal/config"
	"github.com/shutterworks/photoflow/internal/csvio"
	"github.com/shutterworks/photoflow/internal/fileops"
	"github.com/shutterworks/photoflow/internal/history"
	"github.com/shutterworks/photoflow/internal/logging"
	"github.com/shutterworks/photoflow/internal/roster"
)

// Service provides the business logic for photo job operations. It owns
// the operation registry, the template catalog, and the run history, and
// is safe for concurrent use.
type Service struct {
	cfg     *config.Config
	store   *catalog.Store
	history *history.Store
	limiter *fileops.Limiter

	mu  sync.RWMutex
	ops map[string]*activeOp

	catMu    sync.RWMutex
	snapshot catalog.Snapshot
}

type activeOp struct {
	ID         string
	Kind       OpKind
	JobDir     string
	Cancel     context.CancelFunc
	Progress   Progress
	Result     *OpResult
	Done       chan struct{}
	Listeners  []chan Progress
	ListenerMu sync.Mutex
	sealed     bool // listeners closed, no more appends
	Started    time.Time
}

// Options configures a new Service.
type Options struct {
	Config  *config.Config
	Catalog *catalog.Store

	// History may be nil; operations then run without run records or
	// undo journals.
	History *history.Store

	// Snapshot is the template catalog loaded at startup.
	Snapshot catalog.Snapshot
}

// New creates a Service.
func New(opts Options) *Service {
	cfg := opts.Config
	return &Service{
		cfg:      cfg,
		store:    opts.Catalog,
		history:  opts.History,
		limiter:  fileops.NewLimiter(cfg.Ops.MaxConcurrent, cfg.Ops.MaxWait),
		ops:      make(map[string]*activeOp),
		snapshot: opts.Snapshot,
	}
}

// ============================================================================
// Operation lifecycle
// ============================================================================

// startOp acquires an operation slot, registers the operation, and runs
// the given function in the background. Returns the operation ID
// immediately. Use SubscribeProgress to get updates.
//
// Returns fileops.ErrBusy if the concurrency limit is reached and no slot
// becomes available within the wait period.
func (s *Service) startOp(ctx context.Context, kind OpKind, jobDir string, run func(ctx context.Context, op *activeOp) (*OpResult, error)) (string, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	opID := uuid.New().String()

	// The operation outlives the request that started it.
	opCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Ops.Timeout)

	op := &activeOp{
		ID:     opID,
		Kind:   kind,
		JobDir: jobDir,
		Cancel: cancel,
		Progress: Progress{
			OpID:  opID,
			Kind:  kind,
			Phase: PhaseStarting,
		},
		Done:      make(chan struct{}),
		Listeners: make([]chan Progress, 0),
		Started:   time.Now(),
	}

	s.mu.Lock()
	s.ops[opID] = op
	s.mu.Unlock()

	s.recordRunStart(op)

	// Process in background with panic recovery to ensure limiter release.
	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in operation",
					"op_id", opID,
					"kind", kind,
					"panic", r,
				)
				s.finishOp(op, nil, fmt.Errorf("internal error: %v", r))
			}
		}()

		log := logging.WithFields(opCtx, "op_id", opID, "kind", kind, "job_dir", jobDir)
		log.Info("operation started")

		result, err := run(opCtx, op)
		s.finishOp(op, result, err)

		if err != nil {
			log.Error("operation failed", "error", err)
		} else {
			log.Info("operation completed", "duration", time.Since(op.Started))
		}
	}()

	return opID, nil
}

// finishOp records the terminal state, notifies listeners, and schedules
// the operation for removal from the registry.
func (s *Service) finishOp(op *activeOp, result *OpResult, err error) {
	if result == nil {
		result = &OpResult{OpID: op.ID, Kind: op.Kind}
	}
	result.Duration = time.Since(op.Started)

	switch {
	case errors.Is(err, context.Canceled):
		result.Phase = PhaseCancelled
		result.Error = err.Error()
	case err != nil:
		result.Phase = PhaseFailed
		result.Error = err.Error()
	default:
		result.Phase = PhaseComplete
	}

	op.Result = result
	op.Progress.Phase = result.Phase
	op.Progress.Error = result.Error
	op.notifyProgress()
	op.closeListeners()
	close(op.Done)

	s.recordRunFinish(op, result, err)
	s.cleanup(op.ID, s.cfg.Ops.CleanupDelay)
}

// recordRunStart writes the run header to history. History failures are
// logged, not fatal; the operation itself proceeds.
func (s *Service) recordRunStart(op *activeOp) {
	if s.history == nil {
		return
	}
	if err := s.history.BeginRun(op.ID, string(op.Kind), op.JobDir); err != nil {
		slog.Warn("record run start", "op_id", op.ID, "error", err)
	}
}

func (s *Service) recordRunFinish(op *activeOp, result *OpResult, err error) {
	if s.history == nil {
		return
	}
	status := history.RunSucceeded
	switch result.Phase {
	case PhaseFailed:
		status = history.RunFailed
	case PhaseCancelled:
		status = history.RunCancelled
	}
	if ferr := s.history.FinishRun(op.ID, status, result.RowsWritten, result.MissingSecondPoses, err); ferr != nil {
		slog.Warn("record run finish", "op_id", op.ID, "error", ferr)
	}
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the operation completes.
func (s *Service) SubscribeProgress(opID string) (<-chan Progress, error) {
	s.mu.RLock()
	op, ok := s.ops[opID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("operation not found: %s", opID)
	}

	ch := make(chan Progress, 10)

	op.ListenerMu.Lock()
	if op.sealed {
		// Already finished; hand back the terminal snapshot and close.
		op.ListenerMu.Unlock()
		ch <- op.Progress
		close(ch)
		return ch, nil
	}
	op.Listeners = append(op.Listeners, ch)
	// Send current progress immediately
	select {
	case ch <- op.Progress:
	default:
	}
	op.ListenerMu.Unlock()

	return ch, nil
}

// CancelOperation cancels an in-progress operation.
func (s *Service) CancelOperation(opID string) error {
	s.mu.RLock()
	op, ok := s.ops[opID]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("operation not found: %s", opID)
	}

	op.Cancel()
	return nil
}

// CancelAll cancels every in-progress operation. Used during shutdown.
func (s *Service) CancelAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, op := range s.ops {
		op.Cancel()
	}
}

// OperationResult returns the result of a completed operation.
// Blocks until the operation completes if still in progress.
func (s *Service) OperationResult(opID string) (*OpResult, error) {
	s.mu.RLock()
	op, ok := s.ops[opID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("operation not found: %s", opID)
	}

	<-op.Done

	return op.Result, nil
}

// OperationProgress returns the current progress without blocking.
func (s *Service) OperationProgress(opID string) (Progress, error) {
	s.mu.RLock()
	op, ok := s.ops[opID]
	s.mu.RUnlock()

	if !ok {
		return Progress{}, fmt.Errorf("operation not found: %s", opID)
	}

	return op.Progress, nil
}

// LimiterStatus reports the operation slots in use.
func (s *Service) LimiterStatus() fileops.LimiterStatus {
	return s.limiter.Status()
}

// WaitForDrain blocks until all running operations have released their
// slots or the context expires. Used during graceful shutdown.
func (s *Service) WaitForDrain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// setPhase publishes a phase change with fresh counters.
func (op *activeOp) setPhase(phase Phase, done, total int) {
	op.Progress.Phase = phase
	op.Progress.Done = done
	op.Progress.Total = total
	op.notifyProgress()
}

// setProgress publishes updated counters for the current phase.
func (op *activeOp) setProgress(done, total int) {
	op.Progress.Done = done
	op.Progress.Total = total
	op.notifyProgress()
}

// notifyProgress sends progress updates to all listeners.
func (op *activeOp) notifyProgress() {
	op.ListenerMu.Lock()
	defer op.ListenerMu.Unlock()

	for _, ch := range op.Listeners {
		select {
		case ch <- op.Progress:
		default:
			// Listener is slow, skip this update
		}
	}
}

// closeListeners closes all listener channels.
func (op *activeOp) closeListeners() {
	op.ListenerMu.Lock()
	defer op.ListenerMu.Unlock()

	for _, ch := range op.Listeners {
		close(ch)
	}
	op.Listeners = nil
	op.sealed = true
}

// cleanup removes the operation from tracking after a delay.
func (s *Service) cleanup(opID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.ops, opID)
		s.mu.Unlock()
	})
}

// ============================================================================
// Catalog
// ============================================================================

// CatalogSnapshot returns the current template catalog.
func (s *Service) CatalogSnapshot() catalog.Snapshot {
	s.catMu.RLock()
	defer s.catMu.RUnlock()
	return s.snapshot
}

// ReplaceCatalog validates, persists, and swaps in a new template
// catalog. Returns the path of the backup taken of the previous file,
// empty when backups are disabled or no file existed.
func (s *Service) ReplaceCatalog(snap catalog.Snapshot) (string, error) {
	backup, err := s.store.Save(snap)
	if err != nil {
		return "", fmt.Errorf("save catalog: %w", err)
	}

	s.catMu.Lock()
	s.snapshot = snap
	s.catMu.Unlock()

	return backup, nil
}

// ============================================================================
// Synchronous queries
// ============================================================================

// ValidateCSV parses a CSV file and reports structural problems without
// modifying anything.
func (s *Service) ValidateCSV(path string) (*csvio.ValidationReport, error) {
	return csvio.ValidateFile(path)
}

// RunHistory returns the most recent runs, newest first.
func (s *Service) RunHistory(limit int) ([]history.Run, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.ListRuns(limit)
}

// FailedRosterRows loads a roster and returns its rejected rows as CSV
// records, header first, for export.
func (s *Service) FailedRosterRows(path string) ([][]string, error) {
	r, err := roster.Load(path)
	if err != nil {
		return nil, err
	}
	return r.FailedRowsCSV(), nil
}
