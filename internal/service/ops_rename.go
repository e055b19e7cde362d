package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/shutterworks/photoflow/internal/fileops"
	"github.com/shutterworks/photoflow/internal/history"
	"github.com/shutterworks/photoflow/internal/roster"
)

// backupStamp names the per-run backup folder.
const backupStamp = "20060102-150405"

// RenamePreflight reports whether a job is ready for a rename run and
// what the run would do, without touching any files.
type RenamePreflight struct {
	RosterPresent    bool     `json:"rosterPresent"`
	ExtractedPresent bool     `json:"extractedPresent"`
	Entries          int      `json:"entries"`
	FailedRows       int      `json:"failedRows"`
	Applicable       int      `json:"applicable"`
	Conflicts        int      `json:"conflicts"`
	Missing          int      `json:"missing"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Ready reports whether an apply run could proceed.
func (p RenamePreflight) Ready() bool {
	return p.RosterPresent && p.ExtractedPresent && p.Applicable > 0
}

// PreflightRename checks the job layout and dry-runs the rename plan.
func (s *Service) PreflightRename(ctx context.Context, root string) (*RenamePreflight, error) {
	layout, err := VerifyJobLayout(root)
	if err != nil {
		return nil, err
	}

	pf := &RenamePreflight{
		RosterPresent:    layout.HasRoster(),
		ExtractedPresent: layout.HasExtracted(),
	}
	if !pf.RosterPresent || !pf.ExtractedPresent {
		return pf, nil
	}

	r, err := roster.Load(layout.RosterPath)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	pf.Entries = len(r.Entries)
	pf.FailedRows = len(r.Failed)

	plan, err := roster.PlanRenames(ctx, r, layout.ExtractedDir, layout.OutputDir)
	if err != nil {
		return nil, err
	}
	pf.Applicable = plan.Applicable()
	pf.Conflicts = plan.Conflicts()
	pf.Missing = len(plan.Missing)
	pf.Warnings = plan.Warnings
	return pf, nil
}

// PlanRename loads the roster and returns the full dry-run plan with
// per-item dispositions.
func (s *Service) PlanRename(ctx context.Context, root string) (*roster.RenamePlan, error) {
	layout, err := VerifyJobLayout(root)
	if err != nil {
		return nil, err
	}

	r, err := roster.Load(layout.RosterPath)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return roster.PlanRenames(ctx, r, layout.ExtractedDir, layout.OutputDir)
}

// RenameApplyRequest names the job for a rename apply run.
type RenameApplyRequest struct {
	// Root is the job folder.
	Root string `json:"root"`

	// Backup copies each source into a timestamped backup folder before
	// it is renamed, so a botched run can be recovered even without the
	// journal.
	Backup bool `json:"backup"`
}

// StartRenameApply begins an asynchronous rename run: plan against the
// roster, then move each matched file to its structured name under the
// Output folder. Applied renames are journaled so the run can be undone.
func (s *Service) StartRenameApply(ctx context.Context, req RenameApplyRequest) (string, error) {
	layout, err := VerifyJobLayout(req.Root)
	if err != nil {
		return "", err
	}
	if !layout.HasRoster() {
		return "", fmt.Errorf("open roster: %s not found", layout.RosterPath)
	}
	if !layout.HasExtracted() {
		return "", fmt.Errorf("no photos found: %s missing", layout.ExtractedDir)
	}

	return s.startOp(ctx, OpRenameApply, layout.Root, func(opCtx context.Context, op *activeOp) (*OpResult, error) {
		return s.runRenameApply(opCtx, op, layout, req.Backup)
	})
}

func (s *Service) runRenameApply(ctx context.Context, op *activeOp, layout JobLayout, backup bool) (*OpResult, error) {
	result := &OpResult{OpID: op.ID, Kind: op.Kind}

	op.setPhase(PhaseScanning, 0, 0)
	r, err := roster.Load(layout.RosterPath)
	if err != nil {
		return result, fmt.Errorf("load roster: %w", err)
	}
	plan, err := roster.PlanRenames(ctx, r, layout.ExtractedDir, layout.OutputDir)
	if err != nil {
		return result, err
	}
	if plan.Applicable() == 0 {
		return result, fmt.Errorf("no photos found to rename")
	}

	backupDir := ""
	if backup {
		backupDir = filepath.Join(layout.Root, "Backup-"+time.Now().Format(backupStamp))
		if err := fileops.EnsureDir(backupDir); err != nil {
			return result, fmt.Errorf("create backup directory: %w", err)
		}
	}
	if err := fileops.EnsureDir(layout.OutputDir); err != nil {
		return result, fmt.Errorf("create output directory: %w", err)
	}

	// Sequence numbers are fixed in plan order before any file moves, so
	// the journal replays deterministically regardless of I/O completion
	// order.
	tasks := make([]fileops.Task, 0, len(plan.Items))
	seq := 0
	for _, item := range plan.Items {
		item := item
		if item.Conflict != "" {
			tasks = append(tasks, fileops.Task{
				Name: item.TargetName,
				Run: func(ctx context.Context) error {
					return fmt.Errorf("conflict: %s", item.Conflict)
				},
			})
			continue
		}
		seq++
		itemSeq := seq
		tasks = append(tasks, fileops.Task{
			Name: item.TargetName,
			Run: func(ctx context.Context) error {
				if backupDir != "" {
					if err := fileops.CopyFile(item.SourcePath, filepath.Join(backupDir, filepath.Base(item.SourcePath))); err != nil {
						return fmt.Errorf("backup: %w", err)
					}
				}
				if err := fileops.MoveFile(item.SourcePath, item.TargetPath); err != nil {
					return err
				}
				s.journalRename(op.ID, itemSeq, item.SourcePath, item.TargetPath)
				return nil
			},
		})
	}

	op.setPhase(PhaseTransferring, 0, len(tasks))
	exec := fileops.Executor{
		Limit: s.cfg.Ops.FileConcurrency,
		Progress: func(completed, total int) {
			op.setProgress(completed, total)
		},
	}
	summary := exec.Run(ctx, tasks)
	applySummary(result, summary)
	result.RowsWritten = summary.Done
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, summary.Err()
}

// journalRename records one applied rename. Journal failures are logged
// via the run record path, never propagated; the rename itself stands.
func (s *Service) journalRename(runID string, seq int, source, target string) {
	if s.history == nil {
		return
	}
	_ = s.history.AppendJournal(history.JournalEntry{
		RunID:   runID,
		Seq:     seq,
		Source:  source,
		Target:  target,
		Applied: true,
	})
}

// RenameUndoRequest names the rename run to roll back.
type RenameUndoRequest struct {
	// Root is the job folder the run operated on.
	Root string `json:"root"`

	// RunID is the rename-apply operation to undo.
	RunID string `json:"runId"`
}

// StartRenameUndo begins an asynchronous undo of a previous rename run,
// replaying its journal in reverse and restoring original names. Entries
// whose files have since moved fail individually without aborting the
// rest.
func (s *Service) StartRenameUndo(ctx context.Context, req RenameUndoRequest) (string, error) {
	if s.history == nil {
		return "", fmt.Errorf("operation not found: history is disabled")
	}
	layout, err := VerifyJobLayout(req.Root)
	if err != nil {
		return "", err
	}

	entries, err := s.history.JournalForRun(req.RunID)
	if err != nil {
		return "", fmt.Errorf("load journal: %w", err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("operation not found: no journal for run %s", req.RunID)
	}

	return s.startOp(ctx, OpRenameUndo, layout.Root, func(opCtx context.Context, op *activeOp) (*OpResult, error) {
		return s.runRenameUndo(opCtx, op, req.RunID, entries)
	})
}

// runRenameUndo replays the journal strictly in reverse sequence order.
// Sequential on purpose: undo must not race restores against each other
// when a file was renamed more than once within the run.
func (s *Service) runRenameUndo(ctx context.Context, op *activeOp, runID string, entries []history.JournalEntry) (*OpResult, error) {
	result := &OpResult{OpID: op.ID, Kind: op.Kind}

	pending := make([]history.JournalEntry, 0, len(entries))
	for _, e := range entries {
		if e.Applied && !e.Undone {
			pending = append(pending, e)
		}
	}
	for i, j := 0, len(pending)-1; i < j; i, j = i+1, j-1 {
		pending[i], pending[j] = pending[j], pending[i]
	}

	op.setPhase(PhaseTransferring, 0, len(pending))
	for i, e := range pending {
		if err := ctx.Err(); err != nil {
			result.FilesCancelled = len(pending) - i
			return result, err
		}
		if err := fileops.MoveFile(e.Target, e.Source); err != nil {
			result.FilesFailed++
			result.FailedItems = append(result.FailedItems, ItemError{Name: e.Target, Reason: err.Error()})
			op.setProgress(i+1, len(pending))
			continue
		}
		if err := s.history.MarkUndone(runID, e.Seq); err != nil {
			result.FailedItems = append(result.FailedItems, ItemError{Name: e.Target, Reason: fmt.Sprintf("restored but not marked undone: %v", err)})
		}
		result.FilesDone++
		op.setProgress(i+1, len(pending))
	}

	if result.FilesFailed > 0 {
		return result, fmt.Errorf("%d of %d file operations failed", result.FilesFailed, len(pending))
	}
	return result, nil
}
