package service

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/shutterworks/photoflow/internal/build"
	"github.com/shutterworks/photoflow/internal/csvio"
	"github.com/shutterworks/photoflow/internal/fileops"
)

// RebuildRequest names the job and inputs for a rebuild. Empty fields
// fall back to the standard job layout.
type RebuildRequest struct {
	// Root is the job folder.
	Root string `json:"root"`

	// CSVPath is the existing upload file to derive templates from.
	// Defaults to the configured output name under the job's Output
	// folder.
	CSVPath string `json:"csvPath,omitempty"`

	// SourceDir is where fresh photos are discovered. Defaults to
	// Extracted for a full-teams rebuild and to For Upload for a
	// sports-mates rebuild.
	SourceDir string `json:"sourceDir,omitempty"`

	// OutputDir is where matched photos are staged, one subfolder per
	// team. Defaults to Finished Teams.
	OutputDir string `json:"outputDir,omitempty"`

	// OutputName overrides the configured name for the regenerated CSV.
	OutputName string `json:"outputName,omitempty"`
}

// StartFullTeamsRebuild begins a rebuild that rediscovers team-prefixed
// photos and copies matches into per-team folders, swapping in fresh team
// photos. Templates come from the job's existing upload file.
func (s *Service) StartFullTeamsRebuild(ctx context.Context, req RebuildRequest) (string, error) {
	return s.startRebuild(ctx, OpRebuildFullTeams, req)
}

// StartSportsMatesRebuild begins a rebuild restricted to the per-team
// sports-mate upload folders; matched photos are moved, not copied.
func (s *Service) StartSportsMatesRebuild(ctx context.Context, req RebuildRequest) (string, error) {
	return s.startRebuild(ctx, OpRebuildSportsMate, req)
}

func (s *Service) startRebuild(ctx context.Context, kind OpKind, req RebuildRequest) (string, error) {
	layout, err := VerifyJobLayout(req.Root)
	if err != nil {
		return "", err
	}

	csvPath := req.CSVPath
	if csvPath == "" {
		csvPath = filepath.Join(layout.OutputDir, s.cfg.Build.OutputName)
	}
	sourceDir := req.SourceDir
	if sourceDir == "" {
		if kind == OpRebuildSportsMate {
			sourceDir = layout.ForUploadDir
		} else if layout.HasExtracted() {
			sourceDir = layout.ExtractedDir
		} else {
			sourceDir = layout.Root
		}
	}
	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = layout.FinishedTeamsDir
	}
	outputName := req.OutputName
	if outputName == "" {
		outputName = s.cfg.Build.OutputName
	}

	return s.startOp(ctx, kind, layout.Root, func(opCtx context.Context, op *activeOp) (*OpResult, error) {
		return s.runRebuild(opCtx, op, kind, layout, csvPath, sourceDir, outputDir, outputName)
	})
}

func (s *Service) runRebuild(ctx context.Context, op *activeOp, kind OpKind, layout JobLayout, csvPath, sourceDir, outputDir, outputName string) (*OpResult, error) {
	result := &OpResult{OpID: op.ID, Kind: op.Kind}

	op.setPhase(PhaseScanning, 0, 0)
	doc, err := csvio.ParseFile(csvPath, csvio.ParseOptions{})
	if err != nil {
		return result, fmt.Errorf("parse upload file: %w", err)
	}

	var plan *build.RebuildPlan
	if kind == OpRebuildSportsMate {
		plan, err = build.PlanSportsMatesRebuild(ctx, doc, sourceDir, outputDir)
	} else {
		plan, err = build.PlanFullTeamsRebuild(ctx, doc, sourceDir, outputDir)
	}
	if err != nil {
		return result, fmt.Errorf("plan rebuild: %w", err)
	}

	tasks := rebuildTasks(plan)
	op.setPhase(PhaseTransferring, 0, len(tasks))
	exec := fileops.Executor{
		Limit: s.cfg.Ops.FileConcurrency,
		Progress: func(completed, total int) {
			op.setProgress(completed, total)
		},
	}
	summary := exec.Run(ctx, tasks)
	applySummary(result, summary)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	op.setPhase(PhaseWriting, 0, 0)
	if err := fileops.EnsureDir(layout.OutputDir); err != nil {
		return result, fmt.Errorf("create output directory: %w", err)
	}
	outPath := filepath.Join(layout.OutputDir, outputName)
	if err := csvio.WriteFile(outPath, plan.Rows); err != nil {
		return result, fmt.Errorf("write output file: %w", err)
	}

	result.OutputPath = outPath
	result.RowsWritten = len(plan.Rows)
	result.MissingSecondPoses = plan.MissingSecondPoses
	return result, summary.Err()
}

// rebuildTasks turns a rebuild plan into executor tasks. Each team photo
// swap is one task so its delete-then-copy stays atomic per team.
func rebuildTasks(plan *build.RebuildPlan) []fileops.Task {
	tasks := make([]fileops.Task, 0, len(plan.Transfers)+len(plan.TeamPhotoSwaps))
	for _, t := range plan.Transfers {
		t := t
		run := func(ctx context.Context) error {
			if t.Move {
				return fileops.MoveFile(t.Source, t.Dest)
			}
			return fileops.CopyFile(t.Source, t.Dest)
		}
		tasks = append(tasks, fileops.Task{Name: t.Dest, Run: run})
	}
	for _, sw := range plan.TeamPhotoSwaps {
		sw := sw
		tasks = append(tasks, fileops.Task{
			Name: sw.GroupDest,
			Run: func(ctx context.Context) error {
				if sw.StalePath != "" {
					if err := fileops.RemoveFile(sw.StalePath); err != nil {
						return err
					}
				}
				return fileops.CopyFile(sw.Source, sw.GroupDest)
			},
		})
	}
	return tasks
}

// applySummary copies the executor tallies onto the operation result.
func applySummary(result *OpResult, summary fileops.Summary) {
	result.FilesDone = summary.Done
	result.FilesFailed = summary.Failed
	result.FilesCancelled = summary.Cancelled
	for _, r := range summary.Results {
		if r.Status == fileops.StatusFailed {
			result.FailedItems = append(result.FailedItems, ItemError{Name: r.Name, Reason: r.Err.Error()})
		}
	}
}
