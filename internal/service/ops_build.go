package service

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/shutterworks/photoflow/internal/build"
	"github.com/shutterworks/photoflow/internal/csvio"
	"github.com/shutterworks/photoflow/internal/fileops"
)

// AnalyzeJob scans a job's photo tree and summarizes what a build run
// would see. Runs synchronously; it reads directory listings only.
func (s *Service) AnalyzeJob(ctx context.Context, root string) (*AnalysisSummary, error) {
	layout, err := VerifyJobLayout(root)
	if err != nil {
		return nil, err
	}

	scanRoot := layout.Root
	if layout.HasExtracted() {
		scanRoot = layout.ExtractedDir
	}

	a, err := build.Analyze(ctx, scanRoot)
	if err != nil {
		return nil, err
	}

	byTeam := make(map[string]int, len(a.Teams))
	for _, rec := range a.Regular {
		byTeam[rec.TeamName]++
	}

	return &AnalysisSummary{
		Root:    scanRoot,
		Teams:   a.Teams,
		Regular: len(a.Regular),
		Manual:  len(a.Manual),
		Special: len(a.Special),
		ByTeam:  byTeam,
	}, nil
}

// BuildRequest names the job to synthesize an upload file for.
type BuildRequest struct {
	// Root is the job folder. Photos are read from its Extracted
	// subfolder when present, otherwise from the root itself.
	Root string `json:"root"`

	// OutputName overrides the configured output file name.
	OutputName string `json:"outputName,omitempty"`
}

// StartBuild begins an asynchronous build operation: scan the job's
// photos, synthesize upload rows against the template catalog, and write
// the CSV into the job's Output folder. Returns the operation ID
// immediately. Use SubscribeProgress to get updates.
func (s *Service) StartBuild(ctx context.Context, req BuildRequest) (string, error) {
	layout, err := VerifyJobLayout(req.Root)
	if err != nil {
		return "", err
	}

	outputName := req.OutputName
	if outputName == "" {
		outputName = s.cfg.Build.OutputName
	}

	return s.startOp(ctx, OpBuild, layout.Root, func(opCtx context.Context, op *activeOp) (*OpResult, error) {
		return s.runBuild(opCtx, op, layout, outputName)
	})
}

func (s *Service) runBuild(ctx context.Context, op *activeOp, layout JobLayout, outputName string) (*OpResult, error) {
	result := &OpResult{OpID: op.ID, Kind: op.Kind}

	scanRoot := layout.Root
	if layout.HasExtracted() {
		scanRoot = layout.ExtractedDir
	}

	op.setPhase(PhaseScanning, 0, 0)
	a, err := build.Analyze(ctx, scanRoot)
	if err != nil {
		return result, fmt.Errorf("analyze photos: %w", err)
	}
	if a.PhotoCount() == 0 {
		return result, fmt.Errorf("no photos found under %s", scanRoot)
	}

	op.setPhase(PhaseSynthesizing, 0, a.PhotoCount())
	built, err := build.BuildRows(build.BuildInput{
		Teams:                    a.Teams,
		RegularPhotos:            a.Regular,
		ManualPhotos:             a.Manual,
		Templates:                s.CatalogSnapshot(),
		IncludeManualWithoutTeam: s.cfg.Build.IncludeManualWithoutTeam,
		Progress: func(processed, total int) {
			op.setProgress(processed, total)
		},
	})
	if err != nil {
		return result, fmt.Errorf("synthesize rows: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	op.setPhase(PhaseWriting, 0, 0)
	if err := fileops.EnsureDir(layout.OutputDir); err != nil {
		return result, fmt.Errorf("create output directory: %w", err)
	}
	outPath := filepath.Join(layout.OutputDir, outputName)
	if err := csvio.WriteFile(outPath, built.Rows); err != nil {
		return result, fmt.Errorf("write output file: %w", err)
	}

	result.OutputPath = outPath
	result.RowsWritten = len(built.Rows)
	result.MissingSecondPoses = built.MissingSecondPoses
	return result, nil
}
