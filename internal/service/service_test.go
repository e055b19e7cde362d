package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shutterworks/photoflow/internal/config"
	"github.com/shutterworks/photoflow/internal/fileops"
	"github.com/shutterworks/photoflow/internal/history"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Ops.MaxConcurrent = 1
	cfg.Ops.MaxWait = 50 * time.Millisecond
	cfg.Ops.Timeout = 10 * time.Second
	cfg.Ops.FileConcurrency = 2
	cfg.Ops.CleanupDelay = time.Minute
	cfg.Build.OutputName = "upload.csv"
	cfg.Build.IncludeManualWithoutTeam = true
	return cfg
}

func testService(t *testing.T) *Service {
	t.Helper()
	return New(Options{Config: testConfig()})
}

func testServiceWithHistory(t *testing.T) *Service {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(Options{Config: testConfig(), History: store})
}

// makeJob creates a job folder whose Extracted directory holds the given
// photo files.
func makeJob(t *testing.T, photos ...string) JobLayout {
	t.Helper()
	layout, err := CreateJobLayout(filepath.Join(t.TempDir(), "job"))
	if err != nil {
		t.Fatalf("CreateJobLayout: %v", err)
	}
	for _, name := range photos {
		if err := os.WriteFile(filepath.Join(layout.ExtractedDir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile(%q): %v", name, err)
		}
	}
	return layout
}

// waitResult drains the progress stream and returns the final result.
func waitResult(t *testing.T, s *Service, opID string) *OpResult {
	t.Helper()
	ch, err := s.SubscribeProgress(opID)
	if err != nil {
		t.Fatalf("SubscribeProgress: %v", err)
	}
	for range ch {
	}
	result, err := s.OperationResult(opID)
	if err != nil {
		t.Fatalf("OperationResult: %v", err)
	}
	return result
}

func TestStartBuild_EndToEnd(t *testing.T) {
	s := testService(t)
	layout := makeJob(t,
		"Tigers_Ana Silva_1.jpg",
		"Tigers_Ana Silva_2.jpg",
		"Hawks_Bo_1.jpg",
	)

	opID, err := s.StartBuild(context.Background(), BuildRequest{Root: layout.Root})
	if err != nil {
		t.Fatalf("StartBuild: %v", err)
	}

	result := waitResult(t, s, opID)
	if result.Phase != PhaseComplete {
		t.Fatalf("Phase = %q (error %q), want %q", result.Phase, result.Error, PhaseComplete)
	}
	if want := filepath.Join(layout.OutputDir, "upload.csv"); result.OutputPath != want {
		t.Errorf("OutputPath = %q, want %q", result.OutputPath, want)
	}
	if result.RowsWritten < 2 {
		t.Errorf("RowsWritten = %d, want at least header plus one row", result.RowsWritten)
	}

	data, err := os.ReadFile(result.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(data) == 0 {
		t.Error("output file is empty")
	}
}

func TestStartBuild_NoPhotos(t *testing.T) {
	s := testService(t)
	layout := makeJob(t)

	opID, err := s.StartBuild(context.Background(), BuildRequest{Root: layout.Root})
	if err != nil {
		t.Fatalf("StartBuild: %v", err)
	}

	result := waitResult(t, s, opID)
	if result.Phase != PhaseFailed {
		t.Fatalf("Phase = %q, want %q", result.Phase, PhaseFailed)
	}
	if got := MapError(errors.New(result.Error)); got.Code != "JOB003" {
		t.Errorf("mapped code = %q, want JOB003 (error %q)", got.Code, result.Error)
	}
}

func TestStartBuild_MissingRoot(t *testing.T) {
	s := testService(t)
	_, err := s.StartBuild(context.Background(), BuildRequest{Root: filepath.Join(t.TempDir(), "nope")})
	if err == nil {
		t.Fatal("StartBuild() = nil error, want missing-root error")
	}
}

func TestStartOp_BusyWhenSlotHeld(t *testing.T) {
	s := testService(t)
	layout := makeJob(t, "Tigers_Ana_1.jpg")

	release := make(chan struct{})
	holdID, err := s.startOp(context.Background(), OpBuild, layout.Root, func(ctx context.Context, op *activeOp) (*OpResult, error) {
		<-release
		return nil, nil
	})
	if err != nil {
		t.Fatalf("startOp: %v", err)
	}

	_, err = s.StartBuild(context.Background(), BuildRequest{Root: layout.Root})
	if !errors.Is(err, fileops.ErrBusy) {
		t.Errorf("StartBuild with held slot: error = %v, want ErrBusy", err)
	}

	close(release)
	result := waitResult(t, s, holdID)
	if result.Phase != PhaseComplete {
		t.Errorf("held op Phase = %q, want %q", result.Phase, PhaseComplete)
	}
}

func TestCancelOperation(t *testing.T) {
	s := testService(t)
	layout := makeJob(t)

	opID, err := s.startOp(context.Background(), OpBuild, layout.Root, func(ctx context.Context, op *activeOp) (*OpResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err != nil {
		t.Fatalf("startOp: %v", err)
	}

	if err := s.CancelOperation(opID); err != nil {
		t.Fatalf("CancelOperation: %v", err)
	}

	result := waitResult(t, s, opID)
	if result.Phase != PhaseCancelled {
		t.Errorf("Phase = %q, want %q", result.Phase, PhaseCancelled)
	}
}

func TestOperation_NotFound(t *testing.T) {
	s := testService(t)

	if _, err := s.SubscribeProgress("missing"); err == nil {
		t.Error("SubscribeProgress(missing) = nil error")
	}
	if _, err := s.OperationResult("missing"); err == nil {
		t.Error("OperationResult(missing) = nil error")
	}
	if _, err := s.OperationProgress("missing"); err == nil {
		t.Error("OperationProgress(missing) = nil error")
	}
	if err := s.CancelOperation("missing"); err == nil {
		t.Error("CancelOperation(missing) = nil error")
	}
}

func TestAnalyzeJob(t *testing.T) {
	s := testService(t)
	layout := makeJob(t,
		"Tigers_Ana Silva_1.jpg",
		"Tigers_Ana Silva_2.jpg",
		"Hawks_Bo_1.jpg",
		"Tigers_TEAM.jpg",
		"IMG_0001.jpg",
	)

	summary, err := s.AnalyzeJob(context.Background(), layout.Root)
	if err != nil {
		t.Fatalf("AnalyzeJob: %v", err)
	}

	if summary.Root != layout.ExtractedDir {
		t.Errorf("Root = %q, want Extracted dir %q", summary.Root, layout.ExtractedDir)
	}
	if summary.Regular != 3 {
		t.Errorf("Regular = %d, want 3", summary.Regular)
	}
	if summary.Manual != 1 {
		t.Errorf("Manual = %d, want 1", summary.Manual)
	}
	if summary.Special != 1 {
		t.Errorf("Special = %d, want 1", summary.Special)
	}
	if got := summary.ByTeam["Tigers"]; got != 2 {
		t.Errorf("ByTeam[Tigers] = %d, want 2", got)
	}
}

func TestPreflightRename_MissingPieces(t *testing.T) {
	s := testService(t)
	root := t.TempDir()

	pf, err := s.PreflightRename(context.Background(), root)
	if err != nil {
		t.Fatalf("PreflightRename: %v", err)
	}
	if pf.RosterPresent || pf.ExtractedPresent {
		t.Errorf("presence = roster %v extracted %v, want false/false", pf.RosterPresent, pf.ExtractedPresent)
	}
	if pf.Ready() {
		t.Error("Ready() = true with nothing present")
	}
}

const testRoster = "FILE NAME,FIRST NAME,LAST NAME,GRADE,HEIGHT,WEIGHT,JERSEY,TEAM NAME\n" +
	"IMG_01.JPG,Ana,Silva,5,48,90,12,Tigers\n" +
	"IMG_02.JPG,Bo,,6,50,95,8,Hawks\n"

func TestRenameApplyAndUndo(t *testing.T) {
	s := testServiceWithHistory(t)
	layout := makeJob(t, "IMG_01.JPG", "IMG_02.JPG")
	if err := os.WriteFile(layout.RosterPath, []byte(testRoster), 0o644); err != nil {
		t.Fatal(err)
	}

	pf, err := s.PreflightRename(context.Background(), layout.Root)
	if err != nil {
		t.Fatalf("PreflightRename: %v", err)
	}
	if !pf.Ready() || pf.Applicable != 2 {
		t.Fatalf("preflight = %+v, want ready with 2 applicable", pf)
	}

	applyID, err := s.StartRenameApply(context.Background(), RenameApplyRequest{Root: layout.Root})
	if err != nil {
		t.Fatalf("StartRenameApply: %v", err)
	}
	result := waitResult(t, s, applyID)
	if result.Phase != PhaseComplete {
		t.Fatalf("apply Phase = %q (error %q), want %q", result.Phase, result.Error, PhaseComplete)
	}
	if result.FilesDone != 2 {
		t.Fatalf("FilesDone = %d, want 2", result.FilesDone)
	}

	renamed := filepath.Join(layout.OutputDir, "Tigers_Ana Silva_1.JPG")
	if _, err := os.Stat(renamed); err != nil {
		t.Fatalf("renamed file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(layout.ExtractedDir, "IMG_01.JPG")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source still present after apply: %v", err)
	}

	undoID, err := s.StartRenameUndo(context.Background(), RenameUndoRequest{Root: layout.Root, RunID: applyID})
	if err != nil {
		t.Fatalf("StartRenameUndo: %v", err)
	}
	result = waitResult(t, s, undoID)
	if result.Phase != PhaseComplete {
		t.Fatalf("undo Phase = %q (error %q), want %q", result.Phase, result.Error, PhaseComplete)
	}
	if result.FilesDone != 2 {
		t.Fatalf("undo FilesDone = %d, want 2", result.FilesDone)
	}

	if _, err := os.Stat(filepath.Join(layout.ExtractedDir, "IMG_01.JPG")); err != nil {
		t.Errorf("original not restored: %v", err)
	}
	if _, err := os.Stat(renamed); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("renamed file still present after undo: %v", err)
	}

	// A second undo has nothing left to replay.
	if _, err := s.StartRenameUndo(context.Background(), RenameUndoRequest{Root: layout.Root, RunID: "unknown-run"}); err == nil {
		t.Error("StartRenameUndo(unknown run) = nil error")
	}
}

func TestStartRenameApply_MissingRoster(t *testing.T) {
	s := testService(t)
	layout := makeJob(t, "IMG_01.JPG")

	_, err := s.StartRenameApply(context.Background(), RenameApplyRequest{Root: layout.Root})
	if err == nil {
		t.Fatal("StartRenameApply() = nil error, want missing-roster error")
	}
	if got := MapError(err); got.Code != "RST001" {
		t.Errorf("mapped code = %q, want RST001 (error %v)", got.Code, err)
	}
}

func TestRunHistory_RecordsRuns(t *testing.T) {
	s := testServiceWithHistory(t)
	layout := makeJob(t, "Tigers_Ana_1.jpg")

	opID, err := s.StartBuild(context.Background(), BuildRequest{Root: layout.Root})
	if err != nil {
		t.Fatalf("StartBuild: %v", err)
	}
	waitResult(t, s, opID)

	runs, err := s.RunHistory(10)
	if err != nil {
		t.Fatalf("RunHistory: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	if runs[0].ID != opID || runs[0].Kind != string(OpBuild) {
		t.Errorf("run = %+v, want ID %s kind %s", runs[0], opID, OpBuild)
	}
	if runs[0].Status != history.RunSucceeded {
		t.Errorf("Status = %q, want %q", runs[0].Status, history.RunSucceeded)
	}
}

func TestWaitForDrain(t *testing.T) {
	s := testService(t)
	layout := makeJob(t)

	release := make(chan struct{})
	opID, err := s.startOp(context.Background(), OpBuild, layout.Root, func(ctx context.Context, op *activeOp) (*OpResult, error) {
		<-release
		return nil, nil
	})
	if err != nil {
		t.Fatalf("startOp: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.WaitForDrain(ctx); err == nil {
		t.Error("WaitForDrain with active op = nil error, want timeout")
	}

	close(release)
	waitResult(t, s, opID)

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := s.WaitForDrain(ctx2); err != nil {
		t.Errorf("WaitForDrain after completion: %v", err)
	}
}
