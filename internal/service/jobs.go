package service

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shutterworks/photoflow/internal/fileops"
)

// Standard directory names inside a job folder.
const (
	ExtractedDirName     = "Extracted"
	OutputDirName        = "Output"
	FinishedTeamsDirName = "Finished Teams"
	ForUploadDirName     = "For Upload"
	RosterFileName       = "roster.csv"
)

// JobLayout resolves the well-known paths inside a job folder.
type JobLayout struct {
	Root             string `json:"root"`
	RosterPath       string `json:"rosterPath"`
	ExtractedDir     string `json:"extractedDir"`
	OutputDir        string `json:"outputDir"`
	FinishedTeamsDir string `json:"finishedTeamsDir"`
	ForUploadDir     string `json:"forUploadDir"`
}

// NewJobLayout builds the layout for a job root without touching the
// filesystem.
func NewJobLayout(root string) JobLayout {
	return JobLayout{
		Root:             root,
		RosterPath:       filepath.Join(root, RosterFileName),
		ExtractedDir:     filepath.Join(root, ExtractedDirName),
		OutputDir:        filepath.Join(root, OutputDirName),
		FinishedTeamsDir: filepath.Join(root, FinishedTeamsDirName),
		ForUploadDir:     filepath.Join(root, ForUploadDirName),
	}
}

// CreateJobLayout creates the standard directory structure for a new job.
// Existing directories are left alone, so it is safe to call on a job that
// is already partially set up.
func CreateJobLayout(root string) (JobLayout, error) {
	layout := NewJobLayout(root)
	for _, dir := range []string{layout.Root, layout.ExtractedDir, layout.OutputDir, layout.FinishedTeamsDir, layout.ForUploadDir} {
		if err := fileops.EnsureDir(dir); err != nil {
			return JobLayout{}, fmt.Errorf("create job directory: %w", err)
		}
	}
	return layout, nil
}

// VerifyJobLayout checks that a job root exists and reports which of the
// standard pieces are present. A missing roster or output directory is not
// an error here; callers decide what each operation actually needs.
func VerifyJobLayout(root string) (JobLayout, error) {
	info, err := os.Stat(root)
	if err != nil {
		return JobLayout{}, fmt.Errorf("stat job root: %w", err)
	}
	if !info.IsDir() {
		return JobLayout{}, fmt.Errorf("job root %s is not a directory", root)
	}
	return NewJobLayout(root), nil
}

// HasRoster reports whether the job's roster file exists.
func (l JobLayout) HasRoster() bool {
	return fileExists(l.RosterPath)
}

// HasExtracted reports whether the extracted-photos directory exists.
func (l JobLayout) HasExtracted() bool {
	return dirExists(l.ExtractedDir)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
