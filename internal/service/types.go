package service

import "time"

// OpKind identifies the class of a long-running operation.
type OpKind string

const (
	OpBuild             OpKind = "build"
	OpRebuildFullTeams  OpKind = "rebuild-full-teams"
	OpRebuildSportsMate OpKind = "rebuild-sports-mates"
	OpRenameApply       OpKind = "rename-apply"
	OpRenameUndo        OpKind = "rename-undo"
)

// Phase indicates the current stage of an operation.
type Phase string

const (
	PhaseStarting     Phase = "starting"
	PhaseScanning     Phase = "scanning"
	PhaseSynthesizing Phase = "synthesizing"
	PhaseTransferring Phase = "transferring"
	PhaseWriting      Phase = "writing"
	PhaseComplete     Phase = "complete"
	PhaseFailed       Phase = "failed"
	PhaseCancelled    Phase = "cancelled"
)

// Terminal reports whether the phase is an end state.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// Progress is a snapshot of a running operation, published to subscribers
// after every unit of work.
type Progress struct {
	OpID  string `json:"opId"`
	Kind  OpKind `json:"kind"`
	Phase Phase  `json:"phase"`

	// Done/Total count the current phase's units: photos while
	// synthesizing, file operations while transferring. Total is 0 when
	// the phase has no countable units.
	Done  int `json:"done"`
	Total int `json:"total"`

	// Error is non-empty only when Phase is PhaseFailed.
	Error string `json:"error,omitempty"`
}

// Percent returns the progress as a percentage (0-100).
func (p Progress) Percent() int {
	if p.Phase == PhaseComplete {
		return 100
	}
	if p.Total > 0 {
		return (p.Done * 100) / p.Total
	}
	return 0
}

// ItemError is one failed unit of file work inside an operation.
type ItemError struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// OpResult is the final outcome of an operation.
type OpResult struct {
	OpID  string `json:"opId"`
	Kind  OpKind `json:"kind"`
	Phase Phase  `json:"phase"`

	// OutputPath is the generated CSV, when the operation writes one.
	OutputPath string `json:"outputPath,omitempty"`

	// RowsWritten counts header plus data rows in the generated file.
	RowsWritten int `json:"rowsWritten"`

	// MissingSecondPoses counts rows flagged with the missing-second-pose
	// sentinel; the operator should review them before sending the file.
	MissingSecondPoses int `json:"missingSecondPoses"`

	// File operation tallies for transfers, renames, and undos.
	FilesDone      int         `json:"filesDone"`
	FilesFailed    int         `json:"filesFailed"`
	FilesCancelled int         `json:"filesCancelled"`
	FailedItems    []ItemError `json:"failedItems,omitempty"`

	Duration time.Duration `json:"duration"`

	// Error is non-empty if the operation failed as a whole. Per-item
	// failures land in FailedItems instead.
	Error string `json:"error,omitempty"`
}

// AnalysisSummary is the synchronous result of scanning a job's photos.
type AnalysisSummary struct {
	Root    string         `json:"root"`
	Teams   []string       `json:"teams"`
	Regular int            `json:"regular"`
	Manual  int            `json:"manual"`
	Special int            `json:"special"`
	ByTeam  map[string]int `json:"byTeam"`
}
