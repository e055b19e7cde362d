package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shutterworks/photoflow/internal/catalog"
	"github.com/shutterworks/photoflow/internal/csvio"
	"github.com/shutterworks/photoflow/internal/history"
	"github.com/shutterworks/photoflow/internal/service"
)

// maxRequestBody bounds JSON request bodies. The API carries paths and
// catalog documents, never file content.
const maxRequestBody = 1 << 20

// decodeJSON reads the request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// opStarted is the accepted-response body for asynchronous operations.
type opStarted struct {
	OpID string `json:"opId"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ============================================================================
// Jobs
// ============================================================================

type jobRequest struct {
	Root string `json:"root"`
}

func (s *Server) handleAnalyzeJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}
	if req.Root == "" {
		s.badRequest(w, r, "missing job root")
		return
	}

	summary, err := s.service.AnalyzeJob(r.Context(), req.Root)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}
	if req.Root == "" {
		s.badRequest(w, r, "missing job root")
		return
	}

	layout, err := service.CreateJobLayout(req.Root)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, layout)
}

// ============================================================================
// Build and rebuilds
// ============================================================================

func (s *Server) handleStartBuild(w http.ResponseWriter, r *http.Request) {
	var req service.BuildRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}
	if req.Root == "" {
		s.badRequest(w, r, "missing job root")
		return
	}

	opID, err := s.service.StartBuild(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, opStarted{OpID: opID})
}

func (s *Server) handleStartFullTeamsRebuild(w http.ResponseWriter, r *http.Request) {
	s.startRebuild(w, r, s.service.StartFullTeamsRebuild)
}

func (s *Server) handleStartSportsMatesRebuild(w http.ResponseWriter, r *http.Request) {
	s.startRebuild(w, r, s.service.StartSportsMatesRebuild)
}

func (s *Server) startRebuild(w http.ResponseWriter, r *http.Request, start func(ctx context.Context, req service.RebuildRequest) (string, error)) {
	var req service.RebuildRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}
	if req.Root == "" {
		s.badRequest(w, r, "missing job root")
		return
	}

	opID, err := start(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, opStarted{OpID: opID})
}

// ============================================================================
// Rename workflow
// ============================================================================

func (s *Server) handleRenamePreflight(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}
	if req.Root == "" {
		s.badRequest(w, r, "missing job root")
		return
	}

	pf, err := s.service.PreflightRename(r.Context(), req.Root)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pf)
}

func (s *Server) handleRenamePlan(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}
	if req.Root == "" {
		s.badRequest(w, r, "missing job root")
		return
	}

	plan, err := s.service.PlanRename(r.Context(), req.Root)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleStartRenameApply(w http.ResponseWriter, r *http.Request) {
	var req service.RenameApplyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}
	if req.Root == "" {
		s.badRequest(w, r, "missing job root")
		return
	}

	opID, err := s.service.StartRenameApply(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, opStarted{OpID: opID})
}

func (s *Server) handleStartRenameUndo(w http.ResponseWriter, r *http.Request) {
	var req service.RenameUndoRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}
	if req.Root == "" || req.RunID == "" {
		s.badRequest(w, r, "missing job root or run ID")
		return
	}

	opID, err := s.service.StartRenameUndo(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, opStarted{OpID: opID})
}

// ============================================================================
// Operation lifecycle
// ============================================================================

func (s *Server) handleOpsStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}

// handleOpProgress streams operation progress via Server-Sent Events.
// Supports resumption via lastEventId query parameter for reconnection.
func (s *Server) handleOpProgress(w http.ResponseWriter, r *http.Request) {
	opID := chi.URLParam(r, "opID")
	if opID == "" {
		s.badRequest(w, r, "missing operation ID")
		return
	}

	// The event ID is the progress percentage, allowing clients to skip
	// already-received events after reconnection
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	var lastEventID int
	if lastEventIDStr != "" {
		lastEventID, _ = strconv.Atoi(lastEventIDStr)
	}

	progressCh, err := s.service.SubscribeProgress(opID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.badRequest(w, r, "streaming not supported")
		return
	}

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed - operation reached a terminal phase
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			currentPercent := progress.Percent()

			// Skip events that were already sent (for resumption)
			if lastEventIDStr != "" && currentPercent <= lastEventID {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", currentPercent, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleOpResult returns the final result of an operation, blocking until
// it completes.
func (s *Server) handleOpResult(w http.ResponseWriter, r *http.Request) {
	opID := chi.URLParam(r, "opID")
	if opID == "" {
		s.badRequest(w, r, "missing operation ID")
		return
	}

	result, err := s.service.OperationResult(opID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCancelOp(w http.ResponseWriter, r *http.Request) {
	opID := chi.URLParam(r, "opID")
	if opID == "" {
		s.badRequest(w, r, "missing operation ID")
		return
	}

	if err := s.service.CancelOperation(opID); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// ============================================================================
// Template catalog
// ============================================================================

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.CatalogSnapshot())
}

func (s *Server) handlePutCatalog(w http.ResponseWriter, r *http.Request) {
	var snap catalog.Snapshot
	if err := decodeJSON(r, &snap); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}

	backup, err := s.service.ReplaceCatalog(snap)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "backup": backup})
}

// ============================================================================
// CSV validation and roster export
// ============================================================================

func (s *Server) handleValidateCSV(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.badRequest(w, r, "missing path parameter")
		return
	}

	report, err := s.service.ValidateCSV(path)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleFailedRosterRows exports a roster's rejected rows as a CSV
// download, status column first.
func (s *Server) handleFailedRosterRows(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.badRequest(w, r, "missing path parameter")
		return
	}

	rows, err := s.service.FailedRosterRows(path)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="failed-rows.csv"`)
	w.Write(csvio.Write(rows))
}

// ============================================================================
// Run history
// ============================================================================

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.badRequest(w, r, "invalid limit parameter")
			return
		}
		limit = n
	}

	runs, err := s.service.RunHistory(limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}
