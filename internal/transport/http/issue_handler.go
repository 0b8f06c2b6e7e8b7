// Copyright 2026 The Fixpoint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fixpoint/fixpoint/internal/audit"
	"github.com/fixpoint/fixpoint/internal/event"
	"github.com/fixpoint/fixpoint/internal/export"
	"github.com/fixpoint/fixpoint/internal/issue"
	"github.com/fixpoint/fixpoint/internal/observability/logger"
)

// CreateIssueRequest represents the issue_add payload
type CreateIssueRequest struct {
	Name     string   `json:"name" binding:"required" example:"Broken elevator"`
	Summary  string   `json:"summary" example:"Elevator in block B stuck between floors"`
	Priority string   `json:"priority" example:"high"`
	Color    string   `json:"color" example:"#ff0000"`
	Tags     []string `json:"tags"`
	Files    []string `json:"files"`
}

// CreateIssue records a new issue
// @Summary Create Issue
// @Description Record a new issue in status new and start its timers
// @Tags Issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateIssueRequest true "Issue Data"
// @Success 201 {object} issue.Issue
// @Failure 400 {object} map[string]string
// @Router /issues [post]
func (h *Handler) CreateIssue(w http.ResponseWriter, r *http.Request) {
	var req CreateIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	t := GetTenant(r.Context())
	iss, err := h.issueService.Create(r.Context(), GetStore(r.Context()), issue.CreateInput{
		TenantID:   t.TenantID,
		AuthorUUID: GetUserID(r.Context()),
		Name:       req.Name,
		Summary:    req.Summary,
		Priority:   req.Priority,
		Color:      req.Color,
		Tags:       req.Tags,
		Files:      req.Files,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, iss)
}

// ListIssues lists issues of the current partition
// @Summary List Issues
// @Description List issues with pagination, newest first
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (max 200)"
// @Param offset query int false "Offset"
// @Success 200 {array} issue.Issue
// @Router /issues [get]
func (h *Handler) ListIssues(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	issues, err := h.issueService.List(r.Context(), GetStore(r.Context()), limit, offset)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if issues == nil {
		issues = []*issue.Issue{}
	}

	respondJSON(w, http.StatusOK, issues)
}

// GetIssue retrieves one issue
// @Summary Get Issue
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Param issueUUID path string true "Issue UUID"
// @Success 200 {object} issue.Issue
// @Failure 404 {object} map[string]string
// @Router /issues/{issueUUID} [get]
func (h *Handler) GetIssue(w http.ResponseWriter, r *http.Request) {
	iss, err := h.issueService.Get(r.Context(), GetStore(r.Context()), chi.URLParam(r, "issueUUID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, iss)
}

// UpdateIssueRequest represents direct field edits
type UpdateIssueRequest struct {
	Name    *string  `json:"name"`
	Summary *string  `json:"summary"`
	Tags    []string `json:"tags"`
	Files   []string `json:"files"`
}

// UpdateIssue edits issue fields outside the state machine
// @Summary Update Issue
// @Description Edit name, summary, tags or files. Status never changes here.
// @Tags Issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param issueUUID path string true "Issue UUID"
// @Param request body UpdateIssueRequest true "Fields to update"
// @Success 200 {object} issue.Issue
// @Failure 404 {object} map[string]string
// @Router /issues/{issueUUID} [patch]
func (h *Handler) UpdateIssue(w http.ResponseWriter, r *http.Request) {
	var req UpdateIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t := GetTenant(r.Context())
	iss, err := h.issueService.UpdateDetails(r.Context(), GetStore(r.Context()), issue.UpdateInput{
		TenantID:  t.TenantID,
		IssueUUID: chi.URLParam(r, "issueUUID"),
		ActorUUID: GetUserID(r.Context()),
		Name:      req.Name,
		Summary:   req.Summary,
		Tags:      req.Tags,
		Files:     req.Files,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, iss)
}

// DeleteIssue soft-deletes an issue
// @Summary Delete Issue
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Param issueUUID path string true "Issue UUID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /issues/{issueUUID} [delete]
func (h *Handler) DeleteIssue(w http.ResponseWriter, r *http.Request) {
	t := GetTenant(r.Context())
	err := h.issueService.Delete(r.Context(), GetStore(r.Context()),
		t.TenantID, chi.URLParam(r, "issueUUID"), GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "issue deleted"})
}

// ActionRequest carries the optional payload of a state machine action
type ActionRequest struct {
	Description string `json:"description" example:"Taking this one"`
	TargetUUID  string `json:"target_uuid" example:"0195c3a1-..."`
}

// ApplyIssueAction applies one state machine action to an issue
// @Summary Apply Issue Action
// @Description Validate and apply an action (accept, reject, add_person, remove_person, start_progress, pause, resume, done, approve, decline)
// @Tags Issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param issueUUID path string true "Issue UUID"
// @Param action path string true "Action name"
// @Param request body ActionRequest false "Action Payload"
// @Success 200 {object} issue.Issue
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /issues/{issueUUID}/actions/{action} [post]
func (h *Handler) ApplyIssueAction(w http.ResponseWriter, r *http.Request) {
	action := event.Action("issue_" + chi.URLParam(r, "action"))
	if !action.Valid() || action == event.ActionIssueAdd {
		respondError(w, http.StatusBadRequest, "unknown action")
		return
	}

	var req ActionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	t := GetTenant(r.Context())
	start := time.Now()
	iss, err := h.issueService.Apply(r.Context(), GetStore(r.Context()), issue.ActionInput{
		TenantID:    t.TenantID,
		IssueUUID:   chi.URLParam(r, "issueUUID"),
		Action:      action,
		AuthorUUID:  GetUserID(r.Context()),
		Description: req.Description,
		TargetUUID:  req.TargetUUID,
	})
	if err != nil {
		if errors.Is(err, issue.ErrInvalidTransition) {
			h.meter.GuardRejections.Add(r.Context(), 1,
				metric.WithAttributes(attribute.String("action", string(action))))
		}
		respondDomainError(w, r, err)
		return
	}

	h.meter.Transitions.Add(r.Context(), 1,
		metric.WithAttributes(attribute.String("action", string(action))))
	h.meter.TransitionTime.Record(r.Context(), float64(time.Since(start).Milliseconds()))

	respondJSON(w, http.StatusOK, iss)
}

// ListIssueEvents returns the action history of an issue
// @Summary List Issue Events
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Param issueUUID path string true "Issue UUID"
// @Success 200 {array} event.Event
// @Router /issues/{issueUUID}/events [get]
func (h *Handler) ListIssueEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.issueService.Events(r.Context(), GetStore(r.Context()), chi.URLParam(r, "issueUUID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if events == nil {
		events = []*event.Event{}
	}
	respondJSON(w, http.StatusOK, events)
}

// ListIssueSummaries returns the interval ledger of an issue
// @Summary List Issue Summaries
// @Description Open and closed ledger intervals with durations in seconds
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Param issueUUID path string true "Issue UUID"
// @Success 200 {array} ledger.Entry
// @Router /issues/{issueUUID}/summaries [get]
func (h *Handler) ListIssueSummaries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.issueService.Summaries(r.Context(), GetStore(r.Context()), chi.URLParam(r, "issueUUID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// exportPageSize bounds one listing round-trip during export.
const exportPageSize = 500

// ExportIssuesCSV streams a CSV report of all issues
// @Summary Export Issues CSV
// @Description Download all issues with their ledger durations in minutes
// @Tags Issues
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {string} string "CSV content"
// @Router /issues/export.csv [get]
func (h *Handler) ExportIssuesCSV(w http.ResponseWriter, r *http.Request) {
	store := GetStore(r.Context())

	var rows []export.Row
	for offset := 0; ; offset += exportPageSize {
		issues, err := h.issueService.List(r.Context(), store, exportPageSize, offset)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		for _, iss := range issues {
			entries, err := h.issueService.Summaries(r.Context(), store, iss.UUID)
			if err != nil {
				respondDomainError(w, r, err)
				return
			}
			rows = append(rows, export.Row{Issue: iss, Entries: entries})
		}
		if len(issues) < exportPageSize {
			break
		}
	}

	t := GetTenant(r.Context())
	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeExportGenerated,
		TenantID:  t.TenantID,
		ActorID:   GetUserID(r.Context()),
		Resource:  "issues.csv",
		IPAddress: getIPAddress(r),
		Metadata:  map[string]any{"rows": len(rows)},
	})

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="issues.csv"`)
	if err := export.WriteCSV(w, rows); err != nil {
		// Headers are gone; all we can do is log.
		slog.ErrorContext(r.Context(), "csv export aborted mid-stream", logger.Error(err))
	}
}

// UploadIssueFile stores an attachment and links it to the issue
// @Summary Upload Issue File
// @Description Store the request body as an attachment under the given name and link it to the issue
// @Tags Issues
// @Accept octet-stream
// @Produce json
// @Security BearerAuth
// @Param issueUUID path string true "Issue UUID"
// @Param name path string true "File name"
// @Success 201 {object} issue.Issue
// @Failure 404 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /issues/{issueUUID}/files/{name} [put]
func (h *Handler) UploadIssueFile(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		respondError(w, http.StatusServiceUnavailable, "file storage is not configured")
		return
	}

	iss, err := h.issueService.Get(r.Context(), GetStore(r.Context()), chi.URLParam(r, "issueUUID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	name := chi.URLParam(r, "name")
	t := GetTenant(r.Context())
	if _, err := h.files.Upload(r.Context(), t.TenantID, name, r.Body,
		r.ContentLength, r.Header.Get("Content-Type")); err != nil {
		respondDomainError(w, r, err)
		return
	}

	// Re-uploading an attached file replaces the object; the link stays.
	if !slices.Contains(iss.Files, name) {
		iss, err = h.issueService.UpdateDetails(r.Context(), GetStore(r.Context()), issue.UpdateInput{
			TenantID:  t.TenantID,
			IssueUUID: iss.UUID,
			ActorUUID: GetUserID(r.Context()),
			Files:     append(iss.Files, name),
		})
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
	}

	respondJSON(w, http.StatusCreated, iss)
}

// DeleteIssueFile removes an attachment from the bucket and the issue
// @Summary Delete Issue File
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Param issueUUID path string true "Issue UUID"
// @Param name path string true "File name"
// @Success 200 {object} issue.Issue
// @Failure 404 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /issues/{issueUUID}/files/{name} [delete]
func (h *Handler) DeleteIssueFile(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		respondError(w, http.StatusServiceUnavailable, "file storage is not configured")
		return
	}

	iss, err := h.issueService.Get(r.Context(), GetStore(r.Context()), chi.URLParam(r, "issueUUID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	name := chi.URLParam(r, "name")
	i := slices.Index(iss.Files, name)
	if i < 0 {
		respondError(w, http.StatusNotFound, "file is not attached to this issue")
		return
	}

	t := GetTenant(r.Context())
	if err := h.files.Remove(r.Context(), t.TenantID, name); err != nil {
		respondDomainError(w, r, err)
		return
	}

	iss, err = h.issueService.UpdateDetails(r.Context(), GetStore(r.Context()), issue.UpdateInput{
		TenantID:  t.TenantID,
		IssueUUID: iss.UUID,
		ActorUUID: GetUserID(r.Context()),
		Files:     slices.Delete(slices.Clone(iss.Files), i, i+1),
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, iss)
}

// IssueFileURL returns a presigned download URL for an attachment
// @Summary Issue File URL
// @Description Time-limited download URL for a file attached to the issue
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Param issueUUID path string true "Issue UUID"
// @Param name path string true "File name"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /issues/{issueUUID}/files/{name}/url [get]
func (h *Handler) IssueFileURL(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		respondError(w, http.StatusServiceUnavailable, "file storage is not configured")
		return
	}

	iss, err := h.issueService.Get(r.Context(), GetStore(r.Context()), chi.URLParam(r, "issueUUID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	name := chi.URLParam(r, "name")
	if !slices.Contains(iss.Files, name) {
		respondError(w, http.StatusNotFound, "file is not attached to this issue")
		return
	}

	t := GetTenant(r.Context())
	url, err := h.files.PresignedURL(r.Context(), t.TenantID, name)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, 200)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
