// Package httpapi exposes a VaultHandle's admin operations over a small
// gorilla/mux router: the pending-approval queue, audit log queries, and
// maintenance sweeps, for hosts that want a local admin console instead of
// calling the Go API directly.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/personafy/personafy-core/internal/audit"
	"github.com/personafy/personafy-core/internal/host"
	"github.com/personafy/personafy-core/internal/maintenance"
	"github.com/personafy/personafy-core/internal/vaulttypes"
)

var logger = log.New(log.Writer(), "[HTTPAPI] ", log.LstdFlags)

// Handler serves the admin API against a single VaultHandle.
type Handler struct {
	handle *host.VaultHandle
}

// NewHandler wraps handle for HTTP serving.
func NewHandler(handle *host.VaultHandle) *Handler {
	return &Handler{handle: handle}
}

// Router builds a *mux.Router with every admin route registered under
// /api/v1.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/approvals", h.handleListApprovals).Methods("GET")
	api.HandleFunc("/approvals/{id}", h.handleGetApproval).Methods("GET")
	api.HandleFunc("/approvals/{id}/resolve", h.handleResolveApproval).Methods("POST")
	api.HandleFunc("/approvals/{id}/attach-rule", h.handleAttachStandingRule).Methods("POST")
	api.HandleFunc("/audit", h.handleQueryAudit).Methods("GET")
	api.HandleFunc("/audit/correlate/{correlationId}", h.handleCorrelateAudit).Methods("GET")
	api.HandleFunc("/maintenance/sweep", h.handleMaintenanceSweep).Methods("POST")
	api.HandleFunc("/health", h.handleHealth).Methods("GET")

	return r
}

func (h *Handler) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.handle.GetPendingApprovals())
}

func (h *Handler) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a := h.handle.GetApprovalByID(id)
	if a == nil {
		http.Error(w, "approval not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type resolveApprovalRequest struct {
	Decision   vaulttypes.ApprovalStatus `json:"decision"`
	ResolvedBy string                    `json:"resolvedBy"`
}

func (h *Handler) handleResolveApproval(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body resolveApprovalRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ok := h.handle.ResolveApproval(id, body.Decision, body.ResolvedBy, time.Now().UnixMilli())
	if !ok {
		http.Error(w, "approval not found or already resolved", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"resolved": true})
}

type attachStandingRuleRequest struct {
	RuleID string `json:"ruleId"`
}

func (h *Handler) handleAttachStandingRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body attachStandingRuleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if ok := h.handle.AttachStandingRule(id, body.RuleID); !ok {
		http.Error(w, "approval not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"attached": true})
}

func (h *Handler) handleQueryAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		AgentID:       q.Get("agentId"),
		CorrelationID: q.Get("correlationId"),
	}
	if since := q.Get("since"); since != "" {
		if parsed, err := strconv.ParseInt(since, 10, 64); err == nil {
			filter.Since = parsed
		}
	}
	if limit := q.Get("limit"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil {
			filter.Limit = parsed
		}
	}
	writeJSON(w, http.StatusOK, h.handle.GetAuditLog(filter))
}

func (h *Handler) handleCorrelateAudit(w http.ResponseWriter, r *http.Request) {
	correlationID := mux.Vars(r)["correlationId"]
	writeJSON(w, http.StatusOK, h.handle.CorrelateAuditEntries(correlationID))
}

func (h *Handler) handleMaintenanceSweep(w http.ResponseWriter, r *http.Request) {
	opts := maintenance.Options{
		RetentionMs:   90 * 24 * 60 * 60 * 1000,
		KeepApprovals: 500,
	}
	if q := r.URL.Query().Get("retentionMs"); q != "" {
		if parsed, err := strconv.ParseInt(q, 10, 64); err == nil {
			opts.RetentionMs = parsed
		}
	}
	summary := h.handle.MaintenanceSweep(time.Now().UnixMilli(), opts)
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"broken": h.handle.IsBroken(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Printf("encoding response: %v", err)
	}
}
