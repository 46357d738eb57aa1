package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/personafy/personafy-core/internal/host"
	"github.com/personafy/personafy-core/internal/vaulttypes"
)

func newTestHandler(t *testing.T, posture vaulttypes.Posture) *Handler {
	t.Helper()
	h := host.CreateVault(posture, nil)
	return NewHandler(h)
}

func TestListApprovalsEmpty(t *testing.T) {
	h := newTestHandler(t, vaulttypes.PostureGuarded)
	router := h.Router()

	req := httptest.NewRequest("GET", "/api/v1/approvals", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var approvals []*vaulttypes.Approval
	if err := json.NewDecoder(w.Body).Decode(&approvals); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(approvals) != 0 {
		t.Errorf("expected no approvals, got %d", len(approvals))
	}
}

func TestResolveApprovalThroughHTTP(t *testing.T) {
	h := newTestHandler(t, vaulttypes.PostureGuarded)
	if _, err := h.handle.SetPersona("me", "Me", map[string]string{"phone": "555-0100"}, 1_000); err != nil {
		t.Fatalf("SetPersona: %v", err)
	}

	result, err := h.handle.RequestContext(vaulttypes.ContextRequest{
		AgentID:     "agent-1",
		RequestType: vaulttypes.RequestMessage,
		Persona:     "me",
		Fields:      []string{"phone"},
		Purpose:     "verification",
	}, 2_000)
	if err != nil {
		t.Fatalf("RequestContext: %v", err)
	}
	if result.Decision != vaulttypes.DecisionPending {
		t.Fatalf("expected pending decision, got %v", result.Decision)
	}

	router := h.Router()

	body, _ := json.Marshal(resolveApprovalRequest{Decision: vaulttypes.ApprovalApproved, ResolvedBy: "operator"})
	req := httptest.NewRequest("POST", "/api/v1/approvals/"+result.ApprovalID+"/resolve", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	getReq := httptest.NewRequest("GET", "/api/v1/approvals/"+result.ApprovalID, nil)
	getW := httptest.NewRecorder()
	router.ServeHTTP(getW, getReq)

	var approval vaulttypes.Approval
	if err := json.NewDecoder(getW.Body).Decode(&approval); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if approval.Status != vaulttypes.ApprovalApproved {
		t.Errorf("expected approved status, got %v", approval.Status)
	}
}

func TestMaintenanceSweepThroughHTTP(t *testing.T) {
	h := newTestHandler(t, vaulttypes.PostureGuarded)
	router := h.Router()

	req := httptest.NewRequest("POST", "/api/v1/maintenance/sweep", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHealthReflectsBrokenState(t *testing.T) {
	h := newTestHandler(t, vaulttypes.PostureGuarded)
	router := h.Router()

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body map[string]bool
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["broken"] {
		t.Error("expected fresh handle to not be broken")
	}
}
