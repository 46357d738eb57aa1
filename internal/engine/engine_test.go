package engine

import (
	"testing"

	"github.com/personafy/personafy-core/internal/scheduler"
	"github.com/personafy/personafy-core/internal/vault"
	"github.com/personafy/personafy-core/internal/vaulttypes"
)

func newTestEngine(posture vaulttypes.Posture) *Engine {
	store := vault.CreateEmpty(posture)
	return New(store, nil)
}

func TestScenarioBaselineCoverage(t *testing.T) {
	e := newTestEngine(vaulttypes.PostureGuarded)
	e.Store.SetPersona("work", "Work", map[string]string{
		"tools":               "vscode",
		"communication_style": "concise",
	}, 0)
	if err := e.Store.AddRule(&vaulttypes.Rule{
		Persona: "work", Fields: []string{"tools", "communication_style"},
	}, 0); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	result, err := e.RequestContext(vaulttypes.ContextRequest{
		AgentID: "agent-1", RequestType: vaulttypes.RequestMessage, Persona: "work",
		Fields: []string{"tools", "communication_style", "review_preferences"}, Purpose: "help",
	}, 1000)
	if err != nil {
		t.Fatalf("RequestContext: %v", err)
	}

	if result.Decision != vaulttypes.DecisionApproved {
		t.Fatalf("expected approved, got %s", result.Decision)
	}
	if result.ApprovedFields["tools"] != "vscode" || result.ApprovedFields["communication_style"] != "concise" {
		t.Fatalf("unexpected approved fields: %+v", result.ApprovedFields)
	}
	if len(result.PendingFields) != 1 || result.PendingFields[0] != "review_preferences" {
		t.Fatalf("expected review_preferences pending, got %+v", result.PendingFields)
	}
	if result.ApprovalID == "" {
		t.Fatal("expected an approvalId to be present")
	}
}

func TestScenarioLockedPostureDeniesEverything(t *testing.T) {
	e := newTestEngine(vaulttypes.PostureLocked)
	e.Store.SetPersona("work", "Work", map[string]string{"tools": "vscode"}, 0)
	e.Store.AddRule(&vaulttypes.Rule{Persona: "work", Fields: []string{"tools", "communication_style"}}, 0)

	result, err := e.RequestContext(vaulttypes.ContextRequest{
		AgentID: "agent-1", RequestType: vaulttypes.RequestMessage, Persona: "work",
		Fields: []string{"tools", "communication_style", "review_preferences"}, Purpose: "help",
	}, 1000)
	if err != nil {
		t.Fatalf("RequestContext: %v", err)
	}
	if result.Decision != vaulttypes.DecisionDenied {
		t.Fatalf("expected denied, got %s", result.Decision)
	}
	if len(result.ApprovedFields) != 0 {
		t.Fatalf("expected no approved fields, got %+v", result.ApprovedFields)
	}
	if len(result.DeniedFields) != 3 {
		t.Fatalf("expected all 3 fields denied, got %+v", result.DeniedFields)
	}
	if result.ApprovalID != "" {
		t.Fatal("expected no approval enqueued under locked posture")
	}
}

func TestScenarioOpenPostureGrantsOnlyWhereRuleExists(t *testing.T) {
	e := newTestEngine(vaulttypes.PostureOpen)
	e.Store.SetPersona("personal", "Personal", map[string]string{"name": "Alice", "email": "alice@example.com"}, 0)
	e.Store.AddRule(&vaulttypes.Rule{Persona: "personal", Fields: []string{"name"}}, 0)

	result, err := e.RequestContext(vaulttypes.ContextRequest{
		AgentID: "agent", RequestType: vaulttypes.RequestMessage, Persona: "personal",
		Fields: []string{"name", "email"}, Purpose: "chat",
	}, 1000)
	if err != nil {
		t.Fatalf("RequestContext: %v", err)
	}
	if result.ApprovedFields["name"] != "Alice" {
		t.Fatalf("expected name approved, got %+v", result.ApprovedFields)
	}
	if len(result.PendingFields) != 1 || result.PendingFields[0] != "email" {
		t.Fatalf("expected email pending (no rule targets it), got %+v", result.PendingFields)
	}
}

func TestScenarioAgentCompartmentalization(t *testing.T) {
	e := newTestEngine(vaulttypes.PostureGuarded)
	e.Store.SetPersona("personal", "Personal", map[string]string{"name": "Alice", "email": "a@example.com"}, 0)
	e.Store.SetPersona("shopping", "Shopping", map[string]string{"size": "M"}, 0)
	e.Store.AddRule(&vaulttypes.Rule{Persona: "personal", Fields: []string{"name", "email"}, AgentID: "assistant"}, 0)
	e.Store.AddRule(&vaulttypes.Rule{Persona: "shopping", Fields: []string{"size"}, AgentID: "shopper"}, 0)

	r1, _ := e.RequestContext(vaulttypes.ContextRequest{
		AgentID: "assistant", RequestType: vaulttypes.RequestMessage, Persona: "shopping", Fields: []string{"size"}, Purpose: "x",
	}, 0)
	if r1.Decision != vaulttypes.DecisionPending {
		t.Fatalf("expected assistant/shopping.size to be pending, got %s", r1.Decision)
	}

	r2, _ := e.RequestContext(vaulttypes.ContextRequest{
		AgentID: "shopper", RequestType: vaulttypes.RequestMessage, Persona: "personal", Fields: []string{"name"}, Purpose: "x",
	}, 0)
	if r2.Decision != vaulttypes.DecisionPending {
		t.Fatalf("expected shopper/personal.name to be pending, got %s", r2.Decision)
	}

	r3, _ := e.RequestContext(vaulttypes.ContextRequest{
		AgentID: "assistant", RequestType: vaulttypes.RequestMessage, Persona: "personal", Fields: []string{"name"}, Purpose: "x",
	}, 0)
	if r3.Decision != vaulttypes.DecisionApproved {
		t.Fatalf("expected assistant's own persona to be approved, got %s", r3.Decision)
	}
}

func TestEmptyFieldsReturnsApproved(t *testing.T) {
	e := newTestEngine(vaulttypes.PostureGuarded)
	result, err := e.RequestContext(vaulttypes.ContextRequest{
		AgentID: "agent", RequestType: vaulttypes.RequestMessage, Persona: "work", Fields: nil, Purpose: "x",
	}, 0)
	if err != nil {
		t.Fatalf("RequestContext: %v", err)
	}
	if result.Decision != vaulttypes.DecisionApproved {
		t.Fatalf("expected approved for empty fields (preserved ambiguity), got %s", result.Decision)
	}
}

func TestInvalidRequestRejectedWithoutAudit(t *testing.T) {
	e := newTestEngine(vaulttypes.PostureGuarded)
	_, err := e.RequestContext(vaulttypes.ContextRequest{
		AgentID: "", RequestType: vaulttypes.RequestMessage, Persona: "work", Fields: []string{"x"},
	}, 0)
	if err == nil {
		t.Fatal("expected invalid_request error for empty agentId")
	}
	if len(e.Store.Vault().AuditLog) != 0 {
		t.Fatal("expected no audit entry for a rejected request")
	}
}

func TestDuplicateFieldsRejected(t *testing.T) {
	e := newTestEngine(vaulttypes.PostureGuarded)
	_, err := e.RequestContext(vaulttypes.ContextRequest{
		AgentID: "a", RequestType: vaulttypes.RequestMessage, Persona: "work",
		Fields: []string{"tools", "tools"},
	}, 0)
	if err == nil {
		t.Fatal("expected invalid_request error for duplicate fields")
	}
}

func TestHeartbeatLifecycleThroughEngine(t *testing.T) {
	e := newTestEngine(vaulttypes.PostureGuarded)
	e.Store.SetPersona("work", "Work", map[string]string{"tools": "vscode", "role": "eng"}, 0)
	e.Store.AddScheduledRule(&vaulttypes.ScheduledRule{
		Kind: vaulttypes.ScheduledHeartbeat, SourceID: "hb1", AgentID: "agent",
		Persona: "work", Fields: []string{"tools", "role"}, ExpiresAtMs: 60_000,
	}, 0)

	req := vaulttypes.ContextRequest{
		AgentID: "agent", RequestType: vaulttypes.RequestHeartbeat, Persona: "work",
		Fields: []string{"tools", "role"}, SourceID: "hb1",
	}

	before, err := e.RequestContext(req, 1000)
	if err != nil {
		t.Fatalf("RequestContext: %v", err)
	}
	if before.Decision != vaulttypes.DecisionApproved {
		t.Fatalf("expected approved before expiry, got %s", before.Decision)
	}

	// fast-forward and expire the scheduled rule.
	dropped := scheduler.ExpireRules(e.Store.Vault(), e.PreWarm, 120_000)
	if dropped != 1 {
		t.Fatalf("expected 1 scheduled rule expired, got %d", dropped)
	}

	after, err := e.RequestContext(req, 130_000)
	if err != nil {
		t.Fatalf("RequestContext: %v", err)
	}
	if after.Decision != vaulttypes.DecisionPending {
		t.Fatalf("expected pending after expiry, got %s", after.Decision)
	}
}
