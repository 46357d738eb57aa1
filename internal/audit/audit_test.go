package audit

import (
	"path/filepath"
	"testing"

	"github.com/personafy/personafy-core/internal/vaulttypes"
)

func TestAppendAndQuery(t *testing.T) {
	v := vaulttypes.NewEmptyVault(vaulttypes.PostureGuarded)
	Append(v, &vaulttypes.AuditEntry{AgentID: "a1", Persona: "work", Decision: vaulttypes.DecisionApproved}, 100)
	Append(v, &vaulttypes.AuditEntry{AgentID: "a2", Persona: "personal", Decision: vaulttypes.DecisionDenied}, 200)

	got := Query(v, Filter{AgentID: "a1"})
	if len(got) != 1 || got[0].AgentID != "a1" {
		t.Fatalf("expected 1 entry for a1, got %+v", got)
	}
}

func TestPruneOlderThan(t *testing.T) {
	v := vaulttypes.NewEmptyVault(vaulttypes.PostureGuarded)
	Append(v, &vaulttypes.AuditEntry{AgentID: "a1"}, 1000)
	Append(v, &vaulttypes.AuditEntry{AgentID: "a2"}, 5000)

	removed := PruneOlderThan(v, 5000, 2000)
	if removed != 1 {
		t.Fatalf("expected 1 pruned, got %d", removed)
	}
	if len(v.AuditLog) != 1 || v.AuditLog[0].AgentID != "a2" {
		t.Fatalf("expected only a2 remaining, got %+v", v.AuditLog)
	}
}

func TestSQLiteMirrorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	mirror, err := OpenSQLiteMirror(filepath.Join(dir, "audit.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteMirror: %v", err)
	}
	defer mirror.Close()

	entry := &vaulttypes.AuditEntry{
		ID: "e1", AgentID: "agent-1", RequestType: vaulttypes.RequestMessage,
		Persona: "work", Fields: []string{"tools"}, Purpose: "help",
		Decision: vaulttypes.DecisionApproved, Timestamp: 100,
	}
	if err := mirror.Mirror(entry); err != nil {
		t.Fatalf("Mirror: %v", err)
	}

	got, err := mirror.QueryByAgent("agent-1", 0, 0)
	if err != nil {
		t.Fatalf("QueryByAgent: %v", err)
	}
	if len(got) != 1 || got[0].ID != "e1" {
		t.Fatalf("expected mirrored entry, got %+v", got)
	}
}
