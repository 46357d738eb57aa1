package maintenance

import (
	"testing"

	"github.com/personafy/personafy-core/internal/engine"
	"github.com/personafy/personafy-core/internal/vault"
	"github.com/personafy/personafy-core/internal/vaulttypes"
)

func TestSweepIsIdempotent(t *testing.T) {
	store := vault.CreateEmpty(vaulttypes.PostureGuarded)
	e := engine.New(store, nil)

	e.Store.AddScheduledRule(&vaulttypes.ScheduledRule{
		Kind: vaulttypes.ScheduledHeartbeat, SourceID: "hb1", AgentID: "a",
		Persona: "work", Fields: []string{"x"}, ExpiresAtMs: 1000,
	}, 0)
	e.Queue.Enqueue(vaulttypes.ContextRequest{AgentID: "a", Persona: "work", Fields: []string{"x"}}, 0, 1000)
	e.Store.SetApprovalQueueEntries(e.Queue.Entries())

	opts := Options{RetentionMs: 1_000_000, KeepApprovals: 0}

	first := Sweep(e, 5000, opts)
	if first.ApprovalsExpired != 1 || first.ScheduledRulesExpired != 1 {
		t.Fatalf("unexpected first sweep: %+v", first)
	}

	second := Sweep(e, 5000, opts)
	if second.ApprovalsExpired != 0 || second.ScheduledRulesExpired != 0 {
		t.Fatalf("expected idempotent second sweep, got %+v", second)
	}
}
