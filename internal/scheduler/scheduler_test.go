package scheduler

import (
	"testing"
	"time"

	"github.com/personafy/personafy-core/internal/vaulttypes"
)

func msAt(hh, mm int) int64 {
	return time.Date(2026, 7, 29, hh, mm, 0, 0, time.Local).UnixMilli()
}

func TestHeartbeatLifecycle(t *testing.T) {
	v := vaulttypes.NewEmptyVault(vaulttypes.PostureGuarded)
	v.ScheduledRules = []*vaulttypes.ScheduledRule{
		{
			ID: "sr1", Kind: vaulttypes.ScheduledHeartbeat, SourceID: "hb1",
			AgentID: "agent", Persona: "work", Fields: []string{"tools", "role"},
			ExpiresAtMs: 60_000, CreatedAtMs: 0,
		},
	}
	cache := NewCache()

	if n := ExpireRules(v, cache, 30_000); n != 0 {
		t.Fatalf("expected no expiry before TTL, got %d", n)
	}
	if len(v.ScheduledRules) != 1 {
		t.Fatal("rule should still be present before expiry")
	}

	if n := ExpireRules(v, cache, 120_000); n != 1 {
		t.Fatalf("expected 1 expired after TTL, got %d", n)
	}
	if len(v.ScheduledRules) != 0 {
		t.Fatal("rule should be dropped after expiry")
	}
}

func TestPreWarmAndClear(t *testing.T) {
	v := vaulttypes.NewEmptyVault(vaulttypes.PostureGuarded)
	v.ScheduledRules = []*vaulttypes.ScheduledRule{
		{
			ID: "sr1", Kind: vaulttypes.ScheduledCron, SourceID: "cron1",
			AgentID: "agent", Persona: "work", Fields: []string{"tools"},
			ExpiresAtMs: msAt(23, 59) + 1000,
			TimeWindow:  &vaulttypes.TimeWindow{From: "23:00", To: "01:00"},
		},
	}
	values := map[string]string{"tools": "vscode"}
	getField := func(persona, field string) (string, bool) {
		v, ok := values[field]
		return v, ok
	}
	cache := NewCache()

	pw, ok := PreWarm(cache, v, getField, "cron1", msAt(23, 0))
	if !ok {
		t.Fatal("expected pre-warm at window start to succeed")
	}
	if pw.Fields["tools"] != "vscode" {
		t.Fatalf("expected materialized tools=vscode, got %+v", pw.Fields)
	}

	got, ok := cache.GetPreWarmed("cron1")
	if !ok || got.Fields["tools"] != "vscode" {
		t.Fatal("expected cached pre-warm entry to be retrievable")
	}

	cache.ClearPreWarmed("cron1")
	if _, ok := cache.GetPreWarmed("cron1"); ok {
		t.Fatal("expected cache entry cleared")
	}
}
