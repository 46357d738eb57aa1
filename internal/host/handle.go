// Package host is the thin facade an embedding host calls: createVault,
// loadVault, saveVault, and every request/inspect/admin operation in the
// external-interfaces table. It owns no policy of its own — it only wires
// together the vault store, engine, and maintenance sweep behind a single
// VaultHandle, mirroring this codebase's top-level Server struct that
// combines store+queue+notify+router into one facade.
package host

import (
	"fmt"
	"log"

	"github.com/personafy/personafy-core/internal/audit"
	"github.com/personafy/personafy-core/internal/engine"
	"github.com/personafy/personafy-core/internal/maintenance"
	"github.com/personafy/personafy-core/internal/scheduler"
	"github.com/personafy/personafy-core/internal/vault"
	"github.com/personafy/personafy-core/internal/vaulttypes"
)

var logger = log.New(log.Writer(), "[HOST] ", log.LstdFlags)

// VaultHandle is the explicit, non-singleton handle every operation is
// called against — never a global/package-level "active vault" variable.
type VaultHandle struct {
	engine *engine.Engine
	// broken is set on internal_invariant_violation. From then on the
	// error-returning operations (SaveVault, SetPosture, SetPersona, AddFact,
	// AddRule, AddScheduledRule, RequestContext) refuse to run; DeleteFact,
	// RemoveRule, RevokeScheduledRule, ResolveApproval, AttachStandingRule
	// and MaintenanceSweep do not check it.
	broken bool
}

// CreateVault builds a brand-new, empty vault handle.
func CreateVault(posture vaulttypes.Posture, notifier engine.Notifier) *VaultHandle {
	store := vault.CreateEmpty(posture)
	return &VaultHandle{engine: engine.New(store, notifier)}
}

// LoadVault reads dir/vault-data.json, optionally sealed with passphrase.
// The passphrase lives only in this call frame; the handle never retains it.
func LoadVault(dir string, passphrase string, notifier engine.Notifier) (*VaultHandle, error) {
	store, err := vault.Load(dir, passphrase)
	if err != nil {
		return nil, err
	}
	return &VaultHandle{engine: engine.New(store, notifier)}, nil
}

// SaveVault writes the handle's vault to dir, optionally sealed with
// passphrase, and invalidates the pre-warm cache (reload semantics).
func (h *VaultHandle) SaveVault(dir string, passphrase string) error {
	if err := h.guard(); err != nil {
		return err
	}
	if err := h.engine.Store.Save(dir, passphrase); err != nil {
		return err
	}
	h.engine.PreWarm.Clear()
	return nil
}

func (h *VaultHandle) guard() error {
	if h.broken {
		return fmt.Errorf("internal_invariant_violation: vault handle refuses further writes until reloaded")
	}
	return nil
}

func (h *VaultHandle) checkInvariants() {
	if err := h.engine.Store.CheckInvariants(); err != nil {
		logger.Printf("invariant violation, refusing further writes: %v", err)
		h.broken = true
	}
}

// SetPosture updates the global disclosure posture.
func (h *VaultHandle) SetPosture(posture vaulttypes.Posture) error {
	if err := h.guard(); err != nil {
		return err
	}
	err := h.engine.Store.SetPosture(posture)
	h.checkInvariants()
	return err
}

// SetPersona upserts a persona.
func (h *VaultHandle) SetPersona(id, label string, fields map[string]string, nowMs int64) (*vaulttypes.Persona, error) {
	if err := h.guard(); err != nil {
		return nil, err
	}
	p, err := h.engine.Store.SetPersona(id, label, fields, nowMs)
	h.checkInvariants()
	return p, err
}

// AddFact appends a fact.
func (h *VaultHandle) AddFact(persona, field, value string, nowMs int64) (*vaulttypes.Fact, error) {
	if err := h.guard(); err != nil {
		return nil, err
	}
	return h.engine.Store.AddFact(persona, field, value, nowMs)
}

// DeleteFact removes a fact by id.
func (h *VaultHandle) DeleteFact(id string) bool {
	return h.engine.Store.DeleteFact(id)
}

// AddRule installs a new standard rule.
func (h *VaultHandle) AddRule(rule *vaulttypes.Rule, nowMs int64) error {
	if err := h.guard(); err != nil {
		return err
	}
	err := h.engine.Store.AddRule(rule, nowMs)
	h.checkInvariants()
	return err
}

// RemoveRule deletes a standard rule by id.
func (h *VaultHandle) RemoveRule(id string) bool {
	return h.engine.Store.RemoveRule(id)
}

// AddScheduledRule installs a new scheduled rule.
func (h *VaultHandle) AddScheduledRule(rule *vaulttypes.ScheduledRule, nowMs int64) error {
	if err := h.guard(); err != nil {
		return err
	}
	err := h.engine.Store.AddScheduledRule(rule, nowMs)
	h.checkInvariants()
	return err
}

// RevokeScheduledRule removes a scheduled rule by id.
func (h *VaultHandle) RevokeScheduledRule(id string) bool {
	return h.engine.Store.RevokeScheduledRule(id)
}

// RequestContext runs the full decision pipeline.
func (h *VaultHandle) RequestContext(req vaulttypes.ContextRequest, nowMs int64) (engine.Result, error) {
	if err := h.guard(); err != nil {
		return engine.Result{}, err
	}
	result, err := h.engine.RequestContext(req, nowMs)
	h.checkInvariants()
	return result, err
}

// ResolveApproval resolves a pending approval.
func (h *VaultHandle) ResolveApproval(id string, decision vaulttypes.ApprovalStatus, resolvedBy string, nowMs int64) bool {
	return h.engine.ResolveApproval(id, decision, resolvedBy, nowMs)
}

// AttachStandingRule records a resolved approval's follow-up rule id.
func (h *VaultHandle) AttachStandingRule(approvalID, ruleID string) bool {
	return h.engine.AttachStandingRule(approvalID, ruleID)
}

// GetPendingApprovals returns every currently pending approval.
func (h *VaultHandle) GetPendingApprovals() []*vaulttypes.Approval {
	return h.engine.Queue.Pending()
}

// GetApprovalByID returns an approval by id, or nil.
func (h *VaultHandle) GetApprovalByID(id string) *vaulttypes.Approval {
	return h.engine.Queue.GetByID(id)
}

// GetAuditLog queries the audit log with an optional filter.
func (h *VaultHandle) GetAuditLog(filter audit.Filter) []*vaulttypes.AuditEntry {
	return audit.Query(h.engine.Store.Vault(), filter)
}

// CorrelateAuditEntries returns every entry sharing correlationID.
func (h *VaultHandle) CorrelateAuditEntries(correlationID string) []*vaulttypes.AuditEntry {
	return audit.Correlate(h.engine.Store.Vault(), correlationID)
}

// MaintenanceSweep runs one maintenance pass.
func (h *VaultHandle) MaintenanceSweep(nowMs int64, opts maintenance.Options) maintenance.Summary {
	return maintenance.Sweep(h.engine, nowMs, opts)
}

// PreWarm evaluates a cron rule ahead of its scheduled tick.
func (h *VaultHandle) PreWarm(sourceID string, nowMs int64) (scheduler.PreWarmed, bool) {
	return scheduler.PreWarm(h.engine.PreWarm, h.engine.Store.Vault(), h.engine.Store.GetFieldValue, sourceID, nowMs)
}

// GetPreWarmed returns a cached pre-warm payload, if any.
func (h *VaultHandle) GetPreWarmed(sourceID string) (scheduler.PreWarmed, bool) {
	return h.engine.PreWarm.GetPreWarmed(sourceID)
}

// ClearPreWarmed evicts a cached pre-warm payload.
func (h *VaultHandle) ClearPreWarmed(sourceID string) {
	h.engine.PreWarm.ClearPreWarmed(sourceID)
}

// IsBroken reports whether the handle has refused further writes after an
// internal invariant violation.
func (h *VaultHandle) IsBroken() bool {
	return h.broken
}
