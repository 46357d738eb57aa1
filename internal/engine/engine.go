// Package engine implements the top-level context-request state machine:
// normalize -> classify -> materialize -> enqueue -> audit, tying together
// the vault store, rule evaluator, approval queue, and audit log. It is the
// single entry point hosts call per inbound agent request, adapted from
// this codebase's multi-step decision-pipeline idiom (small named helper
// methods chained through one top-level Analyze/Evaluate method).
package engine

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/personafy/personafy-core/internal/audit"
	"github.com/personafy/personafy-core/internal/queue"
	"github.com/personafy/personafy-core/internal/rules"
	"github.com/personafy/personafy-core/internal/scheduler"
	"github.com/personafy/personafy-core/internal/vault"
	"github.com/personafy/personafy-core/internal/vaulttypes"
)

var logger = log.New(log.Writer(), "[ENGINE] ", log.LstdFlags)

// DefaultApprovalTTLMs is the default pending-approval lifetime: 7 days.
const DefaultApprovalTTLMs = 7 * 24 * 60 * 60 * 1000

// Notifier is the seam the engine calls when it enqueues a new Approval.
// internal/notify.Manager satisfies it; nil disables notification.
type Notifier interface {
	NotifyApprovalPending(a *vaulttypes.Approval) error
}

// Result is the outcome of one requestContext call.
type Result struct {
	Decision       vaulttypes.Decision
	ApprovedFields map[string]string
	PendingFields  []string
	DeniedFields   []string
	ApprovalID     string
}

// Engine wires a vault store to its approval queue and pre-warm cache for
// one open session.
type Engine struct {
	Store         *vault.Store
	Queue         *queue.Queue
	PreWarm       *scheduler.Cache
	Notifier      Notifier
	ApprovalTTLMs int64
}

// New builds an Engine around store, rebuilding the queue index from the
// store's current approval collection.
func New(store *vault.Store, notifier Notifier) *Engine {
	return &Engine{
		Store:         store,
		Queue:         queue.FromEntries(store.ApprovalQueueEntries()),
		PreWarm:       scheduler.NewCache(),
		Notifier:      notifier,
		ApprovalTTLMs: DefaultApprovalTTLMs,
	}
}

// RequestContext runs the full decision pipeline for req at nowMs.
func (e *Engine) RequestContext(req vaulttypes.ContextRequest, nowMs int64) (Result, error) {
	if err := e.normalize(req); err != nil {
		return Result{}, err
	}

	v := e.Store.Vault()
	eval := rules.Evaluate(v, req, nowMs)

	result := Result{
		ApprovedFields: make(map[string]string, len(eval.Covered)),
	}

	for _, f := range eval.Covered {
		if val, ok := e.Store.GetFieldValue(req.Persona, f); ok {
			result.ApprovedFields[f] = val
		} else {
			result.ApprovedFields[f] = ""
		}
	}
	result.DeniedFields = eval.Blocked

	pendingCandidates := eval.PendingCandidate
	if len(pendingCandidates) > 0 {
		id := e.Queue.Enqueue(req, nowMs, e.ApprovalTTLMs)
		e.Store.SetApprovalQueueEntries(e.Queue.Entries())
		result.ApprovalID = id
		result.PendingFields = pendingCandidates

		if e.Notifier != nil {
			if a := e.Queue.GetByID(id); a != nil {
				if err := e.Notifier.NotifyApprovalPending(a); err != nil {
					logger.Printf("notification failed for approval %s: %v", id, err)
				}
			}
		}
	}

	result.Decision = e.decide(result, len(req.Fields))

	audit.Append(v, &vaulttypes.AuditEntry{
		AgentID:       req.AgentID,
		RequestType:   req.RequestType,
		Persona:       req.Persona,
		Fields:        req.Fields,
		Purpose:       req.Purpose,
		Decision:      result.Decision,
		CorrelationID: req.CorrelationID,
		SourceID:      req.SourceID,
	}, nowMs)

	return result, nil
}

func (e *Engine) normalize(req vaulttypes.ContextRequest) error {
	if req.AgentID == "" || req.Persona == "" {
		return fmt.Errorf("%w: agentId and persona are required", vaulttypes.ErrInvalidRequest)
	}
	if !req.RequestType.Valid() {
		return fmt.Errorf("%w: unknown requestType %q", vaulttypes.ErrInvalidRequest, req.RequestType)
	}
	seen := make(map[string]bool, len(req.Fields))
	for _, f := range req.Fields {
		if seen[f] {
			return fmt.Errorf("%w: duplicate field %q", vaulttypes.ErrInvalidRequest, f)
		}
		seen[f] = true
	}
	return nil
}

// decide applies the §4.4 decision vocabulary. Preserved intentionally: an
// empty fields array yields approved with nothing approved, denied, or
// pending — flagged suspicious in tests, per the design note.
func (e *Engine) decide(r Result, requestedFieldCount int) vaulttypes.Decision {
	if requestedFieldCount == 0 {
		return vaulttypes.DecisionApproved
	}
	if len(r.DeniedFields) == requestedFieldCount {
		return vaulttypes.DecisionDenied
	}
	if len(r.PendingFields) > 0 {
		if len(r.ApprovedFields) == 0 {
			return vaulttypes.DecisionPending
		}
		return vaulttypes.DecisionApproved
	}
	if len(r.ApprovedFields) > 0 {
		return vaulttypes.DecisionApproved
	}
	return vaulttypes.DecisionDenied
}

// ResolveApproval resolves a pending Approval. Standing-rule creation stays
// the host's responsibility: call AttachStandingRule after it issues the
// follow-up addRule.
func (e *Engine) ResolveApproval(id string, decision vaulttypes.ApprovalStatus, resolvedBy string, nowMs int64) bool {
	ok := e.Queue.Resolve(id, decision, resolvedBy, nowMs)
	e.Store.SetApprovalQueueEntries(e.Queue.Entries())
	return ok
}

// AttachStandingRule records ruleID against a resolved Approval.
func (e *Engine) AttachStandingRule(approvalID, ruleID string) bool {
	ok := e.Queue.AttachStandingRule(approvalID, ruleID)
	e.Store.SetApprovalQueueEntries(e.Queue.Entries())
	return ok
}

// NewApprovalID is exposed for hosts correlating an out-of-band rule-grant
// flow back to a freshly enqueued approval.
func NewApprovalID() string {
	return uuid.NewString()
}
