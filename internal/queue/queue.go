// Package queue holds the approval queue: an ordered, indexed collection of
// Approval records with enqueue/resolve/expire/prune operations, adapted
// from this codebase's indexed task-queue pattern but kept strictly FIFO —
// approvals have no priority, only arrival order and status.
package queue

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/personafy/personafy-core/internal/vaulttypes"
)

var logger = log.New(log.Writer(), "[QUEUE] ", log.LstdFlags)

// Queue is a thread-safe, insertion-ordered collection of Approvals.
type Queue struct {
	mu      sync.RWMutex
	entries []*vaulttypes.Approval
	index   map[string]*vaulttypes.Approval
}

// NewQueue returns an empty approval queue.
func NewQueue() *Queue {
	return &Queue{index: make(map[string]*vaulttypes.Approval)}
}

// FromEntries rebuilds a Queue's index over entries already owned by a
// loaded Vault, so the queue stays a thin index rather than a second copy
// of the data.
func FromEntries(entries []*vaulttypes.Approval) *Queue {
	q := NewQueue()
	q.entries = entries
	for _, e := range entries {
		q.index[e.ID] = e
	}
	return q
}

// Entries returns a copy of the entry slice in insertion order. The
// Approval pointers in it are shared with the queue, not copied.
func (q *Queue) Entries() []*vaulttypes.Approval {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]*vaulttypes.Approval, len(q.entries))
	copy(out, q.entries)
	return out
}

// Enqueue creates a pending Approval for request with the given ttl and
// returns its id.
func (q *Queue) Enqueue(request vaulttypes.ContextRequest, nowMs, ttlMs int64) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	a := &vaulttypes.Approval{
		ID:          uuid.NewString(),
		Request:     request,
		Status:      vaulttypes.ApprovalPending,
		CreatedAtMs: nowMs,
		ExpiresAtMs: nowMs + ttlMs,
	}
	q.entries = append(q.entries, a)
	q.index[a.ID] = a
	return a.ID
}

// Resolve transitions a pending Approval to approved/denied. It fails
// (returns false, mutates nothing) if the id is unknown or the approval is
// not currently pending — resolving twice is a no-op the second time.
func (q *Queue) Resolve(id string, decision vaulttypes.ApprovalStatus, resolvedBy string, nowMs int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	a, ok := q.index[id]
	if !ok || a.Status != vaulttypes.ApprovalPending {
		return false
	}
	if decision != vaulttypes.ApprovalApproved && decision != vaulttypes.ApprovalDenied {
		return false
	}
	a.Status = decision
	a.ResolvedAtMs = nowMs
	a.ResolvedBy = resolvedBy
	logger.Printf("approval %s resolved: %s", id, decision)
	return true
}

// AttachStandingRule records the rule id a resolved, approved Approval's
// follow-up addRule call produced. The queue itself never creates rules.
func (q *Queue) AttachStandingRule(id, ruleID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	a, ok := q.index[id]
	if !ok {
		return false
	}
	a.StandingRuleID = ruleID
	return true
}

// GetByID returns an Approval by id, or nil.
func (q *Queue) GetByID(id string) *vaulttypes.Approval {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.index[id]
}

// Pending returns every Approval currently in pending status, in
// insertion order.
func (q *Queue) Pending() []*vaulttypes.Approval {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var out []*vaulttypes.Approval
	for _, a := range q.entries {
		if a.Status == vaulttypes.ApprovalPending {
			out = append(out, a)
		}
	}
	return out
}

// ExpireStale transitions every pending entry whose ExpiresAtMs <= now to
// expired, returning the count transitioned.
func (q *Queue) ExpireStale(nowMs int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	count := 0
	for _, a := range q.entries {
		if a.Status == vaulttypes.ApprovalPending && a.ExpiresAtMs <= nowMs {
			a.Status = vaulttypes.ApprovalExpired
			a.ResolvedAtMs = nowMs
			count++
		}
	}
	if count > 0 {
		logger.Printf("expired %d stale approvals", count)
	}
	return count
}

// PruneResolved removes the oldest resolved (approved/denied/expired)
// entries in excess of limit, preserving insertion order of what remains.
func (q *Queue) PruneResolved(limit int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	var resolvedIdx []int
	for i, a := range q.entries {
		if a.Status != vaulttypes.ApprovalPending {
			resolvedIdx = append(resolvedIdx, i)
		}
	}
	if len(resolvedIdx) <= limit {
		return 0
	}
	excess := len(resolvedIdx) - limit
	toRemove := make(map[int]bool, excess)
	for _, i := range resolvedIdx[:excess] {
		toRemove[i] = true
	}

	kept := q.entries[:0:0]
	for i, a := range q.entries {
		if toRemove[i] {
			delete(q.index, a.ID)
			continue
		}
		kept = append(kept, a)
	}
	q.entries = kept
	return excess
}

// Len returns the total number of entries regardless of status.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}
