// Package maintenance runs the periodic sweep: expire approvals, expire
// scheduled rules, prune audit beyond retention, prune resolved approvals
// beyond a keep-count. It is safe to call repeatedly and idempotent,
// grounded on this codebase's ticker-driven cleanup idiom but invoked by
// the host, not an internal goroutine — the engine never schedules itself.
package maintenance

import (
	"log"

	"github.com/personafy/personafy-core/internal/audit"
	"github.com/personafy/personafy-core/internal/engine"
	"github.com/personafy/personafy-core/internal/scheduler"
)

var logger = log.New(log.Writer(), "[MAINT] ", log.LstdFlags)

// Options configures one sweep.
type Options struct {
	RetentionMs   int64
	KeepApprovals int
}

// Summary reports what one sweep did.
type Summary struct {
	ApprovalsExpired      int
	ScheduledRulesExpired int
	AuditEntriesPruned    int
	ApprovalsPruned       int
}

// Sweep runs one full maintenance pass against e at nowMs.
func Sweep(e *engine.Engine, nowMs int64, opts Options) Summary {
	var s Summary

	s.ApprovalsExpired = e.Queue.ExpireStale(nowMs)
	e.Store.SetApprovalQueueEntries(e.Queue.Entries())

	s.ScheduledRulesExpired = scheduler.ExpireRules(e.Store.Vault(), e.PreWarm, nowMs)

	if opts.RetentionMs > 0 {
		s.AuditEntriesPruned = audit.PruneOlderThan(e.Store.Vault(), nowMs, opts.RetentionMs)
	}
	if opts.KeepApprovals > 0 {
		s.ApprovalsPruned = e.Queue.PruneResolved(opts.KeepApprovals)
		e.Store.SetApprovalQueueEntries(e.Queue.Entries())
	}

	logger.Printf("sweep: %d approvals expired, %d scheduled rules expired, %d audit pruned, %d approvals pruned",
		s.ApprovalsExpired, s.ScheduledRulesExpired, s.AuditEntriesPruned, s.ApprovalsPruned)
	return s
}
