// Package audit appends and queries the vault's audit log, and optionally
// mirrors it to a SQLite file for durable cross-restart querying — adapted
// from this codebase's event bus persistence pattern (internal/events),
// generalized from "events with subscribers" to "append-only decisions with
// filtered queries" since the audit log has no subscriber fan-out.
package audit

import (
	"log"
	"sort"

	"github.com/google/uuid"

	"github.com/personafy/personafy-core/internal/vaulttypes"
)

var logger = log.New(log.Writer(), "[AUDIT] ", log.LstdFlags)

// Filter narrows a getAuditLog query.
type Filter struct {
	AgentID       string
	Since         int64
	CorrelationID string
	Limit         int
}

// Append records a single audit entry, assigning an id if absent. The
// audit log is append-only: callers never remove or reorder entries.
func Append(v *vaulttypes.Vault, entry *vaulttypes.AuditEntry, nowMs int64) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Timestamp = nowMs
	v.AuditLog = append(v.AuditLog, entry)
	logger.Printf("%s agent=%s persona=%s decision=%s", entry.ID, entry.AgentID, entry.Persona, entry.Decision)
}

// Query returns entries matching filter in ascending timestamp order. When
// Limit is set and exceeded, only the Limit most recent matches are kept.
func Query(v *vaulttypes.Vault, filter Filter) []*vaulttypes.AuditEntry {
	var out []*vaulttypes.AuditEntry
	for _, e := range v.AuditLog {
		if filter.AgentID != "" && e.AgentID != filter.AgentID {
			continue
		}
		if filter.CorrelationID != "" && e.CorrelationID != filter.CorrelationID {
			continue
		}
		if e.Timestamp < filter.Since {
			continue
		}
		out = append(out, e)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
		out = out[:filter.Limit]
		sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	}
	return out
}

// Correlate returns every entry sharing correlationID, in log order.
func Correlate(v *vaulttypes.Vault, correlationID string) []*vaulttypes.AuditEntry {
	return Query(v, Filter{CorrelationID: correlationID})
}

// PruneOlderThan removes entries whose timestamp is older than the
// retention window (nowMs - retentionMs). Returns the count removed.
func PruneOlderThan(v *vaulttypes.Vault, nowMs, retentionMs int64) int {
	cutoff := nowMs - retentionMs
	kept := v.AuditLog[:0:0]
	removed := 0
	for _, e := range v.AuditLog {
		if e.Timestamp < cutoff {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	v.AuditLog = kept
	if removed > 0 {
		logger.Printf("pruned %d audit entries older than %dms", removed, retentionMs)
	}
	return removed
}
