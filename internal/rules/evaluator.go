// Package rules implements the pure field-classification pipeline: given a
// context request and a vault snapshot, classify each requested field as
// covered, pending-candidate, or blocked. The evaluator mutates nothing,
// mirroring the multi-step "top-level Analyze delegates to small named
// helpers" shape this codebase's decision engine uses elsewhere.
package rules

import (
	"strings"
	"time"

	"github.com/personafy/personafy-core/internal/vaulttypes"
)

// Evaluation is the per-field classification result of one Evaluate call.
type Evaluation struct {
	Covered          []string
	PendingCandidate []string
	Blocked          []string

	// CoveringRuleID records, for audit purposes, the scheduled or standard
	// rule that covers each field (among standard rules an agent-specific
	// match wins over an agent-absent one, otherwise the first wins). Fields
	// promoted by open posture have no entry.
	CoveringRuleID map[string]string
}

// Evaluate classifies every field in req against v at nowMs. It is pure: it
// reads v but never writes to it.
func Evaluate(v *vaulttypes.Vault, req vaulttypes.ContextRequest, nowMs int64) Evaluation {
	eval := Evaluation{CoveringRuleID: make(map[string]string)}

	if v.Posture == vaulttypes.PostureLocked {
		eval.Blocked = append(eval.Blocked, req.Fields...)
		return eval
	}

	remaining := make(map[string]bool, len(req.Fields))
	for _, f := range req.Fields {
		remaining[f] = true
	}

	// Step 2: scheduled rules (heartbeat/cron with a sourceId).
	if (req.RequestType == vaulttypes.RequestHeartbeat || req.RequestType == vaulttypes.RequestCron) && req.SourceID != "" {
		for _, sr := range v.ScheduledRules {
			if !scheduledRuleMatches(sr, req) {
				continue
			}
			if !scheduledRuleActive(sr, nowMs) {
				continue
			}
			for _, f := range sr.Fields {
				if remaining[f] {
					eval.Covered = append(eval.Covered, f)
					eval.CoveringRuleID[f] = sr.ID
					delete(remaining, f)
				}
			}
		}
	}

	// Step 3: standard rules. Agent-specific matches must win over
	// agent-absent matches for the same field, regardless of insertion order,
	// so for every still-remaining field we scan the rules once, returning the
	// first agent-specific match and otherwise falling back to the first
	// agent-absent one.
	for f := range remaining {
		if ruleID, ok := firstStandardRuleCovering(v.Rules, req, f); ok {
			eval.Covered = append(eval.Covered, f)
			eval.CoveringRuleID[f] = ruleID
			delete(remaining, f)
		}
	}

	// Step 4: posture open grants a remaining field only when some rule
	// matches (agentId, persona) AND lists that field, ignoring purpose
	// pattern only — so "open" cannot forge coverage for a field no rule
	// mentions, even when some other field for the same persona/agent is
	// covered.
	if v.Posture == vaulttypes.PostureOpen {
		for f := range remaining {
			if anyRuleMatchesPersonaAgentField(v, req, f) {
				eval.Covered = append(eval.Covered, f)
				delete(remaining, f)
			}
		}
	}

	// Step 5: everything else is a pending-candidate.
	for f := range remaining {
		eval.PendingCandidate = append(eval.PendingCandidate, f)
	}

	return eval
}

// anyRuleMatchesPersonaAgentField reports whether some standard rule
// matches (agentId, persona) and lists field, ignoring only its purpose
// pattern — the per-field test open posture's auto-promotion requires.
func anyRuleMatchesPersonaAgentField(v *vaulttypes.Vault, req vaulttypes.ContextRequest, field string) bool {
	for _, r := range v.Rules {
		if r.Persona != req.Persona {
			continue
		}
		if r.AgentID != "" && r.AgentID != req.AgentID {
			continue
		}
		for _, f := range r.Fields {
			if f == field {
				return true
			}
		}
	}
	return false
}

// firstStandardRuleCovering returns the id of the rule that should be
// recorded as covering field, preferring an agent-specific rule over an
// agent-absent one for the same field.
func firstStandardRuleCovering(rules []*vaulttypes.Rule, req vaulttypes.ContextRequest, field string) (string, bool) {
	var agentAbsentID string
	haveAgentAbsent := false

	for _, r := range rules {
		if !standardRuleMatches(r, req, field) {
			continue
		}
		if r.AgentID != "" {
			// Agent-specific match always wins immediately.
			return r.ID, true
		}
		if !haveAgentAbsent {
			agentAbsentID = r.ID
			haveAgentAbsent = true
		}
	}
	if haveAgentAbsent {
		return agentAbsentID, true
	}
	return "", false
}

func standardRuleMatches(r *vaulttypes.Rule, req vaulttypes.ContextRequest, field string) bool {
	if r.Persona != req.Persona {
		return false
	}
	if r.AgentID != "" && r.AgentID != req.AgentID {
		return false
	}
	if !purposeMatches(req.Purpose, r.PurposePattern) {
		return false
	}
	for _, f := range r.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// purposeMatches implements the case-insensitive substring comparison this
// repository keeps in exactly one place so a future grammar can replace it.
func purposeMatches(purpose, pattern string) bool {
	if pattern == "" {
		return true
	}
	return strings.Contains(strings.ToLower(purpose), strings.ToLower(pattern))
}

func scheduledRuleMatches(sr *vaulttypes.ScheduledRule, req vaulttypes.ContextRequest) bool {
	wantKind := vaulttypes.ScheduledHeartbeat
	if req.RequestType == vaulttypes.RequestCron {
		wantKind = vaulttypes.ScheduledCron
	}
	return sr.Kind == wantKind &&
		sr.SourceID == req.SourceID &&
		sr.AgentID == req.AgentID &&
		sr.Persona == req.Persona
}

func scheduledRuleActive(sr *vaulttypes.ScheduledRule, nowMs int64) bool {
	if nowMs >= sr.ExpiresAtMs {
		return false
	}
	if sr.Kind == vaulttypes.ScheduledCron && sr.TimeWindow != nil {
		return TimeWindowActive(*sr.TimeWindow, nowMs)
	}
	return true
}

// TimeWindowActive reports whether nowMs's local time-of-day falls within
// window, inclusive on both bounds. When From > To the window wraps past
// midnight: [From, 23:59] ∪ [00:00, To].
func TimeWindowActive(window vaulttypes.TimeWindow, nowMs int64) bool {
	from, okFrom := parseHHMM(window.From)
	to, okTo := parseHHMM(window.To)
	if !okFrom || !okTo {
		return false
	}
	cur := localMinutesOfDay(nowMs)

	if from <= to {
		return cur >= from && cur <= to
	}
	return cur >= from || cur <= to
}

func parseHHMM(s string) (minutes int, ok bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

func localMinutesOfDay(nowMs int64) int {
	t := time.UnixMilli(nowMs)
	return t.Hour()*60 + t.Minute()
}
