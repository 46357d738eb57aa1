// Package nats exposes the context-request pipeline over NATS subjects,
// adapted from this codebase's subject-pattern-constants convention, for
// hosts that run agents out-of-process instead of embedding the vault
// directly.
package nats

import "fmt"

const (
	// SubjectContextRequest is the pattern an agent publishes a
	// ContextRequest to. Use fmt.Sprintf(SubjectContextRequest, agentID).
	SubjectContextRequest = "ctx.%s.request"

	// SubjectContextResponse is the pattern the bridge replies on.
	SubjectContextResponse = "ctx.%s.response"

	// SubjectScheduledHeartbeat is the per-agent heartbeat subject pattern.
	// Bridge does not subscribe to it; heartbeat-type context requests
	// arrive on SubjectContextRequest like any other request.
	SubjectScheduledHeartbeat = "sched.%s.heartbeat"

	// SubjectApprovalPending is broadcast whenever the engine enqueues a
	// new Approval, so an operator console can subscribe instead of
	// polling getPendingApprovals.
	SubjectApprovalPending = "approval.pending"
)

// ContextRequestSubject returns the subject a specific agent's requests
// arrive on.
func ContextRequestSubject(agentID string) string {
	return fmt.Sprintf(SubjectContextRequest, agentID)
}

// ContextResponseSubject returns the subject a specific agent's responses
// are published to.
func ContextResponseSubject(agentID string) string {
	return fmt.Sprintf(SubjectContextResponse, agentID)
}
