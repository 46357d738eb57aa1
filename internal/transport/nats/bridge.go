package nats

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/personafy/personafy-core/internal/engine"
	"github.com/personafy/personafy-core/internal/host"
	"github.com/personafy/personafy-core/internal/vaulttypes"
)

var logger = log.New(log.Writer(), "[NATS] ", log.LstdFlags)

// Bridge subscribes to every agent's request subject and drives a
// VaultHandle's RequestContext on its behalf, publishing the result back on
// that agent's response subject — for hosts that run agents out-of-process.
type Bridge struct {
	conn *nats.Conn
	sub  *nats.Subscription
}

// contextRequestEnvelope is the wire shape an agent publishes, carrying
// enough to build a vaulttypes.ContextRequest plus a wall-clock timestamp
// since the engine never reads the clock itself.
type contextRequestEnvelope struct {
	vaulttypes.ContextRequest
	NowMs int64 `json:"nowMs"`
}

type contextResponseEnvelope struct {
	Decision       vaulttypes.Decision `json:"decision"`
	ApprovedFields map[string]string   `json:"approvedFields"`
	PendingFields  []string            `json:"pendingFields"`
	DeniedFields   []string            `json:"deniedFields"`
	ApprovalID     string              `json:"approvalId,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// Connect dials url and returns a Bridge ready to Start against a handle.
func Connect(url string) (*Bridge, error) {
	conn, err := nats.Connect(url, nats.Timeout(5*time.Second))
	if err != nil {
		return nil, err
	}
	return &Bridge{conn: conn}, nil
}

// Start subscribes to ctx.*.request and serves requests against h until
// Stop is called.
func (b *Bridge) Start(h *host.VaultHandle) error {
	sub, err := b.conn.Subscribe("ctx.*.request", func(msg *nats.Msg) {
		var env contextRequestEnvelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			logger.Printf("bad request payload: %v", err)
			return
		}
		nowMs := env.NowMs
		if nowMs == 0 {
			nowMs = time.Now().UnixMilli()
		}

		result, err := h.RequestContext(env.ContextRequest, nowMs)
		resp := contextResponseEnvelope{
			Decision:       result.Decision,
			ApprovedFields: result.ApprovedFields,
			PendingFields:  result.PendingFields,
			DeniedFields:   result.DeniedFields,
			ApprovalID:     result.ApprovalID,
		}
		if err != nil {
			resp.Error = err.Error()
		}

		payload, merr := json.Marshal(resp)
		if merr != nil {
			logger.Printf("marshaling response: %v", merr)
			return
		}
		subject := ContextResponseSubject(env.ContextRequest.AgentID)
		if msg.Reply != "" {
			subject = msg.Reply
		}
		if err := b.conn.Publish(subject, payload); err != nil {
			logger.Printf("publishing response: %v", err)
		}
	})
	if err != nil {
		return err
	}
	b.sub = sub
	logger.Printf("subscribed to ctx.*.request")
	return nil
}

// NotifyApprovalPending implements engine.Notifier by broadcasting on
// SubjectApprovalPending, so an operator console can subscribe instead of
// polling getPendingApprovals.
func (b *Bridge) NotifyApprovalPending(a *vaulttypes.Approval) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return b.conn.Publish(SubjectApprovalPending, payload)
}

var _ engine.Notifier = (*Bridge)(nil)

// Stop unsubscribes and closes the connection.
func (b *Bridge) Stop() {
	if b.sub != nil {
		b.sub.Unsubscribe()
	}
	b.conn.Close()
}
