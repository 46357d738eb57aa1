package vault

import "github.com/personafy/personafy-core/internal/vaulttypes"

// ApprovalQueueEntries returns the vault's current approval collection, for
// handing off to internal/queue.FromEntries when building a session's Queue.
func (s *Store) ApprovalQueueEntries() []*vaulttypes.Approval {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vault.ApprovalQueue
}

// SetApprovalQueueEntries replaces the vault's approval collection with the
// queue package's current canonical slice, keeping the serialized Vault in
// sync with whatever internal/queue.Queue has mutated in memory.
func (s *Store) SetApprovalQueueEntries(entries []*vaulttypes.Approval) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vault.ApprovalQueue = entries
}
