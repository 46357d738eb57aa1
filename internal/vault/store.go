// Package vault holds the in-memory Vault state and its load/save/CRUD
// operations, mirroring the atomic JSON-file store pattern used
// throughout this codebase's persistence layer, generalized to the vault's
// own encrypted-envelope file format.
package vault

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/personafy/personafy-core/internal/crypto"
	"github.com/personafy/personafy-core/internal/vaulttypes"
)

const vaultFileName = "vault-data.json"

var logger = log.New(log.Writer(), "[VAULT] ", log.LstdFlags)

// Store owns a single in-memory Vault and mediates every read/write to it.
// Exactly one Store exists per open vault session; the host never keeps
// its own reference into the Vault's nested collections.
type Store struct {
	mu    sync.RWMutex
	vault *vaulttypes.Vault
}

// CreateEmpty builds a Store around a fresh Vault with empty collections.
// Defaults to guarded posture when posture is empty.
func CreateEmpty(posture vaulttypes.Posture) *Store {
	if posture == "" {
		posture = vaulttypes.PostureGuarded
	}
	return &Store{vault: vaulttypes.NewEmptyVault(posture)}
}

// Load reads vault-data.json from dir. A missing file yields an empty
// guarded vault, not an error; other read errors, envelope failures,
// malformed JSON and an unsupported schema version are returned as errors.
func Load(dir string, passphrase string) (*Store, error) {
	path := filepath.Join(dir, vaultFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("no vault file at %s, starting empty", path)
			return CreateEmpty(vaulttypes.PostureGuarded), nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", vaulttypes.ErrIOFailure, path, err)
	}

	plaintext := raw
	if passphrase != "" {
		plaintext, err = crypto.Open(string(raw), passphrase)
		if err != nil {
			return nil, err
		}
	}

	var v vaulttypes.Vault
	if err := json.Unmarshal(plaintext, &v); err != nil {
		return nil, fmt.Errorf("%w: parsing vault json: %v", vaulttypes.ErrCorruptFile, err)
	}
	if v.Version > vaulttypes.CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: vault version %d", vaulttypes.ErrUnsupportedVersion, v.Version)
	}
	if v.Personas == nil {
		v.Personas = make(map[string]*vaulttypes.Persona)
	}
	return &Store{vault: &v}, nil
}

// Save writes the vault atomically (temp file + rename) to dir, creating
// dir if it does not exist. When passphrase is non-empty the payload is
// sealed with the crypto envelope; otherwise it is pretty-printed JSON.
func (s *Store) Save(dir string, passphrase string) error {
	s.mu.RLock()
	payload, err := json.MarshalIndent(s.vault, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("%w: marshaling vault: %v", vaulttypes.ErrIOFailure, err)
	}

	out := payload
	if passphrase != "" {
		envelope, err := crypto.Seal(payload, passphrase)
		if err != nil {
			return err
		}
		out = []byte(envelope)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", vaulttypes.ErrIOFailure, dir, err)
	}

	finalPath := filepath.Join(dir, vaultFileName)
	tmp, err := os.CreateTemp(dir, vaultFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", vaulttypes.ErrIOFailure, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing temp file: %v", vaulttypes.ErrIOFailure, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing temp file: %v", vaulttypes.ErrIOFailure, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming into place: %v", vaulttypes.ErrIOFailure, err)
	}
	logger.Printf("saved vault to %s", finalPath)
	return nil
}

// Vault returns the live Vault pointer for read-mostly callers (rule
// evaluation, audit queries) that accept the single-threaded contract.
func (s *Store) Vault() *vaulttypes.Vault {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vault
}

// SetPosture updates the vault's global disclosure posture.
func (s *Store) SetPosture(posture vaulttypes.Posture) error {
	if !posture.Valid() {
		return fmt.Errorf("%w: invalid posture %q", vaulttypes.ErrInvalidRequest, posture)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vault.Posture = posture
	return nil
}

// SetPersona upserts a persona. On update, createdAtMs is preserved and
// incoming fields are merged over existing ones (incoming keys win).
func (s *Store) SetPersona(id, label string, fields map[string]string, nowMs int64) (*vaulttypes.Persona, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: persona id required", vaulttypes.ErrInvalidRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.vault.Personas[id]
	if ok {
		if existing.Fields == nil {
			existing.Fields = make(map[string]string)
		}
		for k, v := range fields {
			existing.Fields[k] = v
		}
		if label != "" {
			existing.Label = label
		}
		existing.UpdatedAtMs = nowMs
		return existing, nil
	}

	merged := make(map[string]string, len(fields))
	for k, v := range fields {
		merged[k] = v
	}
	p := &vaulttypes.Persona{
		ID:          id,
		Label:       label,
		Fields:      merged,
		CreatedAtMs: nowMs,
		UpdatedAtMs: nowMs,
	}
	s.vault.Personas[id] = p
	return p, nil
}

// AddFact appends a new out-of-schema fact.
func (s *Store) AddFact(persona, field, value string, nowMs int64) (*vaulttypes.Fact, error) {
	if persona == "" || field == "" {
		return nil, fmt.Errorf("%w: persona and field required", vaulttypes.ErrInvalidRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f := &vaulttypes.Fact{
		ID:          uuid.NewString(),
		Persona:     persona,
		Field:       field,
		Value:       value,
		CreatedAtMs: nowMs,
		UpdatedAtMs: nowMs,
	}
	s.vault.Facts = append(s.vault.Facts, f)
	return f, nil
}

// DeleteFact removes a fact by id. Returns false if no fact had that id.
func (s *Store) DeleteFact(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.vault.Facts {
		if f.ID == id {
			s.vault.Facts = append(s.vault.Facts[:i], s.vault.Facts[i+1:]...)
			return true
		}
	}
	return false
}

// GetFactsByPersona returns facts for a persona in insertion order.
func (s *Store) GetFactsByPersona(persona string) []*vaulttypes.Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*vaulttypes.Fact
	for _, f := range s.vault.Facts {
		if f.Persona == persona {
			out = append(out, f)
		}
	}
	return out
}

// GetFieldValue resolves a field's value: Persona.Fields first, then the
// first matching Fact by insertion order, otherwise absent (ok=false).
func (s *Store) GetFieldValue(persona, field string) (value string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, exists := s.vault.Personas[persona]; exists {
		if v, has := p.Fields[field]; has {
			return v, true
		}
	}
	for _, f := range s.vault.Facts {
		if f.Persona == persona && f.Field == field {
			return f.Value, true
		}
	}
	return "", false
}

// AddRule inserts a new standard rule, rejecting a clashing id.
func (s *Store) AddRule(rule *vaulttypes.Rule, nowMs int64) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.Kind = "standard"
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.vault.Rules {
		if r.ID == rule.ID {
			return fmt.Errorf("%w: rule %s", vaulttypes.ErrDuplicateID, rule.ID)
		}
	}
	rule.CreatedAtMs = nowMs
	s.vault.Rules = append(s.vault.Rules, rule)
	return nil
}

// RemoveRule deletes a standard rule by id. Returns false if not found.
func (s *Store) RemoveRule(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.vault.Rules {
		if r.ID == id {
			s.vault.Rules = append(s.vault.Rules[:i], s.vault.Rules[i+1:]...)
			return true
		}
	}
	return false
}

// AddScheduledRule inserts a new scheduled rule, rejecting a clashing id.
func (s *Store) AddScheduledRule(rule *vaulttypes.ScheduledRule, nowMs int64) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.vault.ScheduledRules {
		if r.ID == rule.ID {
			return fmt.Errorf("%w: scheduled rule %s", vaulttypes.ErrDuplicateID, rule.ID)
		}
	}
	rule.CreatedAtMs = nowMs
	s.vault.ScheduledRules = append(s.vault.ScheduledRules, rule)
	return nil
}

// RevokeScheduledRule deletes a scheduled rule by id. Returns false if not found.
func (s *Store) RevokeScheduledRule(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.vault.ScheduledRules {
		if r.ID == id {
			s.vault.ScheduledRules = append(s.vault.ScheduledRules[:i], s.vault.ScheduledRules[i+1:]...)
			return true
		}
	}
	return false
}

// AppendAudit appends one audit entry. auditLog must remain non-decreasing
// by timestamp within a single-threaded section; callers set
// entry.Timestamp themselves, since this method leaves it untouched.
func (s *Store) AppendAudit(entry *vaulttypes.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	s.vault.AuditLog = append(s.vault.AuditLog, entry)
}

// EnqueueApproval appends a new pending Approval directly to the vault's
// queue. internal/queue does not call it: the queue keeps its own entries
// and the engine copies them back through SetApprovalQueueEntries.
func (s *Store) EnqueueApproval(a *vaulttypes.Approval) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.vault.ApprovalQueue = append(s.vault.ApprovalQueue, a)
}

// CheckInvariants verifies the §3 post-conditions that are cheap to check
// eagerly. A violation is reported, never silently repaired.
func (s *Store) CheckInvariants() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool, len(s.vault.Rules))
	for _, r := range s.vault.Rules {
		if seen[r.ID] {
			return vaulttypes.NewInvariantError("duplicate rule id " + r.ID)
		}
		seen[r.ID] = true
	}

	seenSched := make(map[string]bool, len(s.vault.ScheduledRules))
	for _, r := range s.vault.ScheduledRules {
		if seenSched[r.ID] {
			return vaulttypes.NewInvariantError("duplicate scheduled rule id " + r.ID)
		}
		seenSched[r.ID] = true
	}

	seenApproval := make(map[string]bool, len(s.vault.ApprovalQueue))
	for _, a := range s.vault.ApprovalQueue {
		if seenApproval[a.ID] {
			return vaulttypes.NewInvariantError("duplicate approval id " + a.ID)
		}
		seenApproval[a.ID] = true
	}

	var lastTs int64
	for _, e := range s.vault.AuditLog {
		if e.Timestamp < lastTs {
			return vaulttypes.NewInvariantError("audit log timestamps decreased")
		}
		lastTs = e.Timestamp
	}
	return nil
}

// Now returns the current wall-clock time in epoch milliseconds. The engine
// and scheduler never call time.Now directly outside of this one seam and
// their host-driven "now" parameters, per the timekeeping design note.
func Now() int64 {
	return time.Now().UnixMilli()
}
