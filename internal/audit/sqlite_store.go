package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/personafy/personafy-core/internal/vaulttypes"
)

// SQLiteMirror persists audit entries to a SQLite database for durable
// querying across process restarts. The in-memory vault.AuditLog slice
// remains authoritative (§3); this is an optional, additive mirror, not a
// replacement store.
type SQLiteMirror struct {
	db *sql.DB
}

// OpenSQLiteMirror opens (creating if needed) a SQLite database at path and
// ensures its schema exists.
func OpenSQLiteMirror(path string) (*SQLiteMirror, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening audit sqlite mirror: %v", vaulttypes.ErrIOFailure, err)
	}
	m := &SQLiteMirror{db: db}
	if err := m.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func (m *SQLiteMirror) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		request_type TEXT NOT NULL,
		persona TEXT NOT NULL,
		fields TEXT NOT NULL,
		purpose TEXT NOT NULL,
		decision TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		correlation_id TEXT,
		source_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_agent ON audit_entries(agent_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_correlation ON audit_entries(correlation_id);
	`
	if _, err := m.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: creating audit schema: %v", vaulttypes.ErrIOFailure, err)
	}
	return nil
}

// Mirror writes entry to the database. Safe to call for every Append; the
// insert uses OR IGNORE on the primary key, so mirroring the same entry
// again is a silent no-op and returns nil.
func (m *SQLiteMirror) Mirror(entry *vaulttypes.AuditEntry) error {
	fieldsJSON, err := json.Marshal(entry.Fields)
	if err != nil {
		return fmt.Errorf("%w: marshaling fields: %v", vaulttypes.ErrIOFailure, err)
	}
	_, err = m.db.Exec(`
		INSERT OR IGNORE INTO audit_entries
			(id, agent_id, request_type, persona, fields, purpose, decision, timestamp, correlation_id, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.AgentID, string(entry.RequestType), entry.Persona, string(fieldsJSON),
		entry.Purpose, string(entry.Decision), entry.Timestamp, entry.CorrelationID, entry.SourceID,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting audit entry: %v", vaulttypes.ErrIOFailure, err)
	}
	return nil
}

// QueryByAgent returns mirrored entries for agentID ordered by timestamp,
// usable even after the in-memory vault has pruned older entries.
func (m *SQLiteMirror) QueryByAgent(agentID string, since int64, limit int) ([]*vaulttypes.AuditEntry, error) {
	rows, err := m.db.Query(`
		SELECT id, agent_id, request_type, persona, fields, purpose, decision, timestamp, correlation_id, source_id
		FROM audit_entries
		WHERE agent_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC
		LIMIT ?`, agentID, since, nonZeroLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: querying audit mirror: %v", vaulttypes.ErrIOFailure, err)
	}
	defer rows.Close()

	var out []*vaulttypes.AuditEntry
	for rows.Next() {
		var e vaulttypes.AuditEntry
		var fieldsJSON string
		var reqType, decision, correlationID, sourceID sql.NullString
		if err := rows.Scan(&e.ID, &e.AgentID, &reqType, &e.Persona, &fieldsJSON, &e.Purpose, &decision, &e.Timestamp, &correlationID, &sourceID); err != nil {
			return nil, fmt.Errorf("%w: scanning audit row: %v", vaulttypes.ErrIOFailure, err)
		}
		e.RequestType = vaulttypes.RequestType(reqType.String)
		e.Decision = vaulttypes.Decision(decision.String)
		e.CorrelationID = correlationID.String
		e.SourceID = sourceID.String
		if err := json.Unmarshal([]byte(fieldsJSON), &e.Fields); err != nil {
			return nil, fmt.Errorf("%w: unmarshaling fields: %v", vaulttypes.ErrIOFailure, err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func nonZeroLimit(limit int) int {
	if limit <= 0 {
		return 1_000_000
	}
	return limit
}

// Close releases the underlying database handle.
func (m *SQLiteMirror) Close() error {
	return m.db.Close()
}
