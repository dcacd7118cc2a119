// Package store persists transcript snapshots in a SQLite database under
// the workspace's .dayflow directory. Only messages are persisted;
// action-state sets are scoped to the live session and never written out.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"dayflow/internal/chat"
	"dayflow/internal/logging"
)

// SessionStore reads and writes sessions in one SQLite database.
type SessionStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewSessionStore opens (or creates) the session database at
// workspace/.dayflow/<dir>/sessions.db.
func NewSessionStore(workspace, dir string) (*SessionStore, error) {
	path := filepath.Join(workspace, ".dayflow", dir, "sessions.db")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.SessionDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.SessionDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &SessionStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.SessionDebug("session store ready at %s", path)
	return s, nil
}

// initialize creates the required tables.
func (s *SessionStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		saved_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_messages (
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		message_id TEXT NOT NULL,
		role TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		ts TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		error_retryable INTEGER NOT NULL DEFAULT 0,
		preview_kind TEXT NOT NULL DEFAULT '',
		preview_json TEXT NOT NULL DEFAULT '',
		classification_json TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (session_id, position),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create session schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SessionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// messageRecord is the row form of chat.Message. The preview union is
// stored as a kind tag plus a JSON payload.
type messageRecord struct {
	ID             string
	Role           string
	DisplayName    string
	Content        string
	Timestamp      time.Time
	Error          string
	ErrorRetryable bool
	PreviewKind    string
	Preview        json.RawMessage
	Classification *chat.CRUDOperation
}

const (
	roleUser      = "user"
	roleAssistant = "assistant"

	previewEvent      = "event"
	previewMultiEvent = "multi_event"
	previewBulk       = "bulk_action"
)

// Save writes a transcript snapshot under the given session id, replacing
// any previous snapshot with the same id. Streaming messages are
// finalized in the snapshot; a reloaded session never resumes a stream.
func (s *SessionStore) Save(sessionID string, messages []chat.Message) error {
	timer := logging.StartTimer(logging.CategorySession, "SessionStore.Save")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin session save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (id, saved_at) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at`,
		sessionID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", sessionID, err)
	}
	if _, err := tx.Exec(`DELETE FROM session_messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO session_messages
		 (session_id, position, message_id, role, display_name, content, ts,
		  error, error_retryable, preview_kind, preview_json, classification_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare session insert: %w", err)
	}
	defer stmt.Close()

	for pos, msg := range messages {
		rec, err := toRecord(msg)
		if err != nil {
			return err
		}
		classification := ""
		if rec.Classification != nil {
			data, err := json.Marshal(rec.Classification)
			if err != nil {
				return fmt.Errorf("marshal classification for %s: %w", rec.ID, err)
			}
			classification = string(data)
		}
		_, err = stmt.Exec(
			sessionID, pos, rec.ID, rec.Role, rec.DisplayName, rec.Content,
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
			rec.Error, rec.ErrorRetryable, rec.PreviewKind, string(rec.Preview), classification,
		)
		if err != nil {
			return fmt.Errorf("save message %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session %s: %w", sessionID, err)
	}
	logging.Session("saved session %s (%d messages)", sessionID, len(messages))
	return nil
}

// Load restores a session's messages in their saved order.
func (s *SessionStore) Load(sessionID string) ([]chat.Message, error) {
	timer := logging.StartTimer(logging.CategorySession, "SessionStore.Load")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var savedAt string
	err := s.db.QueryRow(`SELECT saved_at FROM sessions WHERE id = ?`, sessionID).Scan(&savedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}

	rows, err := s.db.Query(
		`SELECT message_id, role, display_name, content, ts,
		        error, error_retryable, preview_kind, preview_json, classification_json
		 FROM session_messages
		 WHERE session_id = ?
		 ORDER BY position`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("read session %s messages: %w", sessionID, err)
	}
	defer rows.Close()

	var messages []chat.Message
	for rows.Next() {
		var rec messageRecord
		var ts, preview, classification string
		if err := rows.Scan(
			&rec.ID, &rec.Role, &rec.DisplayName, &rec.Content, &ts,
			&rec.Error, &rec.ErrorRetryable, &rec.PreviewKind, &preview, &classification,
		); err != nil {
			return nil, fmt.Errorf("scan session %s message: %w", sessionID, err)
		}
		rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp for %s: %w", rec.ID, err)
		}
		rec.Preview = json.RawMessage(preview)
		if classification != "" {
			var op chat.CRUDOperation
			if err := json.Unmarshal([]byte(classification), &op); err != nil {
				return nil, fmt.Errorf("parse classification for %s: %w", rec.ID, err)
			}
			rec.Classification = &op
		}

		msg, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read session %s messages: %w", sessionID, err)
	}
	logging.Session("loaded session %s (%d messages)", sessionID, len(messages))
	return messages, nil
}

// List returns the known session ids, most recently saved first.
func (s *SessionStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id FROM sessions ORDER BY saved_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func toRecord(msg chat.Message) (messageRecord, error) {
	rec := messageRecord{
		ID:             msg.ID,
		Content:        msg.Content,
		Timestamp:      msg.Timestamp,
		Error:          msg.Error,
		ErrorRetryable: msg.ErrorRetryable,
		Classification: msg.Classification,
	}
	if msg.Sender.IsUser() {
		rec.Role = roleUser
		rec.DisplayName = msg.Sender.DisplayName
	} else {
		rec.Role = roleAssistant
	}

	if msg.Preview != nil {
		raw, err := json.Marshal(msg.Preview)
		if err != nil {
			return messageRecord{}, fmt.Errorf("marshal preview for %s: %w", msg.ID, err)
		}
		rec.Preview = raw
		switch msg.Preview.PreviewKind() {
		case chat.PreviewEvent:
			rec.PreviewKind = previewEvent
		case chat.PreviewMultiEvent:
			rec.PreviewKind = previewMultiEvent
		case chat.PreviewBulkAction:
			rec.PreviewKind = previewBulk
		}
	}
	return rec, nil
}

func fromRecord(rec messageRecord) (chat.Message, error) {
	msg := chat.Message{
		ID:             rec.ID,
		Content:        rec.Content,
		Timestamp:      rec.Timestamp,
		Error:          rec.Error,
		ErrorRetryable: rec.ErrorRetryable,
		Classification: rec.Classification,
	}
	if rec.Role == roleUser {
		msg.Sender = chat.UserSender(rec.DisplayName)
	} else {
		msg.Sender = chat.AssistantSender()
	}

	switch rec.PreviewKind {
	case "":
	case previewEvent:
		var p chat.EventPreview
		if err := json.Unmarshal(rec.Preview, &p); err != nil {
			return chat.Message{}, fmt.Errorf("parse event preview for %s: %w", rec.ID, err)
		}
		msg.Preview = &p
	case previewMultiEvent:
		var p chat.MultiEventPreview
		if err := json.Unmarshal(rec.Preview, &p); err != nil {
			return chat.Message{}, fmt.Errorf("parse multi-event preview for %s: %w", rec.ID, err)
		}
		msg.Preview = &p
	case previewBulk:
		var p chat.BulkActionPreview
		if err := json.Unmarshal(rec.Preview, &p); err != nil {
			return chat.Message{}, fmt.Errorf("parse bulk preview for %s: %w", rec.ID, err)
		}
		msg.Preview = &p
	default:
		return chat.Message{}, fmt.Errorf("unknown preview kind %q for %s", rec.PreviewKind, rec.ID)
	}
	return msg, nil
}
