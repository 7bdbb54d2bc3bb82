package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db          *sql.DB
	artifactDir string
}

func NewSQLiteStore(dbPath, artifactDir string) (*SQLiteStore, error) {
	// Ensure directories exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}
	if err := os.MkdirAll(artifactDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:          db,
		artifactDir: artifactDir,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			created_at DATETIME,
			updated_at DATETIME,
			metadata TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			session_id TEXT,
			seq INTEGER,
			role TEXT,
			content TEXT,
			invocation TEXT,
			created_at DATETIME,
			PRIMARY KEY(session_id, seq),
			FOREIGN KEY(session_id) REFERENCES sessions(id)
		);`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			id TEXT PRIMARY KEY,
			session_id TEXT,
			path TEXT,
			type TEXT,
			created_at DATETIME,
			digest TEXT,
			FOREIGN KEY(session_id) REFERENCES sessions(id)
		);`,
		`CREATE TABLE IF NOT EXISTS configuration (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Configuration Implementation

func (s *SQLiteStore) SetConfig(key, value string) error {
	query := `INSERT INTO configuration (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	_, err := s.db.Exec(query, key, value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *SQLiteStore) GetConfig(key string) (string, error) {
	query := `SELECT value FROM configuration WHERE key = ?`
	row := s.db.QueryRow(query, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return value, nil
}

// Session Implementation

func (s *SQLiteStore) CreateSession(session *Session) error {
	metaJSON, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `INSERT INTO sessions (id, created_at, updated_at, metadata) VALUES (?, ?, ?, ?)`
	if _, err = s.db.Exec(query, session.ID, session.CreatedAt, session.UpdatedAt, string(metaJSON)); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(id string) (*Session, error) {
	query := `SELECT id, created_at, updated_at, metadata FROM sessions WHERE id = ?`
	row := s.db.QueryRow(query, id)

	var session Session
	var metaJSON string
	if err := row.Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt, &metaJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session not found: %s", id)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := json.Unmarshal([]byte(metaJSON), &session.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &session, nil
}

func (s *SQLiteStore) UpdateSession(session *Session) error {
	metaJSON, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `UPDATE sessions SET updated_at = ?, metadata = ? WHERE id = ?`
	if _, err = s.db.Exec(query, time.Now(), string(metaJSON), session.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *SQLiteStore) ListSessions() ([]*Session, error) {
	query := `SELECT id, created_at, updated_at, metadata FROM sessions ORDER BY created_at`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var metaJSON string
		if err := rows.Scan(&sess.ID, &sess.CreatedAt, &sess.UpdatedAt, &metaJSON); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &sess.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// Transcript Implementation

// AppendTurn assigns the next sequence number inside a transaction so
// concurrent appends to the same session never collide.
func (s *SQLiteStore) AppendTurn(turn *Turn) error {
	var invJSON []byte
	if turn.Invocation != nil {
		var err error
		invJSON, err = json.Marshal(turn.Invocation)
		if err != nil {
			return fmt.Errorf("failed to marshal invocation: %w", err)
		}
	}

	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = ?`, turn.SessionID)
	if err := row.Scan(&turn.Seq); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	query := `INSERT INTO turns (session_id, seq, role, content, invocation, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.Exec(query, turn.SessionID, turn.Seq, turn.Role, turn.Content, string(invJSON), turn.CreatedAt); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *SQLiteStore) ListTurns(sessionID string) ([]*Turn, error) {
	query := `SELECT session_id, seq, role, content, invocation, created_at FROM turns WHERE session_id = ? ORDER BY seq`
	rows, err := s.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var turns []*Turn
	for rows.Next() {
		var t Turn
		var invJSON string
		if err := rows.Scan(&t.SessionID, &t.Seq, &t.Role, &t.Content, &invJSON, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if invJSON != "" {
			var inv Invocation
			if err := json.Unmarshal([]byte(invJSON), &inv); err != nil {
				return nil, fmt.Errorf("failed to unmarshal invocation: %w", err)
			}
			t.Invocation = &inv
		}
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

// Artifact Implementation

func (s *SQLiteStore) SaveArtifact(artifact *Artifact, content []byte) error {
	// 1. Save content to filesystem
	fullPath := filepath.Join(s.artifactDir, artifact.Path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0750); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write artifact content: %w", err)
	}

	// 2. Save metadata to DB
	query := `INSERT INTO artifacts (id, session_id, path, type, created_at, digest) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.Exec(query, artifact.ID, artifact.SessionID, artifact.Path, artifact.Type, artifact.CreatedAt, artifact.Digest); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *SQLiteStore) GetArtifact(id string) (*Artifact, []byte, error) {
	// 1. Get metadata
	query := `SELECT id, session_id, path, type, created_at, digest FROM artifacts WHERE id = ?`
	row := s.db.QueryRow(query, id)

	var artifact Artifact
	if err := row.Scan(&artifact.ID, &artifact.SessionID, &artifact.Path, &artifact.Type, &artifact.CreatedAt, &artifact.Digest); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, fmt.Errorf("artifact not found: %s", id)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// 2. Get content
	fullPath := filepath.Join(s.artifactDir, artifact.Path)
	content, err := os.ReadFile(fullPath) // #nosec G304
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read artifact content: %w", err)
	}

	return &artifact, content, nil
}

func (s *SQLiteStore) ListArtifacts(sessionID string) ([]*Artifact, error) {
	query := `SELECT id, session_id, path, type, created_at, digest FROM artifacts WHERE session_id = ?`
	rows, err := s.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Path, &a.Type, &a.CreatedAt, &a.Digest); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		artifacts = append(artifacts, &a)
	}
	return artifacts, rows.Err()
}
