package store

import (
	"errors"
	"time"
)

// ErrPersistence wraps storage failures that must terminate the session.
var ErrPersistence = errors.New("persistence failure")

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Invocation statuses.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusTimeout   = "timeout"
	StatusCancelled = "cancelled"
)

// Session represents one conversation with the agent
type Session struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]string
}

// Turn is a single entry in a session transcript. Seq is assigned by the
// store on append and is strictly increasing per session.
type Turn struct {
	SessionID  string
	Seq        int
	Role       string
	Content    string
	Invocation *Invocation
	CreatedAt  time.Time
}

// Invocation records the outcome of one tool call.
type Invocation struct {
	Tool       string            `json:"tool"`
	Args       map[string]string `json:"args,omitempty"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	Warning    string            `json:"warning,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	ArtifactID string            `json:"artifact_id,omitempty"`
}

// Artifact represents a tool output blob too large to inline in a turn
type Artifact struct {
	ID        string
	SessionID string
	Path      string // Relative path in the artifact store
	Type      string // e.g., "tool_output", "log"
	CreatedAt time.Time
	Digest    string // Content hash
}

// Storage defines the interface for persistence
type Storage interface {
	// Session Management
	CreateSession(session *Session) error
	GetSession(id string) (*Session, error)
	UpdateSession(session *Session) error
	ListSessions() ([]*Session, error)

	// Transcript Management
	// AppendTurn assigns the next sequence number and persists the turn.
	AppendTurn(turn *Turn) error
	ListTurns(sessionID string) ([]*Turn, error)

	// Artifact Management
	// SaveArtifact persists the metadata and the content
	SaveArtifact(artifact *Artifact, content []byte) error
	GetArtifact(id string) (*Artifact, []byte, error)
	ListArtifacts(sessionID string) ([]*Artifact, error)

	// Configuration Management
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)

	Close() error
}
