package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxBackupGenerations is the number of rolling backups of the session
// file to keep.
const maxBackupGenerations = 3

// ErrSessionExists is returned when registering a tmux session that is
// already tracked.
var ErrSessionExists = errors.New("session already registered")

// ErrSessionNotFound is returned for lookups of unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Session is one tracked agent session: a tmux pane driving a CLI
// coding assistant.
type Session struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	ProjectPath string    `json:"project_path"`
	Tool        string    `json:"tool"`
	TmuxSession string    `json:"tmux_session"`
	CreatedAt   time.Time `json:"created_at"`
}

type registryFile struct {
	Sessions  []*Session `json:"sessions"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Registry persists sessions to a JSON file with atomic writes and
// rolling backups, so a crash mid-save never loses the list.
type Registry struct {
	mu       sync.Mutex
	path     string
	sessions map[string]*Session
}

// OpenRegistry loads (or initializes) the registry at path.
func OpenRegistry(path string) (*Registry, error) {
	r := &Registry{path: path, sessions: make(map[string]*Session)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("read session registry: %w", err)
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse session registry: %w", err)
	}
	for _, s := range file.Sessions {
		r.sessions[s.ID] = s
	}
	return r, nil
}

// DefaultRegistryPath returns ~/.agentpane/sessions.json.
func DefaultRegistryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".agentpane", "sessions.json"), nil
}

// Register adds a session for an existing tmux session. The tmux
// session name is the uniqueness key; the returned Session carries a
// fresh ID.
func (r *Registry) Register(title, projectPath, tool, tmuxSession string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.TmuxSession == tmuxSession {
			return nil, fmt.Errorf("%w: tmux session %q", ErrSessionExists, tmuxSession)
		}
	}

	if title == "" {
		title = filepath.Base(projectPath)
	}
	s := &Session{
		ID:          uuid.NewString(),
		Title:       title,
		ProjectPath: projectPath,
		Tool:        tool,
		TmuxSession: tmuxSession,
		CreatedAt:   time.Now(),
	}
	r.sessions[s.ID] = s
	if err := r.saveLocked(); err != nil {
		delete(r.sessions, s.ID)
		return nil, err
	}
	return s, nil
}

// Get looks up a session by ID.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Remove deletes a session record.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(r.sessions, id)
	return r.saveLocked()
}

// List returns all sessions, newest first.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// saveLocked writes the registry atomically: marshal to a temp file in
// the same directory, rotate backups, rename into place.
func (r *Registry) saveLocked() error {
	file := registryFile{UpdatedAt: time.Now()}
	for _, s := range r.sessions {
		file.Sessions = append(file.Sessions, s)
	}
	sort.Slice(file.Sessions, func(i, j int) bool {
		return file.Sessions[i].CreatedAt.Before(file.Sessions[j].CreatedAt)
	})

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "sessions-*.json")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp registry: %w", err)
	}

	rotateBackups(r.path)
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace session registry: %w", err)
	}
	return nil
}

// rotateBackups shifts sessions.json.bak1 → .bak2 → .bak3 and copies
// the current file to .bak1. Best effort; backup failure never blocks
// a save.
func rotateBackups(path string) {
	for i := maxBackupGenerations - 1; i >= 1; i-- {
		os.Rename(backupName(path, i), backupName(path, i+1))
	}
	if data, err := os.ReadFile(path); err == nil {
		os.WriteFile(backupName(path, 1), data, 0o600)
	}
}

func backupName(path string, gen int) string {
	return fmt.Sprintf("%s.bak%d", path, gen)
}
