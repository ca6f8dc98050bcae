package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// SessionStatus is the liveness state of a registered session.
type SessionStatus string

const (
	// SessionActive means the owning process was alive at the last probe.
	SessionActive SessionStatus = "active"
	// SessionStale means the owning process no longer answers signals.
	SessionStale SessionStatus = "stale"
)

// Session is one persisted worktree session record.
type Session struct {
	ID           string        `yaml:"id"`
	User         string        `yaml:"user"`
	Skill        string        `yaml:"skill"`
	Branch       string        `yaml:"branch"`
	WorktreePath string        `yaml:"worktreePath"`
	StartedAt    time.Time     `yaml:"startedAt"`
	PID          int           `yaml:"pid"`
	Status       SessionStatus `yaml:"status"`
}

// Registry persists the list of live sessions next to the worktrees it
// describes. Writes are atomic (temp file and rename).
type Registry struct {
	path string
	mu   sync.Mutex
}

// NewRegistry creates a registry stored at path.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// Load reads all registered sessions. A missing file is an empty registry.
func (r *Registry) Load() ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Register appends a session record.
func (r *Registry) Register(session Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.load()
	if err != nil {
		return err
	}

	return r.save(append(sessions, session))
}

// Drop removes any session whose worktree path matches. Dropping a path
// with no session is a no-op.
func (r *Registry) Drop(worktreePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.load()
	if err != nil {
		return err
	}

	kept := sessions[:0]
	for _, session := range sessions {
		if session.WorktreePath != worktreePath {
			kept = append(kept, session)
		}
	}
	if len(kept) == len(sessions) {
		return nil
	}

	return r.save(kept)
}

// Probe signals every session's recorded pid with the no-op signal and
// flips sessions whose process is gone to stale. The updated list is
// persisted and returned.
func (r *Registry) Probe() ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.load()
	if err != nil {
		return nil, err
	}

	changed := false
	for i, session := range sessions {
		if session.Status != SessionActive {
			continue
		}
		if !pidAlive(session.PID) {
			sessions[i].Status = SessionStale
			changed = true
		}
	}

	if changed {
		if err := r.save(sessions); err != nil {
			return nil, err
		}
	}

	return sessions, nil
}

func (r *Registry) load() ([]Session, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session registry: %w", err)
	}

	var sessions []Session
	if err := yaml.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("failed to parse session registry: %w", err)
	}
	return sessions, nil
}

func (r *Registry) save(sessions []Session) error {
	data, err := yaml.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to encode session registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0750); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tempPath := fmt.Sprintf("%s.%s.tmp", r.path, uuid.New().String()[:8])
	if err := os.WriteFile(tempPath, data, 0640); err != nil {
		return fmt.Errorf("failed to write session registry: %w", err)
	}
	if err := os.Rename(tempPath, r.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to commit session registry: %w", err)
	}

	return nil
}

// pidAlive probes a process with signal 0.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
