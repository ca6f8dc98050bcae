package worktree

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(filepath.Join(t.TempDir(), "sessions.yaml"))
}

func testSession(id, path string, pid int) Session {
	return Session{
		ID:           id,
		User:         "tester",
		Skill:        "REQ-001",
		Branch:       "main/REQ-001",
		WorktreePath: path,
		StartedAt:    time.Now().UTC(),
		PID:          pid,
		Status:       SessionActive,
	}
}

func TestRegistryRegisterAndLoad(t *testing.T) {
	registry := newTestRegistry(t)

	// Missing file reads as empty.
	sessions, err := registry.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("sessions = %d, want 0", len(sessions))
	}

	if err := registry.Register(testSession("a1", "/wt/a", os.Getpid())); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := registry.Register(testSession("b2", "/wt/b", os.Getpid())); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	sessions, err = registry.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	if sessions[0].ID != "a1" || sessions[1].ID != "b2" {
		t.Errorf("unexpected order: %+v", sessions)
	}
}

func TestRegistryDrop(t *testing.T) {
	registry := newTestRegistry(t)

	if err := registry.Register(testSession("a1", "/wt/a", os.Getpid())); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := registry.Drop("/wt/a"); err != nil {
		t.Fatalf("drop failed: %v", err)
	}
	sessions, err := registry.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions after drop = %d, want 0", len(sessions))
	}

	// Dropping an unknown path is a no-op.
	if err := registry.Drop("/wt/unknown"); err != nil {
		t.Errorf("drop of unknown path errored: %v", err)
	}
}

func TestRegistryProbeFlipsDeadSessions(t *testing.T) {
	registry := newTestRegistry(t)

	if err := registry.Register(testSession("live", "/wt/live", os.Getpid())); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := registry.Register(testSession("dead", "/wt/dead", 1<<22)); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	sessions, err := registry.Probe()
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}

	byID := make(map[string]Session, len(sessions))
	for _, session := range sessions {
		byID[session.ID] = session
	}
	if byID["live"].Status != SessionActive {
		t.Errorf("live session status = %q, want active", byID["live"].Status)
	}
	if byID["dead"].Status != SessionStale {
		t.Errorf("dead session status = %q, want stale", byID["dead"].Status)
	}

	// The flip is persisted.
	sessions, err = registry.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	for _, session := range sessions {
		if session.ID == "dead" && session.Status != SessionStale {
			t.Error("stale status was not persisted")
		}
	}
}

func TestRegistrySaveLeavesNoTempFiles(t *testing.T) {
	registry := newTestRegistry(t)

	for i := 0; i < 5; i++ {
		if err := registry.Register(testSession("a1", "/wt/a", os.Getpid())); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(registry.path))
	if err != nil {
		t.Fatalf("failed to list registry dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("registry dir has %d entries, want just sessions.yaml", len(entries))
	}
}
