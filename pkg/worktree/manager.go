// Package worktree manages the disposable git worktrees and branches that
// isolate each requirement attempt, plus the persisted session registry
// used to reconcile believed state with what git actually has.
package worktree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/forge-conductor/pkg/proc"
)

const gitTimeout = 30 * time.Second

// worktreeDirName is the sibling directory that holds all conductor
// worktrees for a repository, kept outside the repository itself so agent
// tooling never scans one sandbox from another.
const worktreeDirName = ".forge-wt"

// ErrNotFastForward is returned when the base branch cannot fast-forward
// onto a verified branch. It means the base moved underneath the run and
// needs human attention; the conductor never auto-resolves divergence.
var ErrNotFastForward = errors.New("merge is not a fast-forward")

// protectedBranches are never deleted, regardless of force.
var protectedBranches = map[string]bool{
	"main":    true,
	"master":  true,
	"develop": true,
}

// Worktree describes one created sandbox.
type Worktree struct {
	Path      string
	Branch    string
	SessionID string
}

// Info is one entry parsed from git's machine-readable worktree listing.
type Info struct {
	Path   string
	Head   string
	Branch string
}

// Manager drives git worktree operations for one repository.
type Manager struct {
	repoRoot string
	baseDir  string
	registry *Registry
}

// NewManager creates a manager for the repository at repoRoot. Worktrees
// live in a sibling directory keyed by repository name, which keeps
// sandbox paths short: <repoRoot>/../.forge-wt/<repoName>/.
func NewManager(repoRoot string) (*Manager, error) {
	abs, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repo root: %w", err)
	}

	baseDir := filepath.Join(filepath.Dir(abs), worktreeDirName, filepath.Base(abs))
	return &Manager{
		repoRoot: abs,
		baseDir:  baseDir,
		registry: NewRegistry(filepath.Join(baseDir, "sessions.yaml")),
	}, nil
}

// BaseDir returns the directory that holds this repository's worktrees.
func (m *Manager) BaseDir() string { return m.baseDir }

// Registry returns the persisted session registry.
func (m *Manager) Registry() *Registry { return m.registry }

// Create makes an isolated worktree and branch for a requirement attempt.
// The branch is named <baseBranch>/<issueRef-or-id>. When the branch
// already exists (a previous attempt left it behind) the worktree is
// attached to it instead of failing.
func (m *Manager) Create(ctx context.Context, id, baseBranch, issueRef string) (*Worktree, error) {
	name := id
	if issueRef != "" {
		name = issueRef
	}
	name = sanitizeRef(name)

	sessionID := uuid.New().String()[:8]
	branch := fmt.Sprintf("%s/%s", baseBranch, name)
	path := filepath.Join(m.baseDir, name)

	if err := os.MkdirAll(m.baseDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create worktree base directory: %w", err)
	}

	if _, err := m.git(ctx, "worktree", "add", "-b", branch, path, baseBranch); err != nil {
		// The branch may survive from an earlier attempt; attach to it.
		if _, attachErr := m.git(ctx, "worktree", "add", path, branch); attachErr != nil {
			return nil, fmt.Errorf("failed to create worktree for %s: %w", id, err)
		}
	}

	wt := &Worktree{Path: path, Branch: branch, SessionID: sessionID}
	session := Session{
		ID:           sessionID,
		User:         currentUser(),
		Skill:        id,
		Branch:       branch,
		WorktreePath: path,
		StartedAt:    time.Now().UTC(),
		PID:          os.Getpid(),
		Status:       SessionActive,
	}
	if err := m.registry.Register(session); err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}

	return wt, nil
}

// List parses `git worktree list --porcelain` into entries.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	out, err := m.git(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreeList(out), nil
}

// IsValid reports whether git still knows about the worktree at path.
func (m *Manager) IsValid(ctx context.Context, path string) (bool, error) {
	infos, err := m.List(ctx)
	if err != nil {
		return false, err
	}
	for _, info := range infos {
		if info.Path == path {
			return true, nil
		}
	}
	return false, nil
}

// Remove force-removes a worktree. Removing an already-gone worktree is
// success, not an error. If git refuses but the directory still exists it
// falls back to direct filesystem removal, and stale worktree metadata is
// always pruned afterward.
func (m *Manager) Remove(ctx context.Context, path string) error {
	_, removeErr := m.git(ctx, "worktree", "remove", "--force", path)
	if removeErr != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("failed to remove worktree directory: %w", err)
			}
		}
	}

	if _, err := m.git(ctx, "worktree", "prune"); err != nil {
		return fmt.Errorf("failed to prune worktrees: %w", err)
	}

	if err := m.registry.Drop(path); err != nil {
		return fmt.Errorf("failed to drop session for %s: %w", path, err)
	}

	return nil
}

// DeleteBranch removes a local branch. Protected branch names and the
// currently checked-out branch are refused. Safe mode (-d) deletes only
// branches git considers merged; force (-D) is for branches the conductor
// itself verified as merged through its own flow, which git may not see as
// merged from HEAD's perspective.
func (m *Manager) DeleteBranch(ctx context.Context, name string, force bool) error {
	short := strings.TrimPrefix(name, "refs/heads/")
	if protectedBranches[short] {
		return fmt.Errorf("refusing to delete protected branch %q", short)
	}

	current, err := m.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if current == short {
		return fmt.Errorf("refusing to delete currently checked-out branch %q", short)
	}

	flag := "-d"
	if force {
		flag = "-D"
	}
	if _, err := m.git(ctx, "branch", flag, short); err != nil {
		return fmt.Errorf("failed to delete branch %q: %w", short, err)
	}
	return nil
}

// CurrentBranch returns the branch checked out in the main repository.
func (m *Manager) CurrentBranch(ctx context.Context) (string, error) {
	out, err := m.git(ctx, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// MergeFastForward merges branch into baseBranch with --ff-only, executed
// in the main repository. Divergence is surfaced as ErrNotFastForward and
// never auto-resolved.
func (m *Manager) MergeFastForward(ctx context.Context, branch, baseBranch string) error {
	current, err := m.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if current != baseBranch {
		if _, err := m.git(ctx, "checkout", baseBranch); err != nil {
			return fmt.Errorf("failed to checkout %s: %w", baseBranch, err)
		}
	}

	if out, err := m.git(ctx, "merge", "--ff-only", branch); err != nil {
		return fmt.Errorf("%w: %s into %s: %s", ErrNotFastForward, branch, baseBranch, firstLine(out))
	}
	return nil
}

// SweepStale probes every registered session's pid and cleans up the ones
// whose process is gone: their worktrees are removed, their branches force
// deleted, and their registry entries dropped. Already-gone worktrees and
// branches count as handled.
func (m *Manager) SweepStale(ctx context.Context) ([]Session, error) {
	sessions, err := m.registry.Probe()
	if err != nil {
		return nil, err
	}

	var swept []Session
	for _, session := range sessions {
		if session.Status != SessionStale {
			continue
		}

		if err := m.Remove(ctx, session.WorktreePath); err != nil {
			return swept, fmt.Errorf("failed to sweep session %s: %w", session.ID, err)
		}
		// The branch may already be gone; that is a swept branch too.
		_ = m.DeleteBranch(ctx, session.Branch, true)

		swept = append(swept, session)
	}

	return swept, nil
}

func (m *Manager) git(ctx context.Context, args ...string) (string, error) {
	result, err := proc.Run(ctx, proc.Command{
		Name:    "git",
		Args:    args,
		Dir:     m.repoRoot,
		Timeout: gitTimeout,
	})
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return result.Output(), fmt.Errorf("git %s failed: %s", strings.Join(args, " "), firstLine(result.Output()))
	}
	return result.Stdout, nil
}

func parseWorktreeList(out string) []Info {
	var infos []Info
	var current Info

	flush := func() {
		if current.Path != "" {
			infos = append(infos, current)
		}
		current = Info{}
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "worktree "):
			flush()
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		}
	}
	flush()

	return infos
}

// sanitizeRef strips characters git refuses in ref names.
func sanitizeRef(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}
	return strings.Trim(sb.String(), "-.")
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
