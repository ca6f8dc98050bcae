// Package orchestrator drives the sequential execution loop: it takes
// ready requirements from the scheduler, isolates each attempt in a
// worktree, spawns the external coding agent, verifies the result, and
// merges only what passed.
package orchestrator

import (
	"context"
	"errors"

	"github.com/entrhq/forge-conductor/pkg/graph"
	"github.com/entrhq/forge-conductor/pkg/verify"
	"github.com/entrhq/forge-conductor/pkg/worktree"
)

// ErrDeadlock means no requirement is ready while the project is still
// incomplete. It indicates a graph or status-tracking defect and is never
// silently retried.
var ErrDeadlock = errors.New("no ready requirements but project is incomplete")

// ErrAttemptsExhausted means a requirement failed verification on every
// attempt within the iteration budget.
var ErrAttemptsExhausted = errors.New("attempt budget exhausted")

// GraphStore is the slice of the graph store the loop depends on.
type GraphStore interface {
	LoadIndex() (*graph.Index, error)
	LoadRequirements() (map[string]*graph.Requirement, error)
	UpdateRequirementStatus(id string, status graph.Status) error
}

// Worktrees is the slice of the worktree manager the loop depends on.
type Worktrees interface {
	Create(ctx context.Context, id, baseBranch, issueRef string) (*worktree.Worktree, error)
	Remove(ctx context.Context, path string) error
	MergeFastForward(ctx context.Context, branch, baseBranch string) error
	DeleteBranch(ctx context.Context, name string, force bool) error
}

// AgentRequest is one invocation of the external coding agent.
type AgentRequest struct {
	RequirementID string
	Dir           string
	Prompt        string
}

// AgentRunner spawns the coding agent with the prompt on stdin and waits
// for it to exit. A non-nil error is a failed attempt, not a fatal run
// condition.
type AgentRunner interface {
	Run(ctx context.Context, req AgentRequest) error
}

// Verifier runs the verification pipeline against a worktree.
// *verify.Pipeline satisfies it.
type Verifier interface {
	Run(ctx context.Context, dir string, scope verify.Scope) *verify.Result
}

// Notifications is the fire-and-forget issue-tracker surface. None of
// these calls can fail from the loop's perspective.
type Notifications interface {
	EnsureIssue(ctx context.Context, id, title string) string
	Started(ctx context.Context, issueRef string)
	Completed(ctx context.Context, issueRef string)
}
