package orchestrator

import (
	"context"
	"fmt"

	"github.com/entrhq/forge-conductor/pkg/graph"
	"github.com/entrhq/forge-conductor/pkg/logging"
	"github.com/entrhq/forge-conductor/pkg/schedule"
	"github.com/entrhq/forge-conductor/pkg/verify"
)

// Options configures a Loop.
type Options struct {
	// MaxIterations bounds the agent/verify retry loop per requirement.
	MaxIterations int

	// BaseBranch overrides the index's base branch when non-empty.
	BaseBranch string
}

// Loop is the sequential execution loop. One control thread; all agent
// and verification work is a blocking wait on subprocess completion.
type Loop struct {
	store     GraphStore
	worktrees Worktrees
	agent     AgentRunner
	verifier  Verifier
	notify    Notifications
	logger    *logging.Logger
	opts      Options
}

// NewLoop wires the loop's collaborators. The logger may be nil.
func NewLoop(store GraphStore, worktrees Worktrees, agent AgentRunner, verifier Verifier, notify Notifications, logger *logging.Logger, opts Options) *Loop {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 3
	}
	return &Loop{
		store:     store,
		worktrees: worktrees,
		agent:     agent,
		verifier:  verifier,
		notify:    notify,
		logger:    logger,
		opts:      opts,
	}
}

// Run executes requirements until the project is complete or a fatal
// condition stops it. The index is reloaded from disk at the top of every
// cycle, so requirements discovered by agents mid-run enter the picture as
// soon as they are promoted.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		index, err := l.store.LoadIndex()
		if err != nil {
			return fmt.Errorf("failed to reload index: %w", err)
		}

		if schedule.IsProjectComplete(index) {
			l.infof("project %s complete", index.Slug)
			return nil
		}

		ready := schedule.FindReady(index)
		if len(ready) == 0 {
			// Incomplete with nothing ready can only mean the graph or
			// its status tracking is defective. Surface it immediately.
			return fmt.Errorf("%w: %d requirements remain", ErrDeadlock, countRemaining(index))
		}

		l.infof("ready set: %v", ready)
		for _, id := range ready {
			if err := l.processRequirement(ctx, index, id); err != nil {
				return err
			}
		}
	}
}

// processRequirement drives one requirement from pending to complete.
func (l *Loop) processRequirement(ctx context.Context, index *graph.Index, id string) error {
	contents, err := l.store.LoadRequirements()
	if err != nil {
		return fmt.Errorf("failed to load requirement contents: %w", err)
	}
	req, ok := contents[id]
	if !ok {
		return fmt.Errorf("requirement %s has no content file", id)
	}

	// Crash-safety boundary: persist in_progress before doing anything
	// else. If the process dies from here on, the requirement is visibly
	// stuck rather than silently pending.
	if err := l.store.UpdateRequirementStatus(id, graph.StatusInProgress); err != nil {
		return fmt.Errorf("failed to mark %s in progress: %w", id, err)
	}

	issueRef := index.Requirements[id].Issue
	if issueRef == "" {
		issueRef = l.notify.EnsureIssue(ctx, id, req.Title)
	}
	l.notify.Started(ctx, issueRef)

	deps, err := schedule.BuildRequirementContext(index, contents, id)
	if err != nil {
		return fmt.Errorf("failed to build context for %s: %w", id, err)
	}

	baseBranch := l.opts.BaseBranch
	if baseBranch == "" {
		baseBranch = index.BaseBranch
	}

	wt, err := l.worktrees.Create(ctx, id, baseBranch, issueRef)
	if err != nil {
		return fmt.Errorf("failed to create worktree for %s: %w", id, err)
	}
	l.infof("%s: worktree %s on branch %s", id, wt.Path, wt.Branch)

	scope := verify.Scope{Files: req.Files, Acceptance: req.Acceptance}

	var lastResult *verify.Result
	passed := false
	for attempt := 1; attempt <= l.opts.MaxIterations; attempt++ {
		l.infof("%s: attempt %d/%d", id, attempt, l.opts.MaxIterations)

		prompt := BuildPrompt(req, deps, lastResult)
		if err := l.agent.Run(ctx, AgentRequest{RequirementID: id, Dir: wt.Path, Prompt: prompt}); err != nil {
			// A transient agent failure burns an attempt and informs
			// the next one.
			l.warnf("%s: agent failed on attempt %d: %v", id, attempt, err)
			lastResult = &verify.Result{Gates: []verify.GateResult{{
				Gate:   "agent",
				Errors: []string{err.Error()},
			}}}
			continue
		}

		result := l.verifier.Run(ctx, wt.Path, scope)
		if result.Passed {
			passed = true
			break
		}

		l.warnf("%s: verification failed on attempt %d", id, attempt)
		lastResult = result
	}

	if !passed {
		// An unverified result is never merged.
		if removeErr := l.worktrees.Remove(ctx, wt.Path); removeErr != nil {
			l.warnf("%s: failed to remove worktree: %v", id, removeErr)
		}
		return fmt.Errorf("%w: requirement %s failed after %d attempts", ErrAttemptsExhausted, id, l.opts.MaxIterations)
	}

	if err := l.worktrees.MergeFastForward(ctx, wt.Branch, baseBranch); err != nil {
		return fmt.Errorf("failed to merge %s: %w", id, err)
	}

	if err := l.worktrees.Remove(ctx, wt.Path); err != nil {
		return fmt.Errorf("failed to remove worktree for %s: %w", id, err)
	}
	// The branch was merged through our own fast-forward flow; force is
	// required because git may not consider it merged from HEAD.
	if err := l.worktrees.DeleteBranch(ctx, wt.Branch, true); err != nil {
		l.warnf("%s: failed to delete branch %s: %v", id, wt.Branch, err)
	}

	if err := l.store.UpdateRequirementStatus(id, graph.StatusComplete); err != nil {
		return fmt.Errorf("failed to mark %s complete: %w", id, err)
	}
	l.notify.Completed(ctx, issueRef)
	l.infof("%s: complete", id)

	return nil
}

func countRemaining(index *graph.Index) int {
	remaining := 0
	for _, meta := range index.Requirements {
		if meta.Status == graph.StatusPending || meta.Status == graph.StatusInProgress {
			remaining++
		}
	}
	return remaining
}

func (l *Loop) infof(format string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Infof(format, v...)
	}
}

func (l *Loop) warnf(format string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Warnf(format, v...)
	}
}
