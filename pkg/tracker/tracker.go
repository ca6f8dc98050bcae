// Package tracker is the issue-tracking collaborator: a thin contract the
// execution loop notifies at status transitions, with a GitHub
// implementation backed by the gh CLI. Tracker failures are never allowed
// to influence a run's outcome.
package tracker

import "context"

// Tracker is the synchronization contract with an external issue tracker.
type Tracker interface {
	// EnsureIssue returns the tracker reference for a requirement,
	// creating the issue when it does not exist yet.
	EnsureIssue(ctx context.Context, id, title string) (string, error)

	// Started records that work on the issue has begun.
	Started(ctx context.Context, issueRef string) error

	// Completed closes out the issue after a verified merge.
	Completed(ctx context.Context, issueRef string) error

	// Comment attaches freeform progress notes to the issue.
	Comment(ctx context.Context, issueRef, body string) error
}

// Noop is the tracker used when no issue tracker is configured.
type Noop struct{}

func (Noop) EnsureIssue(ctx context.Context, id, title string) (string, error) { return "", nil }
func (Noop) Started(ctx context.Context, issueRef string) error                { return nil }
func (Noop) Completed(ctx context.Context, issueRef string) error              { return nil }
func (Noop) Comment(ctx context.Context, issueRef, body string) error          { return nil }
