package tracker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/entrhq/forge-conductor/pkg/logging"
)

// Notifier wraps a Tracker with fire-and-forget semantics: each call is
// retried briefly on transient failure, and any final failure is logged
// and swallowed. Nothing here ever escalates into a loop failure.
type Notifier struct {
	tracker Tracker
	logger  *logging.Logger
}

// NewNotifier wraps a tracker. The logger may be nil.
func NewNotifier(t Tracker, logger *logging.Logger) *Notifier {
	return &Notifier{tracker: t, logger: logger}
}

// EnsureIssue resolves (or creates) the issue for a requirement. On
// failure it returns an empty reference, which downstream code treats as
// "no issue".
func (n *Notifier) EnsureIssue(ctx context.Context, id, title string) string {
	var issueRef string
	err := n.retry(ctx, func() error {
		ref, err := n.tracker.EnsureIssue(ctx, id, title)
		if err != nil {
			return err
		}
		issueRef = ref
		return nil
	})
	if err != nil {
		n.warnf("tracker: failed to resolve issue for %s: %v", id, err)
		return ""
	}
	return issueRef
}

// Started notifies the tracker that work began.
func (n *Notifier) Started(ctx context.Context, issueRef string) {
	if issueRef == "" {
		return
	}
	if err := n.retry(ctx, func() error { return n.tracker.Started(ctx, issueRef) }); err != nil {
		n.warnf("tracker: failed to mark %s started: %v", issueRef, err)
	}
}

// Completed notifies the tracker that the requirement merged.
func (n *Notifier) Completed(ctx context.Context, issueRef string) {
	if issueRef == "" {
		return
	}
	if err := n.retry(ctx, func() error { return n.tracker.Completed(ctx, issueRef) }); err != nil {
		n.warnf("tracker: failed to mark %s completed: %v", issueRef, err)
	}
}

func (n *Notifier) retry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 15 * time.Second

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, 3), ctx))
}

func (n *Notifier) warnf(format string, v ...interface{}) {
	if n.logger != nil {
		n.logger.Warnf(format, v...)
	}
}
