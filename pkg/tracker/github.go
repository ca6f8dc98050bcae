package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/forge-conductor/pkg/proc"
)

const ghTimeout = 30 * time.Second

// GitHub synchronizes requirement state to GitHub issues through the gh
// CLI, which carries the user's existing authentication.
type GitHub struct {
	repo string
	dir  string
}

// NewGitHub creates a tracker for the given owner/name repository. Commands
// run in dir so gh resolves the right remote.
func NewGitHub(repo, dir string) *GitHub {
	return &GitHub{repo: repo, dir: dir}
}

// EnsureIssue looks up an open issue titled after the requirement and
// creates one when none exists. The returned reference is the issue number.
func (g *GitHub) EnsureIssue(ctx context.Context, id, title string) (string, error) {
	issueTitle := fmt.Sprintf("%s: %s", id, title)

	out, err := g.gh(ctx, "issue", "list", "--repo", g.repo,
		"--search", fmt.Sprintf("in:title %q", id),
		"--json", "number", "--jq", ".[0].number")
	if err == nil {
		if number := strings.TrimSpace(out); number != "" && number != "null" {
			return number, nil
		}
	}

	out, err = g.gh(ctx, "issue", "create", "--repo", g.repo,
		"--title", issueTitle,
		"--body", fmt.Sprintf("Tracked requirement %s, managed by forge-conductor.", id))
	if err != nil {
		return "", fmt.Errorf("failed to create issue for %s: %w", id, err)
	}

	// gh prints the issue URL; the trailing segment is the number.
	url := strings.TrimSpace(out)
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		return url[idx+1:], nil
	}
	return url, nil
}

// Started comments on the issue that an attempt has begun.
func (g *GitHub) Started(ctx context.Context, issueRef string) error {
	return g.Comment(ctx, issueRef, "Implementation started.")
}

// Completed closes the issue.
func (g *GitHub) Completed(ctx context.Context, issueRef string) error {
	if _, err := g.gh(ctx, "issue", "close", issueRef, "--repo", g.repo,
		"--comment", "Verified and merged."); err != nil {
		return fmt.Errorf("failed to close issue %s: %w", issueRef, err)
	}
	return nil
}

// Comment adds a comment to the issue.
func (g *GitHub) Comment(ctx context.Context, issueRef, body string) error {
	if _, err := g.gh(ctx, "issue", "comment", issueRef, "--repo", g.repo,
		"--body", body); err != nil {
		return fmt.Errorf("failed to comment on issue %s: %w", issueRef, err)
	}
	return nil
}

func (g *GitHub) gh(ctx context.Context, args ...string) (string, error) {
	result, err := proc.Run(ctx, proc.Command{
		Name:    "gh",
		Args:    args,
		Dir:     g.dir,
		Timeout: ghTimeout,
	})
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("gh %s failed: %s", strings.Join(args, " "), strings.TrimSpace(result.Stderr))
	}
	return result.Stdout, nil
}
