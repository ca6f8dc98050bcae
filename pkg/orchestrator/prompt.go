package orchestrator

import (
	"fmt"
	"strings"

	"github.com/entrhq/forge-conductor/pkg/graph"
	"github.com/entrhq/forge-conductor/pkg/schedule"
	"github.com/entrhq/forge-conductor/pkg/verify"
)

// BuildPrompt assembles the agent's instructions for one attempt: the
// requirement itself, the transitive dependency briefing, and — on retries
// — the previous attempt's verification failures so each iteration is
// informed by what went wrong.
func BuildPrompt(req *graph.Requirement, deps []schedule.ContextEntry, lastResult *verify.Result) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Requirement %s: %s\n\n", req.ID, req.Title))

	if body := strings.TrimSpace(req.Body); body != "" {
		sb.WriteString(body)
		sb.WriteString("\n\n")
	}

	if len(req.Files) > 0 {
		sb.WriteString("Expected file scope:\n")
		for _, path := range req.Files {
			sb.WriteString(fmt.Sprintf("- %s\n", path))
		}
		sb.WriteString("\n")
	}

	if len(req.Acceptance) > 0 {
		sb.WriteString("Acceptance criteria:\n")
		for _, item := range req.Acceptance {
			sb.WriteString(fmt.Sprintf("- %s\n", item))
		}
		sb.WriteString("\n")
	}

	if len(deps) > 0 {
		sb.WriteString("Completed upstream requirements for context:\n\n")
		for _, dep := range deps {
			sb.WriteString(fmt.Sprintf("## %s: %s (%s)\n", dep.ID, dep.Title, dep.Status))
			if len(dep.Files) > 0 {
				sb.WriteString(fmt.Sprintf("Files: %s\n", strings.Join(dep.Files, ", ")))
			}
			for _, item := range dep.Acceptance {
				sb.WriteString(fmt.Sprintf("- %s\n", item))
			}
			sb.WriteString("\n")
		}
	}

	if lastResult != nil {
		if feedback := lastResult.FeedbackMessage(); feedback != "" {
			sb.WriteString(feedback)
			sb.WriteString("\nFix these failures before finishing.\n")
		}
	}

	return sb.String()
}
