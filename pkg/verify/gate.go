// Package verify runs the ordered verification gates against a worktree
// and reduces them to a single verdict the execution loop can act on.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/forge-conductor/pkg/proc"
)

// Gate is one independent check in the pipeline.
type Gate interface {
	// Name identifies the gate in results and feedback.
	Name() string

	// Conditional gates only run when at least one unconditional gate
	// passed; a codebase failing every basic check cannot yield a
	// meaningful UI or runtime signal.
	Conditional() bool

	// Run executes the check against the worktree directory.
	Run(ctx context.Context, dir string) GateResult
}

// GateResult is the structured outcome of one gate.
type GateResult struct {
	Gate     string        `yaml:"gate" json:"gate"`
	Passed   bool          `yaml:"passed" json:"passed"`
	Skipped  bool          `yaml:"skipped,omitempty" json:"skipped,omitempty"`
	Errors   []string      `yaml:"errors,omitempty" json:"errors,omitempty"`
	Warnings []string      `yaml:"warnings,omitempty" json:"warnings,omitempty"`
	Duration time.Duration `yaml:"duration" json:"duration"`
}

// Result is the verdict consumed by the execution loop.
type Result struct {
	Passed bool         `yaml:"passed" json:"passed"`
	Gates  []GateResult `yaml:"gates" json:"gates"`
}

// FailedGates returns the gates that ran and failed.
func (r *Result) FailedGates() []GateResult {
	var failed []GateResult
	for _, gate := range r.Gates {
		if !gate.Skipped && !gate.Passed {
			failed = append(failed, gate)
		}
	}
	return failed
}

// FeedbackMessage renders the failures for the agent's next attempt.
func (r *Result) FeedbackMessage() string {
	failed := r.FailedGates()
	if len(failed) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("The previous attempt failed verification:\n\n")
	for _, gate := range failed {
		sb.WriteString(fmt.Sprintf("- %s failed\n", gate.Gate))
		for _, msg := range gate.Errors {
			sb.WriteString(fmt.Sprintf("  %s\n", indentContinuations(msg)))
		}
	}
	return sb.String()
}

func indentContinuations(msg string) string {
	return strings.ReplaceAll(strings.TrimSpace(msg), "\n", "\n  ")
}

// CommandGate runs a shell command in the worktree and passes on exit 0.
// The unconditional gates (typecheck, lint, tests) are command gates.
type CommandGate struct {
	name        string
	command     string
	args        []string
	conditional bool
	timeout     time.Duration
}

// NewCommandGate creates a command gate with its own timeout. A zero
// timeout defaults to five minutes.
func NewCommandGate(name, command string, args []string, timeout time.Duration) *CommandGate {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &CommandGate{name: name, command: command, args: args, timeout: timeout}
}

func (g *CommandGate) Name() string      { return g.name }
func (g *CommandGate) Conditional() bool { return g.conditional }

func (g *CommandGate) Run(ctx context.Context, dir string) GateResult {
	start := time.Now()
	result := GateResult{Gate: g.name}

	procResult, err := proc.Run(ctx, proc.Command{
		Name:    g.command,
		Args:    g.args,
		Dir:     dir,
		Timeout: g.timeout,
	})
	result.Duration = time.Since(start)

	switch {
	case err != nil:
		result.Errors = append(result.Errors, err.Error())
	case procResult.ExitCode != 0:
		result.Errors = append(result.Errors, fmt.Sprintf("%s exited %d:\n%s",
			g.command, procResult.ExitCode, truncateOutput(procResult.Output())))
	default:
		result.Passed = true
	}

	return result
}

const maxGateOutput = 4000

func truncateOutput(out string) string {
	out = strings.TrimSpace(out)
	if len(out) <= maxGateOutput {
		return out
	}
	// Keep the tail: compilers and test runners put the verdict last.
	return "... (truncated)\n" + out[len(out)-maxGateOutput:]
}
