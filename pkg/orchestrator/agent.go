package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/entrhq/forge-conductor/pkg/config"
	"github.com/entrhq/forge-conductor/pkg/proc"
)

// CommandAgent runs the configured agent command as a subprocess. The
// prompt goes to stdin at spawn time; stdout and stderr are streamed
// through for observability only, never parsed.
type CommandAgent struct {
	cfg    config.AgentConfig
	stream io.Writer
}

// NewCommandAgent creates an agent runner. Output is streamed to stream,
// defaulting to stdout.
func NewCommandAgent(cfg config.AgentConfig, stream io.Writer) *CommandAgent {
	if stream == nil {
		stream = os.Stdout
	}
	return &CommandAgent{cfg: cfg, stream: stream}
}

// Run spawns the agent in the worktree and waits for it to exit.
func (a *CommandAgent) Run(ctx context.Context, req AgentRequest) error {
	lineWriter := proc.NewLineWriter(fmt.Sprintf("[%s] ", req.RequirementID), a.stream)
	defer lineWriter.Flush()

	result, err := proc.Run(ctx, proc.Command{
		Name:    a.cfg.Command,
		Args:    a.cfg.Args,
		Dir:     req.Dir,
		Stdin:   req.Prompt,
		Timeout: a.cfg.Timeout,
		Stream:  lineWriter,
	})
	if err != nil {
		return fmt.Errorf("failed to run agent for %s: %w", req.RequirementID, err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("agent for %s exited %d", req.RequirementID, result.ExitCode)
	}

	return nil
}
