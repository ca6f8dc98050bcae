// Package config holds the run configuration for forge-conductor.
package config

import (
	"fmt"
	"time"

	"github.com/entrhq/forge-conductor/pkg/verify"
)

// AgentConfig describes how to spawn the external coding agent. The
// requirement prompt is delivered on the process's standard input.
type AgentConfig struct {
	Command string   `yaml:"command" mapstructure:"command"`
	Args    []string `yaml:"args,omitempty" mapstructure:"args"`

	// Timeout bounds one agent invocation. Zero means unbounded: agent
	// runs may legitimately take very long.
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// Config is the full run configuration, loaded from YAML with environment
// overrides.
type Config struct {
	// GraphDir is the directory containing one subdirectory per project
	// slug.
	GraphDir string `yaml:"graph_dir" mapstructure:"graph_dir"`

	// Slug selects the project under GraphDir.
	Slug string `yaml:"slug" mapstructure:"slug"`

	// RepoRoot is the repository the agents work on.
	RepoRoot string `yaml:"repo_root" mapstructure:"repo_root"`

	// BaseBranch overrides the index's base branch when set.
	BaseBranch string `yaml:"base_branch,omitempty" mapstructure:"base_branch"`

	// MaxIterations bounds the inner retry loop per requirement.
	MaxIterations int `yaml:"max_iterations" mapstructure:"max_iterations"`

	Agent        AgentConfig   `yaml:"agent" mapstructure:"agent"`
	Verification verify.Config `yaml:"verification" mapstructure:"verification"`
}

// DefaultConfig returns a configuration suitable for most projects: three
// attempts per requirement and no conditional gates.
func DefaultConfig() *Config {
	return &Config{
		GraphDir:      "graph",
		RepoRoot:      ".",
		MaxIterations: 3,
	}
}

// Validate checks the configuration before a run starts.
func (c *Config) Validate() error {
	if c.GraphDir == "" {
		return fmt.Errorf("graph_dir is required")
	}
	if c.Slug == "" {
		return fmt.Errorf("slug is required")
	}
	if c.RepoRoot == "" {
		return fmt.Errorf("repo_root is required")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive")
	}
	if c.Agent.Command == "" {
		return fmt.Errorf("agent.command is required")
	}
	if c.Agent.Timeout < 0 {
		return fmt.Errorf("agent.timeout cannot be negative")
	}
	for i, gate := range c.Verification.Gates {
		if gate.Name == "" {
			return fmt.Errorf("verification.gates[%d] is missing a name", i)
		}
		if gate.Command == "" {
			return fmt.Errorf("verification gate %q is missing a command", gate.Name)
		}
	}
	if c.Verification.Preview != nil && c.Verification.Preview.URL == "" {
		return fmt.Errorf("verification.preview.url is required when preview is configured")
	}
	return nil
}
