package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/entrhq/forge-conductor/pkg/worktree"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and clean up worktree sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered worktree sessions with liveness",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		manager, err := worktree.NewManager(cfg.RepoRoot)
		if err != nil {
			return err
		}

		sessions, err := manager.Registry().Probe()
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("no sessions")
			return nil
		}

		for _, session := range sessions {
			line := fmt.Sprintf("%-10s %-8s %-12s pid=%-7d %s",
				session.ID, session.Status, session.Skill, session.PID, session.Branch)
			if session.Status == worktree.SessionStale {
				line = statusRejectedStyle.Render(line)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var sessionsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove worktrees and branches of sessions whose process died",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		manager, err := worktree.NewManager(cfg.RepoRoot)
		if err != nil {
			return err
		}

		swept, err := manager.SweepStale(cmd.Context())
		if err != nil {
			return err
		}
		if len(swept) == 0 {
			fmt.Println("nothing to sweep")
			return nil
		}

		header := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("swept %d session(s)", len(swept)))
		fmt.Println(header)
		for _, session := range swept {
			fmt.Printf("  %s  %s\n", session.ID, session.Branch)
		}
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsSweepCmd)
}
