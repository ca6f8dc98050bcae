package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/entrhq/forge-conductor/pkg/graph"
	"github.com/entrhq/forge-conductor/pkg/logging"
	"github.com/entrhq/forge-conductor/pkg/orchestrator"
	"github.com/entrhq/forge-conductor/pkg/tracker"
	"github.com/entrhq/forge-conductor/pkg/verify"
	"github.com/entrhq/forge-conductor/pkg/worktree"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute ready requirements until the project completes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, err := logging.New("conductor")
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: session logging degraded: %v\n", err)
		}
		defer logger.Close()
		if logger.Path() != "" {
			fmt.Printf("Session log: %s\n", logger.Path())
		}

		store := graph.NewStore(cfg.GraphDir, cfg.Slug)
		index, err := store.LoadIndex()
		if err != nil {
			return err
		}

		contents, err := store.LoadRequirements()
		if err != nil {
			return err
		}
		if errs := graph.ValidateGraph(index, contents); len(errs) > 0 {
			for _, validationErr := range errs {
				fmt.Fprintf(os.Stderr, "%s\n", validationErr.Error())
			}
			return fmt.Errorf("graph has %d validation error(s); fix them before running", len(errs))
		}

		manager, err := worktree.NewManager(cfg.RepoRoot)
		if err != nil {
			return err
		}

		// Reclaim sandboxes left behind by crashed runs before starting.
		swept, err := manager.SweepStale(cmd.Context())
		if err != nil {
			logger.Warnf("stale session sweep failed: %v", err)
		}
		for _, session := range swept {
			logger.Infof("swept stale session %s (branch %s)", session.ID, session.Branch)
		}

		var issues tracker.Tracker = tracker.Noop{}
		if index.Tracker != nil && index.Tracker.Provider == "github" {
			issues = tracker.NewGitHub(index.Tracker.Repo, cfg.RepoRoot)
		}
		notify := tracker.NewNotifier(issues, logger)

		agent := orchestrator.NewCommandAgent(cfg.Agent, os.Stdout)
		pipeline := verify.NewPipeline(cfg.Verification, logger)

		loop := orchestrator.NewLoop(store, manager, agent, pipeline, notify, logger, orchestrator.Options{
			MaxIterations: cfg.MaxIterations,
			BaseBranch:    cfg.BaseBranch,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := loop.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("run interrupted: %w", context.Cause(ctx))
			}
			return err
		}

		fmt.Printf("Project %s complete.\n", cfg.Slug)
		return nil
	},
}
