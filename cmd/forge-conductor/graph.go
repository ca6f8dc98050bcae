package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/entrhq/forge-conductor/pkg/graph"
)

var (
	initProject    string
	initBaseBranch string
	initGroup      string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty project graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Slug == "" {
			return fmt.Errorf("slug is required")
		}
		if initProject == "" {
			initProject = cfg.Slug
		}

		store := graph.NewStore(cfg.GraphDir, cfg.Slug)
		index := &graph.Index{
			Project:    initProject,
			Slug:       cfg.Slug,
			BaseBranch: initBaseBranch,
			CreatedAt:  time.Now().UTC(),
			Groups: map[string]graph.Group{
				initGroup: {Name: initGroup, Order: 1},
			},
			Requirements: map[string]graph.RequirementMeta{},
		}

		overview := fmt.Sprintf("# %s\n\nProject overview.\n", initProject)
		if err := store.InitGraph(index, overview); err != nil {
			return err
		}

		fmt.Printf("Initialized graph at %s\n", store.Dir())
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the project graph for structural defects",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
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

		errs := graph.ValidateGraph(index, contents)
		if len(errs) == 0 {
			fmt.Println("graph is valid")
			return nil
		}

		for _, validationErr := range errs {
			fmt.Fprintf(os.Stderr, "%s\n", validationErr.Error())
		}
		return fmt.Errorf("%d validation error(s)", len(errs))
	},
}

var (
	statusHeaderStyle   = lipgloss.NewStyle().Bold(true)
	statusPendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusProgressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	statusCompleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	statusRejectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show requirement statuses for the project",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		store := graph.NewStore(cfg.GraphDir, cfg.Slug)
		index, err := store.LoadIndex()
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(index.Requirements))
		for id := range index.Requirements {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		fmt.Println(statusHeaderStyle.Render(fmt.Sprintf("%s (%s)", index.Project, index.Slug)))
		for _, id := range ids {
			meta := index.Requirements[id]
			line := fmt.Sprintf("%-12s %-12s %s", id, meta.Status, meta.Group)
			fmt.Println(styleFor(meta.Status).Render(line))
		}
		return nil
	},
}

func styleFor(status graph.Status) lipgloss.Style {
	switch status {
	case graph.StatusComplete:
		return statusCompleteStyle
	case graph.StatusInProgress:
		return statusProgressStyle
	case graph.StatusRejected:
		return statusRejectedStyle
	default:
		return statusPendingStyle
	}
}

func init() {
	initCmd.Flags().StringVar(&initProject, "project", "", "project display name")
	initCmd.Flags().StringVar(&initBaseBranch, "base-branch", "main", "base branch requirements merge into")
	initCmd.Flags().StringVar(&initGroup, "group", "core", "initial group name")
}
