// Package graph owns the persisted requirement graph: the authoritative
// index, per-requirement content files, and the validator that checks the
// whole collection for structural defects.
package graph

import "time"

// Status is the lifecycle state of a requirement.
type Status string

const (
	// StatusPending means the requirement has not been attempted yet.
	StatusPending Status = "pending"
	// StatusInProgress means the orchestrator has started an attempt.
	StatusInProgress Status = "in_progress"
	// StatusComplete means the requirement was verified and merged.
	StatusComplete Status = "complete"
	// StatusDiscovered marks a requirement added by an agent mid-run.
	StatusDiscovered Status = "discovered"
	// StatusRejected marks a discovered requirement that was turned down.
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusComplete, StatusDiscovered, StatusRejected:
		return true
	}
	return false
}

// TrackerConfig identifies the external issue tracker for a project.
type TrackerConfig struct {
	Provider string `yaml:"provider"`
	Repo     string `yaml:"repo"`
}

// Group is an organizational unit of requirements with optional ordering
// and inter-group dependencies.
type Group struct {
	Name      string   `yaml:"name"`
	Order     int      `yaml:"order,omitempty"`
	DependsOn []string `yaml:"dependsOn,omitempty"`
}

// RequirementMeta is the index entry for a single requirement. The index's
// dependency list is authoritative; the copy inside the content file is
// informational only.
type RequirementMeta struct {
	Group          string     `yaml:"group"`
	Status         Status     `yaml:"status"`
	DependsOn      []string   `yaml:"dependsOn,omitempty"`
	Priority       int        `yaml:"priority,omitempty"`
	Issue          string     `yaml:"issue,omitempty"`
	CompletedAt    *time.Time `yaml:"completedAt,omitempty"`
	DiscoveredBy   string     `yaml:"discoveredBy,omitempty"`
	RejectedReason string     `yaml:"rejectedReason,omitempty"`
}

// Index is the single source of truth for a project's requirement statuses
// and dependencies. It is stored as graph/<slug>/_index.yaml.
type Index struct {
	Project      string                     `yaml:"project"`
	Slug         string                     `yaml:"slug"`
	BaseBranch   string                     `yaml:"baseBranch"`
	CreatedAt    time.Time                  `yaml:"createdAt"`
	Tracker      *TrackerConfig             `yaml:"tracker,omitempty"`
	Groups       map[string]Group           `yaml:"groups"`
	Requirements map[string]RequirementMeta `yaml:"requirements"`
}

// Requirement is the content of a single requirement file. Files declares
// the paths the work is expected to create or modify; entries may be glob
// patterns.
type Requirement struct {
	ID         string   `yaml:"id"`
	Title      string   `yaml:"title"`
	DependsOn  []string `yaml:"dependsOn,omitempty"`
	Files      []string `yaml:"files,omitempty"`
	Acceptance []string `yaml:"acceptance,omitempty"`

	// Body is the freeform markdown after the front matter.
	Body string `yaml:"-"`
}

// ProjectGraph is the fully loaded project: the index, the freeform
// overview document, and every requirement's content keyed by id.
type ProjectGraph struct {
	Index        *Index
	Overview     string
	Requirements map[string]*Requirement
}
