package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validGraph() (*Index, map[string]*Requirement) {
	index := &Index{
		Project:    "Checkout Flow",
		Slug:       "checkout-flow",
		BaseBranch: "main",
		Groups: map[string]Group{
			"core": {Name: "core", Order: 1},
			"ui":   {Name: "ui", Order: 2, DependsOn: []string{"core"}},
		},
		Requirements: map[string]RequirementMeta{
			"REQ-001": {Group: "core", Status: StatusPending},
			"REQ-002": {Group: "core", Status: StatusPending, DependsOn: []string{"REQ-001"}},
			"REQ-003": {Group: "ui", Status: StatusPending, DependsOn: []string{"REQ-002"}},
		},
	}
	contents := map[string]*Requirement{
		"REQ-001": {ID: "REQ-001", Title: "Cart model", Files: []string{"src/cart/model.ts"}},
		"REQ-002": {ID: "REQ-002", Title: "Cart totals", Files: []string{"src/cart/totals.ts"}},
		"REQ-003": {ID: "REQ-003", Title: "Cart page", Files: []string{"src/pages/cart.tsx"}},
	}
	return index, contents
}

func kinds(errs []ValidationError) []ErrorKind {
	var out []ErrorKind
	for _, err := range errs {
		out = append(out, err.Kind)
	}
	return out
}

func TestValidateGraphAcceptsValidGraph(t *testing.T) {
	index, contents := validGraph()
	assert.Empty(t, ValidateGraph(index, contents))
}

func TestValidateGraphReportsCycleWithExactPath(t *testing.T) {
	index, contents := validGraph()
	meta := index.Requirements["REQ-001"]
	meta.DependsOn = []string{"REQ-003"}
	index.Requirements["REQ-001"] = meta

	errs := ValidateGraph(index, contents)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCycle, errs[0].Kind)
	assert.Equal(t, []string{"REQ-001", "REQ-003", "REQ-002"}, errs[0].IDs)
	assert.Contains(t, errs[0].Message, "REQ-001")
}

func TestValidateGraphReportsGroupCycle(t *testing.T) {
	index, contents := validGraph()
	core := index.Groups["core"]
	core.DependsOn = []string{"ui"}
	index.Groups["core"] = core

	errs := ValidateGraph(index, contents)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrGroupCycle, errs[0].Kind)
}

func TestValidateGraphReportsDanglingDependency(t *testing.T) {
	index, contents := validGraph()
	meta := index.Requirements["REQ-002"]
	meta.DependsOn = append(meta.DependsOn, "REQ-404")
	index.Requirements["REQ-002"] = meta

	errs := ValidateGraph(index, contents)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDanglingDependency, errs[0].Kind)
	assert.Equal(t, []string{"REQ-002", "REQ-404"}, errs[0].IDs)
}

func TestValidateGraphReportsUnknownGroup(t *testing.T) {
	index, contents := validGraph()
	meta := index.Requirements["REQ-001"]
	meta.Group = "backend"
	index.Requirements["REQ-001"] = meta

	errs := ValidateGraph(index, contents)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownGroup, errs[0].Kind)
}

func TestValidateGraphReportsFileCorrespondence(t *testing.T) {
	index, contents := validGraph()
	delete(contents, "REQ-003")
	contents["REQ-009"] = &Requirement{ID: "REQ-009", Title: "Orphan"}

	errs := ValidateGraph(index, contents)
	assert.ElementsMatch(t, []ErrorKind{ErrMissingFile, ErrOrphanFile}, kinds(errs))
}

func TestValidateGraphReportsCompletedAtIncoherence(t *testing.T) {
	index, contents := validGraph()
	now := time.Now().UTC()

	meta := index.Requirements["REQ-001"]
	meta.Status = StatusComplete
	index.Requirements["REQ-001"] = meta

	stamped := index.Requirements["REQ-002"]
	stamped.CompletedAt = &now
	index.Requirements["REQ-002"] = stamped

	errs := ValidateGraph(index, contents)
	require.Len(t, errs, 2)
	assert.Equal(t, []ErrorKind{ErrSchema, ErrSchema}, kinds(errs))
}

func TestValidateGraphCollectsAllErrors(t *testing.T) {
	index, contents := validGraph()

	meta := index.Requirements["REQ-001"]
	meta.Group = "backend"
	meta.DependsOn = []string{"REQ-404"}
	index.Requirements["REQ-001"] = meta
	delete(contents, "REQ-002")

	errs := ValidateGraph(index, contents)
	assert.ElementsMatch(t, []ErrorKind{ErrUnknownGroup, ErrDanglingDependency, ErrMissingFile}, kinds(errs))
}

func TestDetectFileConflicts(t *testing.T) {
	tests := []struct {
		name      string
		filesA    []string
		filesB    []string
		dependent bool
		wantKinds []ErrorKind
	}{
		{
			name:      "exact path collision",
			filesA:    []string{"src/api/users.ts"},
			filesB:    []string{"src/api/users.ts"},
			wantKinds: []ErrorKind{ErrFileConflict},
		},
		{
			name:      "glob collision",
			filesA:    []string{"src/api/**"},
			filesB:    []string{"src/api/users.ts"},
			wantKinds: []ErrorKind{ErrFileConflict},
		},
		{
			name:      "disjoint scopes",
			filesA:    []string{"src/api/users.ts"},
			filesB:    []string{"src/web/home.tsx"},
			wantKinds: nil,
		},
		{
			name:      "dependency edge suppresses conflict",
			filesA:    []string{"src/api/users.ts"},
			filesB:    []string{"src/api/users.ts"},
			dependent: true,
			wantKinds: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metaB := RequirementMeta{Group: "core", Status: StatusPending}
			if tt.dependent {
				metaB.DependsOn = []string{"REQ-A"}
			}
			index := &Index{
				Groups: map[string]Group{"core": {Name: "core"}},
				Requirements: map[string]RequirementMeta{
					"REQ-A": {Group: "core", Status: StatusPending},
					"REQ-B": metaB,
				},
			}
			contents := map[string]*Requirement{
				"REQ-A": {ID: "REQ-A", Title: "A", Files: tt.filesA},
				"REQ-B": {ID: "REQ-B", Title: "B", Files: tt.filesB},
			}

			errs := ValidateGraph(index, contents)
			assert.Equal(t, tt.wantKinds, kinds(errs))
			if len(errs) > 0 {
				assert.Equal(t, []string{"REQ-A", "REQ-B"}, errs[0].IDs)
			}
		})
	}
}
