package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/forge-conductor/pkg/graph"
)

func indexWith(statuses map[string]graph.Status, deps map[string][]string) *graph.Index {
	index := &graph.Index{
		Groups:       map[string]graph.Group{"core": {Name: "core"}},
		Requirements: map[string]graph.RequirementMeta{},
	}
	for id, status := range statuses {
		index.Requirements[id] = graph.RequirementMeta{
			Group:     "core",
			Status:    status,
			DependsOn: deps[id],
		}
	}
	return index
}

func TestFindReady(t *testing.T) {
	tests := []struct {
		name     string
		statuses map[string]graph.Status
		deps     map[string][]string
		want     []string
	}{
		{
			name: "no dependencies means all pending are ready",
			statuses: map[string]graph.Status{
				"REQ-002": graph.StatusPending,
				"REQ-001": graph.StatusPending,
			},
			want: []string{"REQ-001", "REQ-002"},
		},
		{
			name: "incomplete dependency gates the dependent",
			statuses: map[string]graph.Status{
				"REQ-001": graph.StatusPending,
				"REQ-002": graph.StatusPending,
			},
			deps: map[string][]string{"REQ-002": {"REQ-001"}},
			want: []string{"REQ-001"},
		},
		{
			name: "all dependencies complete releases the dependent",
			statuses: map[string]graph.Status{
				"REQ-001": graph.StatusComplete,
				"REQ-002": graph.StatusComplete,
				"REQ-003": graph.StatusPending,
			},
			deps: map[string][]string{"REQ-003": {"REQ-001", "REQ-002"}},
			want: []string{"REQ-003"},
		},
		{
			name: "one complete one pending keeps the dependent gated",
			statuses: map[string]graph.Status{
				"REQ-001": graph.StatusComplete,
				"REQ-002": graph.StatusPending,
				"REQ-003": graph.StatusPending,
			},
			deps: map[string][]string{"REQ-003": {"REQ-001", "REQ-002"}},
			want: []string{"REQ-002"},
		},
		{
			name: "in-progress and discovered are not ready",
			statuses: map[string]graph.Status{
				"REQ-001": graph.StatusInProgress,
				"REQ-002": graph.StatusDiscovered,
			},
			want: nil,
		},
		{
			name: "dependency on a missing id never releases",
			statuses: map[string]graph.Status{
				"REQ-001": graph.StatusPending,
			},
			deps: map[string][]string{"REQ-001": {"REQ-404"}},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindReady(indexWith(tt.statuses, tt.deps))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindReadyGrowsMonotonically(t *testing.T) {
	index := indexWith(map[string]graph.Status{
		"REQ-001": graph.StatusPending,
		"REQ-002": graph.StatusPending,
	}, map[string][]string{"REQ-002": {"REQ-001"}})

	assert.Equal(t, []string{"REQ-001"}, FindReady(index))

	meta := index.Requirements["REQ-001"]
	meta.Status = graph.StatusComplete
	index.Requirements["REQ-001"] = meta

	assert.Equal(t, []string{"REQ-002"}, FindReady(index))
}

func TestTransitiveDeps(t *testing.T) {
	index := indexWith(map[string]graph.Status{
		"REQ-001": graph.StatusComplete,
		"REQ-002": graph.StatusComplete,
		"REQ-003": graph.StatusComplete,
		"REQ-004": graph.StatusPending,
	}, map[string][]string{
		"REQ-002": {"REQ-001"},
		"REQ-003": {"REQ-001"},
		"REQ-004": {"REQ-002", "REQ-003"},
	})

	deps, err := TransitiveDeps(index, "REQ-004")
	require.NoError(t, err)
	assert.Equal(t, []string{"REQ-001", "REQ-002", "REQ-003"}, deps)

	deps, err = TransitiveDeps(index, "REQ-001")
	require.NoError(t, err)
	assert.Empty(t, deps)

	_, err = TransitiveDeps(index, "REQ-404")
	assert.Error(t, err)
}

func TestIsProjectComplete(t *testing.T) {
	tests := []struct {
		name     string
		statuses map[string]graph.Status
		want     bool
	}{
		{
			name:     "empty project is complete",
			statuses: map[string]graph.Status{},
			want:     true,
		},
		{
			name: "pending holds the project open",
			statuses: map[string]graph.Status{
				"REQ-001": graph.StatusComplete,
				"REQ-002": graph.StatusPending,
			},
			want: false,
		},
		{
			name: "in-progress holds the project open",
			statuses: map[string]graph.Status{
				"REQ-001": graph.StatusInProgress,
			},
			want: false,
		},
		{
			name: "discovered and rejected do not hold the project open",
			statuses: map[string]graph.Status{
				"REQ-001": graph.StatusComplete,
				"REQ-002": graph.StatusDiscovered,
				"REQ-003": graph.StatusRejected,
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsProjectComplete(indexWith(tt.statuses, nil)))
		})
	}
}

func TestBuildRequirementContext(t *testing.T) {
	index := indexWith(map[string]graph.Status{
		"REQ-001": graph.StatusComplete,
		"REQ-002": graph.StatusPending,
	}, map[string][]string{"REQ-002": {"REQ-001"}})

	contents := map[string]*graph.Requirement{
		"REQ-001": {
			ID:         "REQ-001",
			Title:      "Cart model",
			Files:      []string{"src/cart/model.ts"},
			Acceptance: []string{"cart items persist"},
		},
		"REQ-002": {ID: "REQ-002", Title: "Cart totals"},
	}

	entries, err := BuildRequirementContext(index, contents, "REQ-002")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "REQ-001", entries[0].ID)
	assert.Equal(t, "Cart model", entries[0].Title)
	assert.Equal(t, graph.StatusComplete, entries[0].Status)
	assert.Equal(t, []string{"cart items persist"}, entries[0].Acceptance)

	// A dependency without loaded content is an error, not a silent gap.
	delete(contents, "REQ-001")
	_, err = BuildRequirementContext(index, contents, "REQ-002")
	assert.Error(t, err)
}
