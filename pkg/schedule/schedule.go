// Package schedule derives schedulable work from a graph index snapshot.
// It is pure query logic: nothing here mutates the store.
package schedule

import (
	"fmt"
	"sort"

	"github.com/entrhq/forge-conductor/pkg/graph"
)

// FindReady returns every requirement id that is pending and whose entire
// dependency set is complete. The result is sorted lexicographically so a
// run processes simultaneously-ready requirements in a stable order.
func FindReady(index *graph.Index) []string {
	var ready []string

	for id, meta := range index.Requirements {
		if meta.Status != graph.StatusPending {
			continue
		}

		eligible := true
		for _, dep := range meta.DependsOn {
			depMeta, ok := index.Requirements[dep]
			if !ok || depMeta.Status != graph.StatusComplete {
				eligible = false
				break
			}
		}

		if eligible {
			ready = append(ready, id)
		}
	}

	sort.Strings(ready)
	return ready
}

// TransitiveDeps returns the closure of all ancestor ids of a requirement,
// found by repeated dependency expansion. The target itself is excluded.
func TransitiveDeps(index *graph.Index, id string) ([]string, error) {
	meta, ok := index.Requirements[id]
	if !ok {
		return nil, fmt.Errorf("unknown requirement id: %s", id)
	}

	seen := make(map[string]bool)
	frontier := append([]string(nil), meta.DependsOn...)

	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]

		if seen[next] || next == id {
			continue
		}
		seen[next] = true

		if nextMeta, ok := index.Requirements[next]; ok {
			frontier = append(frontier, nextMeta.DependsOn...)
		}
	}

	deps := make([]string, 0, len(seen))
	for dep := range seen {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps, nil
}

// IsProjectComplete reports whether no requirement remains eligible for
// further work. Discovered and rejected requirements do not hold the
// project open: a discovered requirement enters the flow only once it is
// explicitly promoted to pending.
func IsProjectComplete(index *graph.Index) bool {
	for _, meta := range index.Requirements {
		if meta.Status == graph.StatusPending || meta.Status == graph.StatusInProgress {
			return false
		}
	}
	return true
}

// ContextEntry is the briefing material for one upstream dependency,
// injected into the agent's prompt.
type ContextEntry struct {
	ID         string
	Title      string
	Status     graph.Status
	Files      []string
	Acceptance []string
}

// BuildRequirementContext resolves the transitive dependency set of a
// requirement into briefing entries, excluding the target itself.
func BuildRequirementContext(index *graph.Index, contents map[string]*graph.Requirement, id string) ([]ContextEntry, error) {
	deps, err := TransitiveDeps(index, id)
	if err != nil {
		return nil, err
	}

	entries := make([]ContextEntry, 0, len(deps))
	for _, dep := range deps {
		content, ok := contents[dep]
		if !ok {
			return nil, fmt.Errorf("no content loaded for dependency %s", dep)
		}

		entries = append(entries, ContextEntry{
			ID:         dep,
			Title:      content.Title,
			Status:     index.Requirements[dep].Status,
			Files:      append([]string(nil), content.Files...),
			Acceptance: append([]string(nil), content.Acceptance...),
		})
	}

	return entries, nil
}
