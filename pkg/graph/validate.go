package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// ErrorKind classifies a structural defect found by ValidateGraph.
type ErrorKind string

const (
	ErrCycle              ErrorKind = "cycle"
	ErrGroupCycle         ErrorKind = "group_cycle"
	ErrDanglingDependency ErrorKind = "dangling_dependency"
	ErrUnknownGroup       ErrorKind = "unknown_group"
	ErrMissingFile        ErrorKind = "missing_file"
	ErrOrphanFile         ErrorKind = "orphan_file"
	ErrFileConflict       ErrorKind = "file_conflict"
	ErrSchema             ErrorKind = "schema"
)

// ValidationError is one structural defect. IDs carries the requirement or
// group ids involved; for cycles it is the exact cycle path in order.
type ValidationError struct {
	Kind    ErrorKind
	Message string
	IDs     []string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ValidateGraph checks the index and the loaded requirement contents for
// every structural defect at once. It never short-circuits: the caller gets
// the full list and decides what to do. The store does not auto-repair.
func ValidateGraph(index *Index, contents map[string]*Requirement) []ValidationError {
	var errs []ValidationError

	errs = append(errs, validateStatuses(index)...)
	errs = append(errs, validateGroups(index)...)
	errs = append(errs, validateEdges(index)...)
	errs = append(errs, validateFiles(index, contents)...)
	errs = append(errs, detectRequirementCycles(index)...)
	errs = append(errs, detectGroupCycles(index)...)
	errs = append(errs, detectFileConflicts(index, contents)...)

	return errs
}

func validateStatuses(index *Index) []ValidationError {
	var errs []ValidationError
	for _, id := range sortedRequirementIDs(index) {
		meta := index.Requirements[id]
		if !meta.Status.Valid() {
			errs = append(errs, ValidationError{
				Kind:    ErrSchema,
				Message: fmt.Sprintf("requirement %s has unknown status %q", id, meta.Status),
				IDs:     []string{id},
			})
		}
		if meta.CompletedAt != nil && meta.Status != StatusComplete {
			errs = append(errs, ValidationError{
				Kind:    ErrSchema,
				Message: fmt.Sprintf("requirement %s has completedAt set but status %q", id, meta.Status),
				IDs:     []string{id},
			})
		}
		if meta.Status == StatusComplete && meta.CompletedAt == nil {
			errs = append(errs, ValidationError{
				Kind:    ErrSchema,
				Message: fmt.Sprintf("requirement %s is complete but has no completedAt", id),
				IDs:     []string{id},
			})
		}
	}
	return errs
}

func validateGroups(index *Index) []ValidationError {
	var errs []ValidationError
	for _, id := range sortedRequirementIDs(index) {
		meta := index.Requirements[id]
		if _, ok := index.Groups[meta.Group]; !ok {
			errs = append(errs, ValidationError{
				Kind:    ErrUnknownGroup,
				Message: fmt.Sprintf("requirement %s declares unknown group %q", id, meta.Group),
				IDs:     []string{id},
			})
		}
	}
	return errs
}

func validateEdges(index *Index) []ValidationError {
	var errs []ValidationError

	for _, id := range sortedRequirementIDs(index) {
		for _, dep := range index.Requirements[id].DependsOn {
			if _, ok := index.Requirements[dep]; !ok {
				errs = append(errs, ValidationError{
					Kind:    ErrDanglingDependency,
					Message: fmt.Sprintf("requirement %s depends on unknown id %s", id, dep),
					IDs:     []string{id, dep},
				})
			}
		}
	}

	for _, name := range sortedGroupNames(index) {
		for _, dep := range index.Groups[name].DependsOn {
			if _, ok := index.Groups[dep]; !ok {
				errs = append(errs, ValidationError{
					Kind:    ErrDanglingDependency,
					Message: fmt.Sprintf("group %s depends on unknown group %s", name, dep),
					IDs:     []string{name, dep},
				})
			}
		}
	}

	return errs
}

// validateFiles checks the 1:1 correspondence between index entries and
// content files.
func validateFiles(index *Index, contents map[string]*Requirement) []ValidationError {
	var errs []ValidationError

	for _, id := range sortedRequirementIDs(index) {
		if _, ok := contents[id]; !ok {
			errs = append(errs, ValidationError{
				Kind:    ErrMissingFile,
				Message: fmt.Sprintf("requirement %s is in the index but has no content file", id),
				IDs:     []string{id},
			})
		}
	}

	contentIDs := make([]string, 0, len(contents))
	for id := range contents {
		contentIDs = append(contentIDs, id)
	}
	sort.Strings(contentIDs)
	for _, id := range contentIDs {
		if _, ok := index.Requirements[id]; !ok {
			errs = append(errs, ValidationError{
				Kind:    ErrOrphanFile,
				Message: fmt.Sprintf("content file for %s has no index entry", id),
				IDs:     []string{id},
			})
		}
	}

	return errs
}

// dfsColor is the tri-state marker used for cycle detection.
type dfsColor int

const (
	colorUnvisited dfsColor = iota
	colorInProgress
	colorDone
)

// detectRequirementCycles runs a three-state depth-first search over the
// requirement dependency edges and reconstructs the exact path of every
// cycle it finds.
func detectRequirementCycles(index *Index) []ValidationError {
	adjacency := make(map[string][]string, len(index.Requirements))
	for id, meta := range index.Requirements {
		for _, dep := range meta.DependsOn {
			if _, ok := index.Requirements[dep]; ok {
				adjacency[id] = append(adjacency[id], dep)
			}
		}
		sort.Strings(adjacency[id])
	}

	return findCycles(sortedRequirementIDs(index), adjacency, ErrCycle, "requirement")
}

func detectGroupCycles(index *Index) []ValidationError {
	adjacency := make(map[string][]string, len(index.Groups))
	for name, group := range index.Groups {
		for _, dep := range group.DependsOn {
			if _, ok := index.Groups[dep]; ok {
				adjacency[name] = append(adjacency[name], dep)
			}
		}
		sort.Strings(adjacency[name])
	}

	return findCycles(sortedGroupNames(index), adjacency, ErrGroupCycle, "group")
}

func findCycles(roots []string, adjacency map[string][]string, kind ErrorKind, noun string) []ValidationError {
	colors := make(map[string]dfsColor, len(roots))
	var stack []string
	var errs []ValidationError

	var visit func(node string)
	visit = func(node string) {
		colors[node] = colorInProgress
		stack = append(stack, node)

		for _, next := range adjacency[node] {
			switch colors[next] {
			case colorUnvisited:
				visit(next)
			case colorInProgress:
				// Back edge: the cycle is the stack suffix starting at next.
				start := 0
				for i, n := range stack {
					if n == next {
						start = i
						break
					}
				}
				cycle := append([]string(nil), stack[start:]...)
				errs = append(errs, ValidationError{
					Kind:    kind,
					Message: fmt.Sprintf("%s dependency cycle: %s", noun, strings.Join(append(cycle, next), " -> ")),
					IDs:     cycle,
				})
			}
		}

		stack = stack[:len(stack)-1]
		colors[node] = colorDone
	}

	for _, root := range roots {
		if colors[root] == colorUnvisited {
			visit(root)
		}
	}

	return errs
}

// detectFileConflicts flags same-group requirement pairs with no direct
// dependency edge in either direction whose declared file scopes collide.
// Scope entries are compared literally and as glob patterns, so a
// requirement scoped to src/api/**.ts collides with one scoped to
// src/api/users.ts.
func detectFileConflicts(index *Index, contents map[string]*Requirement) []ValidationError {
	byGroup := make(map[string][]string)
	for id, meta := range index.Requirements {
		if _, ok := contents[id]; !ok {
			continue
		}
		byGroup[meta.Group] = append(byGroup[meta.Group], id)
	}

	groups := make([]string, 0, len(byGroup))
	for name := range byGroup {
		groups = append(groups, name)
	}
	sort.Strings(groups)

	var errs []ValidationError
	for _, name := range groups {
		ids := byGroup[name]
		sort.Strings(ids)

		// conflicts maps the colliding path to the set of ids touching it.
		conflicts := make(map[string]map[string]bool)
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				a, b := ids[i], ids[j]
				if directlyDependent(index, a, b) {
					continue
				}
				for _, path := range scopeOverlap(contents[a].Files, contents[b].Files) {
					if conflicts[path] == nil {
						conflicts[path] = make(map[string]bool)
					}
					conflicts[path][a] = true
					conflicts[path][b] = true
				}
			}
		}

		paths := make([]string, 0, len(conflicts))
		for path := range conflicts {
			paths = append(paths, path)
		}
		sort.Strings(paths)

		for _, path := range paths {
			involved := make([]string, 0, len(conflicts[path]))
			for id := range conflicts[path] {
				involved = append(involved, id)
			}
			sort.Strings(involved)
			errs = append(errs, ValidationError{
				Kind: ErrFileConflict,
				Message: fmt.Sprintf("requirements %s in group %s touch %s without a dependency ordering",
					strings.Join(involved, ", "), name, path),
				IDs: involved,
			})
		}
	}

	return errs
}

func directlyDependent(index *Index, a, b string) bool {
	for _, dep := range index.Requirements[a].DependsOn {
		if dep == b {
			return true
		}
	}
	for _, dep := range index.Requirements[b].DependsOn {
		if dep == a {
			return true
		}
	}
	return false
}

// scopeOverlap returns the paths where two file scopes collide. An exact
// match always collides; otherwise each entry is tried as a glob against
// the other side's entries, and the matched literal path is reported.
func scopeOverlap(a, b []string) []string {
	seen := make(map[string]bool)
	var paths []string

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}

	for _, pa := range a {
		for _, pb := range b {
			if pa == pb {
				add(pa)
				continue
			}
			if g, err := glob.Compile(pa, '/'); err == nil && g.Match(pb) {
				add(pb)
			}
			if g, err := glob.Compile(pb, '/'); err == nil && g.Match(pa) {
				add(pa)
			}
		}
	}

	sort.Strings(paths)
	return paths
}

func sortedRequirementIDs(index *Index) []string {
	ids := make([]string, 0, len(index.Requirements))
	for id := range index.Requirements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedGroupNames(index *Index) []string {
	names := make([]string, 0, len(index.Groups))
	for name := range index.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
