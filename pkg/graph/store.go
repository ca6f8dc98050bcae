package graph

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	indexFileName    = "_index.yaml"
	overviewFileName = "overview.md"
	requirementsDir  = "requirements"
)

// Store reads and writes one project's graph under <root>/<slug>/.
// Every mutation goes through an atomic temp-file-and-rename write, so a
// crash mid-write leaves the previous version intact and a reader never
// observes a partially written file.
type Store struct {
	root string
	slug string
}

// NewStore creates a store for the project slug rooted at the given graph
// directory (the directory that contains one subdirectory per slug).
func NewStore(root, slug string) *Store {
	return &Store{root: root, slug: slug}
}

// Dir returns the project's graph directory.
func (s *Store) Dir() string {
	return filepath.Join(s.root, s.slug)
}

func (s *Store) indexPath() string {
	return filepath.Join(s.Dir(), indexFileName)
}

func (s *Store) requirementsPath() string {
	return filepath.Join(s.Dir(), requirementsDir)
}

// InitGraph creates the on-disk layout for a new project and writes the
// initial index and overview. It fails if the project directory already
// exists.
func (s *Store) InitGraph(index *Index, overview string) error {
	dir := s.Dir()
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("graph directory already exists: %s", dir)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check graph directory: %w", err)
	}

	if err := os.MkdirAll(s.requirementsPath(), 0750); err != nil {
		return fmt.Errorf("failed to create graph directory: %w", err)
	}

	if index.CreatedAt.IsZero() {
		index.CreatedAt = time.Now().UTC()
	}

	if err := s.WriteIndex(index); err != nil {
		return err
	}

	if err := s.atomicWrite(filepath.Join(dir, overviewFileName), []byte(overview)); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	return nil
}

// LoadIndex reads and decodes the project index.
func (s *Store) LoadIndex() (*Index, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	var index Index
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}

	if index.Groups == nil {
		index.Groups = make(map[string]Group)
	}
	if index.Requirements == nil {
		index.Requirements = make(map[string]RequirementMeta)
	}

	for id, meta := range index.Requirements {
		if !meta.Status.Valid() {
			return nil, fmt.Errorf("index entry %s has unknown status %q", id, meta.Status)
		}
	}

	return &index, nil
}

// WriteIndex persists the index atomically.
func (s *Store) WriteIndex(index *Index) error {
	data, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	if err := s.atomicWrite(s.indexPath(), data); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}

	return nil
}

// LoadRequirement loads the content file for a single requirement id.
func (s *Store) LoadRequirement(id string) (*Requirement, error) {
	path, err := s.findRequirementFile(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read requirement %s: %w", id, err)
	}

	req, err := DecodeRequirement(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	if req.ID != id {
		return nil, fmt.Errorf("requirement file %s declares id %s", filepath.Base(path), req.ID)
	}

	return req, nil
}

// LoadRequirements loads every requirement content file, keyed by the id
// declared in its front matter.
func (s *Store) LoadRequirements() (map[string]*Requirement, error) {
	entries, err := os.ReadDir(s.requirementsPath())
	if err != nil {
		return nil, fmt.Errorf("failed to list requirements: %w", err)
	}

	reqs := make(map[string]*Requirement, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.requirementsPath(), entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}

		req, err := DecodeRequirement(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", entry.Name(), err)
		}

		if prev, dup := reqs[req.ID]; dup {
			return nil, fmt.Errorf("requirement id %s appears in more than one file (%s)", prev.ID, entry.Name())
		}
		reqs[req.ID] = req
	}

	return reqs, nil
}

// WriteRequirement persists a requirement content file atomically.
func (s *Store) WriteRequirement(req *Requirement) error {
	data, err := EncodeRequirement(req)
	if err != nil {
		return err
	}

	path := filepath.Join(s.requirementsPath(), RequirementFileName(req.ID, req.Title))
	if err := s.atomicWrite(path, data); err != nil {
		return fmt.Errorf("failed to write requirement %s: %w", req.ID, err)
	}

	return nil
}

// LoadProject loads the index, the overview document, and all requirement
// contents together.
func (s *Store) LoadProject() (*ProjectGraph, error) {
	index, err := s.LoadIndex()
	if err != nil {
		return nil, err
	}

	overview, err := os.ReadFile(filepath.Join(s.Dir(), overviewFileName))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read overview: %w", err)
	}

	reqs, err := s.LoadRequirements()
	if err != nil {
		return nil, err
	}

	return &ProjectGraph{
		Index:        index,
		Overview:     string(overview),
		Requirements: reqs,
	}, nil
}

// UpdateRequirementStatus performs a read-modify-write of a single index
// entry. Moving to complete stamps completedAt; any other status clears it.
func (s *Store) UpdateRequirementStatus(id string, status Status) error {
	return s.BatchUpdateStatus(map[string]Status{id: status})
}

// BatchUpdateStatus applies several status transitions in one index write.
func (s *Store) BatchUpdateStatus(updates map[string]Status) error {
	index, err := s.LoadIndex()
	if err != nil {
		return err
	}

	for id, status := range updates {
		meta, ok := index.Requirements[id]
		if !ok {
			return fmt.Errorf("unknown requirement id: %s", id)
		}
		if !status.Valid() {
			return fmt.Errorf("invalid status %q for %s", status, id)
		}

		meta.Status = status
		if status == StatusComplete {
			now := time.Now().UTC()
			meta.CompletedAt = &now
		} else {
			meta.CompletedAt = nil
		}
		index.Requirements[id] = meta
	}

	return s.WriteIndex(index)
}

// AddDiscoveredRequirement records a requirement added mid-run. The index
// entry is written before the content file: a crash between the two writes
// shows up as a missing_file validation error instead of an untracked,
// invisible content file.
func (s *Store) AddDiscoveredRequirement(req *Requirement, group, discoveredBy string) error {
	index, err := s.LoadIndex()
	if err != nil {
		return err
	}

	if _, exists := index.Requirements[req.ID]; exists {
		return fmt.Errorf("requirement %s already exists", req.ID)
	}
	if _, ok := index.Groups[group]; !ok {
		return fmt.Errorf("unknown group: %s", group)
	}

	index.Requirements[req.ID] = RequirementMeta{
		Group:        group,
		Status:       StatusDiscovered,
		DependsOn:    append([]string(nil), req.DependsOn...),
		DiscoveredBy: discoveredBy,
	}

	if err := s.WriteIndex(index); err != nil {
		return err
	}

	return s.WriteRequirement(req)
}

// findRequirementFile resolves the content file for an id. Filenames carry
// a title slug after the id, so the id alone is matched as a prefix.
func (s *Store) findRequirementFile(id string) (string, error) {
	entries, err := os.ReadDir(s.requirementsPath())
	if err != nil {
		return "", fmt.Errorf("failed to list requirements: %w", err)
	}

	var matches []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		if name == id+".md" || strings.HasPrefix(name, id+"-") {
			matches = append(matches, name)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no content file for requirement %s", id)
	case 1:
		return filepath.Join(s.requirementsPath(), matches[0]), nil
	default:
		sort.Strings(matches)
		return "", fmt.Errorf("multiple content files for requirement %s: %s", id, strings.Join(matches, ", "))
	}
}

// atomicWrite writes data to a uniquely named temp file in the target's
// directory and renames it over the target.
func (s *Store) atomicWrite(path string, data []byte) error {
	tempPath := fmt.Sprintf("%s.%s.tmp", path, uuid.New().String()[:8])

	if err := os.WriteFile(tempPath, data, 0640); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
