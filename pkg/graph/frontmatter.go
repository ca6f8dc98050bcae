package graph

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontMatterFence = "---"

// EncodeRequirement renders a requirement as a markdown document with a
// YAML front matter block.
func EncodeRequirement(req *Requirement) ([]byte, error) {
	if err := validateRequirementHeader(req); err != nil {
		return nil, err
	}

	header, err := yaml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode front matter for %s: %w", req.ID, err)
	}

	var sb strings.Builder
	sb.WriteString(frontMatterFence)
	sb.WriteString("\n")
	sb.Write(header)
	sb.WriteString(frontMatterFence)
	sb.WriteString("\n")
	if req.Body != "" {
		sb.WriteString("\n")
		sb.WriteString(strings.TrimLeft(req.Body, "\n"))
		if !strings.HasSuffix(req.Body, "\n") {
			sb.WriteString("\n")
		}
	}

	return []byte(sb.String()), nil
}

// DecodeRequirement parses a requirement document. The front matter is
// decoded with the YAML parser and then validated against the required
// fields, so a malformed document fails here rather than yielding partial
// fields downstream.
func DecodeRequirement(data []byte) (*Requirement, error) {
	text := string(data)

	if !strings.HasPrefix(text, frontMatterFence+"\n") {
		return nil, fmt.Errorf("requirement document missing front matter block")
	}

	rest := text[len(frontMatterFence)+1:]
	end := strings.Index(rest, "\n"+frontMatterFence)
	if end < 0 {
		return nil, fmt.Errorf("requirement front matter is not terminated")
	}

	header := rest[:end+1]
	body := rest[end+1+len(frontMatterFence):]
	body = strings.TrimPrefix(body, "\n")
	body = strings.TrimPrefix(body, "\n")

	var req Requirement
	if err := yaml.Unmarshal([]byte(header), &req); err != nil {
		return nil, fmt.Errorf("failed to parse requirement front matter: %w", err)
	}

	if err := validateRequirementHeader(&req); err != nil {
		return nil, err
	}

	req.Body = body
	return &req, nil
}

func validateRequirementHeader(req *Requirement) error {
	if strings.TrimSpace(req.ID) == "" {
		return fmt.Errorf("requirement front matter is missing an id")
	}
	if strings.TrimSpace(req.Title) == "" {
		return fmt.Errorf("requirement %s is missing a title", req.ID)
	}
	return nil
}

// SlugifyTitle converts a requirement title into the filename-safe form
// used for requirements/<id>-<title-slug>.md.
func SlugifyTitle(title string) string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(sb.String(), "-")
}

// RequirementFileName returns the canonical file name for a requirement.
func RequirementFileName(id, title string) string {
	slug := SlugifyTitle(title)
	if slug == "" {
		return id + ".md"
	}
	return fmt.Sprintf("%s-%s.md", id, slug)
}
