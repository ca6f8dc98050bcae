package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRequirement(t *testing.T) {
	req := &Requirement{
		ID:         "REQ-001",
		Title:      "User login endpoint",
		DependsOn:  []string{"REQ-000"},
		Files:      []string{"src/api/login.ts"},
		Acceptance: []string{"POST /login returns a session token"},
		Body:       "Implement the login endpoint.\n\nUse the existing session store.\n",
	}

	data, err := EncodeRequirement(req)
	require.NoError(t, err)

	decoded, err := DecodeRequirement(data)
	require.NoError(t, err)

	assert.Equal(t, req.ID, decoded.ID)
	assert.Equal(t, req.Title, decoded.Title)
	assert.Equal(t, req.DependsOn, decoded.DependsOn)
	assert.Equal(t, req.Files, decoded.Files)
	assert.Equal(t, req.Acceptance, decoded.Acceptance)
	assert.Equal(t, req.Body, decoded.Body)
}

func TestDecodeRequirementRejectsMalformedDocuments(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "no front matter",
			input: "just a markdown file\n",
		},
		{
			name:  "unterminated front matter",
			input: "---\nid: REQ-001\ntitle: Login\n",
		},
		{
			name:  "missing id",
			input: "---\ntitle: Login\n---\n",
		},
		{
			name:  "missing title",
			input: "---\nid: REQ-001\n---\n",
		},
		{
			name:  "invalid yaml header",
			input: "---\nid: [unclosed\n---\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequirement([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestEncodeRequirementRequiresHeader(t *testing.T) {
	_, err := EncodeRequirement(&Requirement{Title: "no id"})
	assert.Error(t, err)

	_, err = EncodeRequirement(&Requirement{ID: "REQ-001"})
	assert.Error(t, err)
}

func TestSlugifyTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"User login endpoint", "user-login-endpoint"},
		{"  Spaces   everywhere  ", "spaces-everywhere"},
		{"API v2: pagination & filters", "api-v2-pagination-filters"},
		{"---", ""},
		{"Already-Slugged", "already-slugged"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SlugifyTitle(tt.title), "title %q", tt.title)
	}
}

func TestRequirementFileName(t *testing.T) {
	assert.Equal(t, "REQ-001-user-login.md", RequirementFileName("REQ-001", "User Login"))
	assert.Equal(t, "REQ-002.md", RequirementFileName("REQ-002", "!!!"))
}
