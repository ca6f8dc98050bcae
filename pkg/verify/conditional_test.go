package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWorktreeFile(t *testing.T, dir, rel string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte("content\n"), 0640))
}

func TestCoverageGate(t *testing.T) {
	tests := []struct {
		name       string
		files      []string
		present    []string
		wantPassed bool
	}{
		{
			name:       "literal path present",
			files:      []string{"src/cart/totals.ts"},
			present:    []string{"src/cart/totals.ts"},
			wantPassed: true,
		},
		{
			name:       "glob pattern matched",
			files:      []string{"src/api/**"},
			present:    []string{"src/api/users.ts"},
			wantPassed: true,
		},
		{
			name:       "declared scope missing",
			files:      []string{"src/cart/totals.ts"},
			present:    []string{"src/cart/model.ts"},
			wantPassed: false,
		},
		{
			name:       "one of two scopes missing",
			files:      []string{"src/a.ts", "src/b.ts"},
			present:    []string{"src/a.ts"},
			wantPassed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, rel := range tt.present {
				writeWorktreeFile(t, dir, rel)
			}

			gate := NewCoverageGate(Scope{Files: tt.files})
			result := gate.Run(context.Background(), dir)

			assert.Equal(t, tt.wantPassed, result.Passed)
		})
	}
}

func TestCoverageGateEmptyScopePassesWithWarning(t *testing.T) {
	gate := NewCoverageGate(Scope{})
	result := gate.Run(context.Background(), t.TempDir())

	assert.True(t, result.Passed)
	assert.NotEmpty(t, result.Warnings)
}

func TestCoverageGateIgnoresNodeModules(t *testing.T) {
	dir := t.TempDir()
	writeWorktreeFile(t, dir, "node_modules/pkg/index.ts")

	gate := NewCoverageGate(Scope{Files: []string{"**/index.ts"}})
	result := gate.Run(context.Background(), dir)

	assert.False(t, result.Passed)
}

func TestProbeGate(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantPassed bool
	}{
		{"200 passes", http.StatusOK, true},
		{"404 still passes", http.StatusNotFound, true},
		{"500 fails", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			gate := NewProbeGate(server.URL, 0)
			result := gate.Run(context.Background(), t.TempDir())

			assert.Equal(t, tt.wantPassed, result.Passed)
		})
	}
}

func TestProbeGateUnreachableServer(t *testing.T) {
	gate := NewProbeGate("http://127.0.0.1:1", 0)
	result := gate.Run(context.Background(), t.TempDir())

	assert.False(t, result.Passed)
	require.NotEmpty(t, result.Errors)
}

func TestVisualGateWithoutPreview(t *testing.T) {
	gate := NewVisualGate(nil, 0)
	result := gate.Run(context.Background(), t.TempDir())

	assert.False(t, result.Passed)
	assert.True(t, gate.Conditional())
}
