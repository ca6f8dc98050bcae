package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/entrhq/forge-conductor/pkg/graph"
	"github.com/entrhq/forge-conductor/pkg/schedule"
	"github.com/entrhq/forge-conductor/pkg/verify"
)

func TestBuildPromptFirstAttempt(t *testing.T) {
	req := &graph.Requirement{
		ID:         "REQ-002",
		Title:      "Cart totals",
		Files:      []string{"src/cart/totals.ts"},
		Acceptance: []string{"totals include tax"},
		Body:       "Compute totals from the cart model.",
	}
	deps := []schedule.ContextEntry{
		{
			ID:     "REQ-001",
			Title:  "Cart model",
			Status: graph.StatusComplete,
			Files:  []string{"src/cart/model.ts"},
		},
	}

	prompt := BuildPrompt(req, deps, nil)

	assert.Contains(t, prompt, "Requirement REQ-002: Cart totals")
	assert.Contains(t, prompt, "Compute totals from the cart model.")
	assert.Contains(t, prompt, "src/cart/totals.ts")
	assert.Contains(t, prompt, "totals include tax")
	assert.Contains(t, prompt, "REQ-001: Cart model (complete)")
	assert.Contains(t, prompt, "src/cart/model.ts")
	assert.NotContains(t, prompt, "failed verification")
}

func TestBuildPromptRetryIncludesFeedback(t *testing.T) {
	req := &graph.Requirement{ID: "REQ-002", Title: "Cart totals"}
	lastResult := &verify.Result{Gates: []verify.GateResult{
		{Gate: "tests", Errors: []string{"TestTotals failed"}},
	}}

	prompt := BuildPrompt(req, nil, lastResult)

	assert.Contains(t, prompt, "failed verification")
	assert.Contains(t, prompt, "TestTotals failed")
	assert.Contains(t, prompt, "Fix these failures")
}

func TestBuildPromptOmitsEmptySections(t *testing.T) {
	req := &graph.Requirement{ID: "REQ-001", Title: "Bootstrap"}

	prompt := BuildPrompt(req, nil, nil)

	assert.False(t, strings.Contains(prompt, "Expected file scope"))
	assert.False(t, strings.Contains(prompt, "Acceptance criteria"))
	assert.False(t, strings.Contains(prompt, "upstream requirements"))
}
