package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveContract_LayerPrecedence(t *testing.T) {
	defaults := map[string]any{
		"tone":     "professional",
		"audience": "general",
		"formats":  []any{"summary", "article"},
	}
	preset := map[string]any{
		"tone": "playful",
	}
	overrides := map[string]any{
		"audience": "developers",
	}

	resolved := ResolveContract(defaults, preset, overrides)

	assert.Equal(t, "playful", resolved["tone"])
	assert.Equal(t, "developers", resolved["audience"])
	assert.Equal(t, []any{"summary", "article"}, resolved["formats"])
}

func TestResolveContract_NestedMapsMerge(t *testing.T) {
	defaults := map[string]any{
		"drafting": map[string]any{
			"temperature":  0.7,
			"max_variants": 1,
		},
	}
	overrides := map[string]any{
		"drafting": map[string]any{
			"temperature": 0.2,
		},
	}

	resolved := ResolveContract(defaults, nil, overrides)

	drafting, ok := resolved["drafting"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.2, drafting["temperature"])
	// Keys the override did not touch survive from the lower layer.
	assert.Equal(t, 1, drafting["max_variants"])
}

func TestResolveContract_ListsReplaceWholesale(t *testing.T) {
	defaults := map[string]any{
		"formats": []any{"summary", "article", "social_post"},
	}
	overrides := map[string]any{
		"formats": []any{"newsletter"},
	}

	resolved := ResolveContract(defaults, nil, overrides)
	assert.Equal(t, []any{"newsletter"}, resolved["formats"])
}

func TestResolveContract_DoesNotMutateInputs(t *testing.T) {
	defaults := map[string]any{
		"review": map[string]any{"min_quality_score": 0.6},
	}
	overrides := map[string]any{
		"review": map[string]any{"min_quality_score": 0.9},
	}

	_ = ResolveContract(defaults, nil, overrides)

	review := defaults["review"].(map[string]any)
	assert.Equal(t, 0.6, review["min_quality_score"])
}

func TestResolveContract_AllLayersNil(t *testing.T) {
	resolved := ResolveContract(nil, nil, nil)
	require.NotNil(t, resolved)
	assert.Empty(t, resolved)
}

func TestDefaultContract_HasCoreFields(t *testing.T) {
	contract := DefaultContract()
	assert.Equal(t, "professional", contract["tone"])
	assert.Contains(t, contract, "formats")
	assert.Contains(t, contract, "drafting")
}
