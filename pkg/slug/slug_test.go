package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	assert.Equal(t, "hawaii_community_foundation", Make("Hawaii Community Foundation"))
	assert.Equal(t, "grants_2026_cycle_1", Make("  Grants: 2026 (cycle #1) "))
	assert.Equal(t, "a_b_c", Make("a-b-c"))
	assert.Equal(t, "", Make("!!!"))
	assert.Equal(t, "", Make(""))
}

// TestMake_Deterministic verifies punctuation and spacing variants of the same
// text slug identically, which is what makes composite IDs usable for dedup.
func TestMake_Deterministic(t *testing.T) {
	variants := []string{
		"Community Health Grant",
		"community   health  grant",
		"Community-Health-Grant",
		"COMMUNITY_HEALTH_GRANT!",
	}
	for _, v := range variants {
		assert.Equal(t, "community_health_grant", Make(v), "variant %q", v)
	}
}

func TestComposite(t *testing.T) {
	assert.Equal(t, "hcf_community_health", Composite("HCF", "Community Health"))
	assert.Equal(t, "a_b_c", Composite("a", "b", "c"))

	// Fewer than two usable parts never yields a composite key.
	assert.Equal(t, "", Composite("only one"))
	assert.Equal(t, "", Composite("HCF", "   "))
	assert.Equal(t, "", Composite())
}
