package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply_CollapsesInternalWhitespace(t *testing.T) {
	n := New(nil)
	assert.Equal(t, "FC Alpha United", n.Apply("  FC   Alpha  United "))
}

func TestApply_KnownAliasSubstituted(t *testing.T) {
	n := New(nil)
	assert.Equal(t, "NYCFC", n.Apply("New York City Football Club"))
}

func TestApply_ExtraAliasOverridesDefault(t *testing.T) {
	n := New(map[string]string{"New York City Football Club": "NYC FC"})
	assert.Equal(t, "NYC FC", n.Apply("new york city football club"))
}

func TestApply_UnknownNamePassesThroughUnchanged(t *testing.T) {
	n := New(nil)
	assert.Equal(t, "Somewhere SC", n.Apply("Somewhere SC"))
}
