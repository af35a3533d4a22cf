// Package normalize implements the team-name normalizer from spec.md §4.5:
// a finite alias table plus whitespace collapsing, applied uniformly to
// every team name the extractor produces so the same club never appears
// under two spellings across runs.
package normalize

import "strings"

// defaultAliases seeds the known long-name -> short-form mapping observed
// on the upstream schedule pages (spec.md §4.5: "at least one alias is
// known at launch").
var defaultAliases = map[string]string{
	"new york city football club": "NYCFC",
}

// Normalizer applies whitespace collapsing and alias substitution to team
// names. It is stateless and safe for concurrent use.
type Normalizer struct {
	aliases map[string]string
}

// New builds a Normalizer seeded with the default alias table merged with
// any extra aliases supplied (e.g. loaded from config), extra taking
// precedence on key collision.
func New(extra map[string]string) *Normalizer {
	aliases := make(map[string]string, len(defaultAliases)+len(extra))
	for k, v := range defaultAliases {
		aliases[k] = v
	}
	for k, v := range extra {
		aliases[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &Normalizer{aliases: aliases}
}

// Apply collapses internal whitespace, trims, and substitutes a known
// alias if one exists for the collapsed name's lowercase form.
func (n *Normalizer) Apply(name string) string {
	collapsed := collapseWhitespace(name)
	if alias, ok := n.aliases[strings.ToLower(collapsed)]; ok {
		return alias
	}
	return collapsed
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
