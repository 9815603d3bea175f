package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/cartographer/api/schemas"
)

// assignLocalID derives a local id from an element's display name and
// guarantees uniqueness within the screen by suffixing a counter on
// collision. Uniqueness is per screen only; the same local id appearing on
// other screens is expected.
func (g *Graph) assignLocalID(screen *schemas.Screen, displayName string) string {
	base := Slugify(displayName)
	if base == "" {
		base = "element"
	}
	if _, taken := screen.Nodes[base]; !taken {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if _, taken := screen.Nodes[candidate]; !taken {
			return candidate
		}
	}
}

// DeriveScreenID names the screen revealed by activating an element, used
// when the activator does not report a destination id itself.
func DeriveScreenID(displayName string) string {
	slug := Slugify(displayName)
	if slug == "" {
		slug = "screen"
	}
	return slug + "_click"
}

// Slugify lowercases a display name and squashes every run of
// non-alphanumeric characters into a single underscore.
func Slugify(name string) string {
	var b strings.Builder
	lastUnderscore := true // suppress a leading underscore
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func sortedKeys(nodes map[string]*schemas.Node) []string {
	keys := make([]string, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// orderScreens reconstructs a deterministic first-seen order when the
// serialized order is missing: root first, then by creation time, ties
// broken by id.
func orderScreens(doc *schemas.ExplorationGraph) []string {
	ids := make([]string, 0, len(doc.Screens))
	for id := range doc.Screens {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := doc.Screens[ids[i]], doc.Screens[ids[j]]
		if a.Parent == nil != (b.Parent == nil) {
			return a.Parent == nil
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return ids[i] < ids[j]
	})
	return ids
}
