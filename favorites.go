package installer

import (
	"strings"

	"github.com/samber/lo"
)

// The desktop shell stores pinned launchers as a GVariant string-array
// literal, e.g. "['firefox.desktop', 'org.gnome.Nautilus.desktop']". An empty
// list serializes as "@as []". These helpers round-trip that literal so the
// installer can do a read-modify-write without disturbing existing entries.

const emptyFavorites = "@as []"

// parseFavoritesList parses a GVariant string-array literal into its entries.
func parseFavoritesList(literal string) []string {
	literal = strings.TrimSpace(literal)
	literal = strings.TrimPrefix(literal, "@as")
	literal = strings.TrimSpace(literal)
	literal = strings.TrimPrefix(literal, "[")
	literal = strings.TrimSuffix(literal, "]")
	entries := []string{}
	for _, part := range strings.Split(literal, ",") {
		part = strings.TrimSpace(part)
		part = strings.Trim(part, `'"`)
		if part != "" {
			entries = append(entries, part)
		}
	}
	return entries
}

// formatFavoritesList renders entries back into a GVariant string-array
// literal acceptable to the shell's settings tool.
func formatFavoritesList(entries []string) string {
	if len(entries) == 0 {
		return emptyFavorites
	}
	quoted := lo.Map(entries, func(entry string, _ int) string {
		return "'" + entry + "'"
	})
	return "[" + strings.Join(quoted, ", ") + "]"
}

// appendFavorite adds id to the list unless it is already pinned. The second
// return value reports whether the list changed.
func appendFavorite(entries []string, id string) ([]string, bool) {
	if lo.Contains(entries, id) {
		return entries, false
	}
	return append(entries, id), true
}

// removeFavorite drops id from the list. The second return value reports
// whether the list changed.
func removeFavorite(entries []string, id string) ([]string, bool) {
	if !lo.Contains(entries, id) {
		return entries, false
	}
	return lo.Without(entries, id), true
}
