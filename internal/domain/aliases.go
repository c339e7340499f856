package domain

import (
	"regexp"
	"strings"
)

var (
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
)

// NameKey folds a property label to the form used for alias lookups:
// lowercase, punctuation dropped, whitespace collapsed.
func NameKey(name string) string {
	k := strings.ToLower(strings.TrimSpace(name))
	k = nonAlnumRegex.ReplaceAllString(k, " ")
	k = multiSpaceRegex.ReplaceAllString(k, " ")
	return strings.TrimSpace(k)
}

// AliasTable maps source-specific spellings to one standard property name.
// It is read-only once built.
type AliasTable struct {
	byKey map[string]string
}

// NewAliasTable builds a table from standard name -> aliases. The standard
// name is always an alias of itself.
func NewAliasTable(entries map[string][]string) AliasTable {
	t := AliasTable{byKey: make(map[string]string, len(entries)*2)}
	for std, aliases := range entries {
		std = strings.TrimSpace(std)
		if std == "" {
			continue
		}
		t.byKey[NameKey(std)] = std
		for _, a := range aliases {
			if k := NameKey(a); k != "" {
				t.byKey[k] = std
			}
		}
	}
	return t
}

// Lookup returns the standard name registered for label, if any.
func (t AliasTable) Lookup(label string) (string, bool) {
	std, ok := t.byKey[NameKey(label)]
	return std, ok
}

func (t AliasTable) Len() int { return len(t.byKey) }
