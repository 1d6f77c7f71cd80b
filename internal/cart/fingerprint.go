package cart

import (
	"sort"
	"strconv"
	"strings"
)

const (
	fingerprintSeparator = "|"
	// noItemToken stands in for a selection whose item id is unknown. It can
	// never collide with a numeric id.
	noItemToken = "none"
)

// Fingerprint returns the canonical identity of a selection: one
// "{attributeSetId}:{itemId}" token per selection, sorted and joined by "|".
// Selection order does not matter.
func Fingerprint(selections []SelectedAttribute) string {
	if len(selections) == 0 {
		return ""
	}
	tokens := make([]string, len(selections))
	for i, sel := range selections {
		item := noItemToken
		if sel.ItemID != nil {
			item = strconv.Itoa(*sel.ItemID)
		}
		tokens[i] = strconv.Itoa(sel.AttributeSetID) + ":" + item
	}
	sort.Strings(tokens)
	return strings.Join(tokens, fingerprintSeparator)
}
