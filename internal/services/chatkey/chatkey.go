// Package chatkey derives deterministic conversation identifiers.
package chatkey

// ForPair returns the history key shared by a private pair. The smaller id
// always comes first, so both participants compute the identical key no
// matter who initiates.
func ForPair(a, b string) string {
	if a < b {
		return a + "_" + b
	}
	return b + "_" + a
}

// ForGroup returns the history key of a group conversation.
func ForGroup(groupID string) string {
	return groupID
}
