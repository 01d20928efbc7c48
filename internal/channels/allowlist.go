package channels

import "strings"

// NormalizeAllowFrom canonicalizes an allow-from list: entries are trimmed,
// a leading "@" is stripped, empties dropped, and duplicates removed.
// Every gating comparison operates on a normalized list; raw config values
// are never compared directly.
func NormalizeAllowFrom(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		e = strings.TrimSpace(e)
		e = strings.TrimPrefix(e, "@")
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// MatchAllowFrom reports whether the sender appears in a normalized list.
// An empty list matches everyone: emptiness means "no restriction recorded by
// this primitive"; fail-open/fail-closed composition belongs to callers.
// senderID is compared exactly; senderName case-insensitively.
func MatchAllowFrom(list []string, senderID, senderName string) bool {
	if len(list) == 0 {
		return true
	}
	for _, entry := range list {
		if entry == senderID {
			return true
		}
		if senderName != "" && strings.EqualFold(entry, senderName) {
			return true
		}
	}
	return false
}

// GroupSenderAllowed evaluates the nested group-admission decision over a
// channel-wide list (outer) and a specific-group list (inner), both already
// normalized. Group traffic is sensitive by default: when neither list is
// configured nobody is admitted, and when both are configured the sender must
// match both; a group-level entry does not widen channel-level access.
func GroupSenderAllowed(outer, inner []string, senderID, senderName string) bool {
	if len(outer) == 0 && len(inner) == 0 {
		return false
	}
	if len(outer) > 0 && !MatchAllowFrom(outer, senderID, senderName) {
		return false
	}
	if len(inner) > 0 && !MatchAllowFrom(inner, senderID, senderName) {
		return false
	}
	return true
}

// MergeAllowFrom unions the static configuration list with store-backed
// entries, returning a normalized result.
func MergeAllowFrom(static, stored []string) []string {
	merged := make([]string, 0, len(static)+len(stored))
	merged = append(merged, static...)
	merged = append(merged, stored...)
	return NormalizeAllowFrom(merged)
}
