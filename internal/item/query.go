package item

import "strings"

// MatchesCollege reports whether item belongs to the institution. An empty
// collegeID (no session) matches nothing.
func MatchesCollege(item *Item, collegeID string) bool {
	return collegeID != "" && item.CollegeID == collegeID
}

// MatchesSearch does a case-insensitive substring match of query against the
// name, description and tags. The query is not trimmed; only the empty query
// matches everything.
func MatchesSearch(item *Item, query string) bool {
	q := strings.ToLower(query)
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(item.Name), q) ||
		strings.Contains(strings.ToLower(item.Description), q) {
		return true
	}
	for _, tag := range item.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// Visible filters items down to the institution's items matching query,
// keeping their order
func Visible(items []*Item, collegeID, query string) []*Item {
	out := make([]*Item, 0, len(items))
	for _, it := range items {
		if MatchesCollege(it, collegeID) && MatchesSearch(it, query) {
			out = append(out, it)
		}
	}
	return out
}

// FoundBy returns the items reported by userID
func FoundBy(items []*Item, userID string) []*Item {
	out := make([]*Item, 0)
	for _, it := range items {
		if userID != "" && it.FinderID == userID {
			out = append(out, it)
		}
	}
	return out
}

// ClaimedBy returns the items claimed by userID
func ClaimedBy(items []*Item, userID string) []*Item {
	out := make([]*Item, 0)
	for _, it := range items {
		if userID != "" && it.ClaimerID == userID {
			out = append(out, it)
		}
	}
	return out
}
