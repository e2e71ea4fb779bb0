package notify

// IsRelevant reports whether ev concerns user: the user created the item, is
// its current assignee, or watches it. An unknown user never matches.
func IsRelevant(ev Event, user string) bool {
	if user == "" {
		return false
	}
	if ev.Item.Creator == user || ev.Item.Assignee == user {
		return true
	}
	for _, w := range ev.Item.Watchers {
		if w == user {
			return true
		}
	}
	for _, w := range ev.Watchers {
		if w == user {
			return true
		}
	}
	return false
}
