package session

import "strings"

// ClassifyTitle infers a session type from the free-text booking title. This
// is best-effort: unknown titles fall back to coaching_followup rather than
// failing the booking.
func ClassifyTitle(title string) SessionType {
	lower := strings.ToLower(title)

	switch {
	case strings.Contains(lower, "discovery"),
		strings.Contains(lower, "découverte"),
		strings.Contains(lower, "decouverte"):
		return TypeDiscovery
	case strings.Contains(lower, "suivi"),
		strings.Contains(lower, "follow"):
		return TypeCoachingFollowup
	case strings.Contains(lower, "coaching"):
		return TypeCoaching
	default:
		return TypeCoachingFollowup
	}
}
