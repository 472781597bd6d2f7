package ranking

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Reason strings surfaced to clients.
const (
	ReasonCompatibleAges  = "Compatible ages"
	ReasonVeryClose       = "Very close geographically"
	ReasonClose           = "Close geographically"
	ReasonRecentlyActive  = "Recently active user"
	ReasonPreferenceMatch = "Matches your preferences"
	ReasonVerified        = "Verified profile"
	ReasonCompleteProfile = "Complete profile"
)

// Distance thresholds for proximity reasons.
const (
	VeryCloseKm = 10.0
	CloseKm     = 25.0
)

// SeekingAny is the looking-for value that matches every relationship type.
const SeekingAny = "any"

// InterestOverlap returns the number of shared interests and the overlap ratio
// |a ∩ b| / max(|a|, |b|). Both inputs are treated as sets.
func InterestOverlap(a, b []string) (shared int, ratio float64) {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0, 0
	}

	for k := range setA {
		if _, ok := setB[k]; ok {
			shared++
		}
	}

	denom := max(len(setA), len(setB))
	return shared, float64(shared) / float64(denom)
}

// InterestScore scales the interest overlap ratio to maxPoints.
// Returns a reason such as "2 interests in common" when anything is shared.
func InterestScore(viewer, candidate []string, maxPoints float64) (float64, string) {
	shared, ratio := InterestOverlap(viewer, candidate)
	if shared == 0 {
		return 0, ""
	}
	return clamp(ratio*maxPoints, 0, maxPoints), interestReason(shared)
}

func interestReason(shared int) string {
	if shared == 1 {
		return "1 interest in common"
	}
	return fmt.Sprintf("%d interests in common", shared)
}

// AgeYears returns the age in whole years at now.
func AgeYears(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

// AgeScore awards points for a small age gap: max(0, (window-|Δ|)/window) * AgeMax.
// Contributes 0 when either birth date is missing.
func AgeScore(viewerBirth, candidateBirth *time.Time, now time.Time, w ProfileWeights) (float64, string) {
	if viewerBirth == nil || candidateBirth == nil || w.AgeWindowYears <= 0 {
		return 0, ""
	}

	diff := math.Abs(float64(AgeYears(*viewerBirth, now) - AgeYears(*candidateBirth, now)))
	score := math.Max(0, (w.AgeWindowYears-diff)/w.AgeWindowYears) * w.AgeMax

	reason := ""
	if diff <= w.CompatibleAgeYears {
		reason = ReasonCompatibleAges
	}
	return clamp(score, 0, w.AgeMax), reason
}

// ProximityScore awards points that fall off linearly to 0 at the proximity radius.
func ProximityScore(distanceKm float64, w ProfileWeights) (float64, string) {
	if distanceKm < 0 {
		distanceKm = 0
	}
	if w.ProximityRadiusKm <= 0 {
		return 0, ""
	}

	score := math.Max(0, (w.ProximityRadiusKm-distanceKm)/w.ProximityRadiusKm) * w.ProximityMax

	reason := ""
	switch {
	case distanceKm <= VeryCloseKm:
		reason = ReasonVeryClose
	case distanceKm <= CloseKm:
		reason = ReasonClose
	}
	return clamp(score, 0, w.ProximityMax), reason
}

// LocationTextMatch reports whether either free-text location contains the
// other, ignoring case. Empty strings never match.
func LocationTextMatch(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// RecencyBonus returns the tiered freshness bonus for a post of the given age.
func RecencyBonus(age time.Duration) float64 {
	switch {
	case age < time.Hour:
		return 10
	case age < 6*time.Hour:
		return 8
	case age < 24*time.Hour:
		return 6
	case age < 72*time.Hour:
		return 4
	default:
		return 2
	}
}

// EngagementScore returns min(likes*0.1,5) + min(comments*0.3,8) + min(shares*0.5,10).
func EngagementScore(likes, comments, shares int) float64 {
	return math.Min(float64(max(likes, 0))*0.1, 5) +
		math.Min(float64(max(comments, 0))*0.3, 8) +
		math.Min(float64(max(shares, 0))*0.5, 10)
}

// AuthorCredibility returns the timeline credibility bonus for a post author.
func AuthorCredibility(verified, premium bool, w TimelineWeights) float64 {
	var score float64
	if verified {
		score += w.Verified
	}
	if premium {
		score += w.Premium
	}
	return score
}

// RecentlyActive reports whether lastActive falls within window before now.
func RecentlyActive(lastActive *time.Time, now time.Time, window time.Duration) bool {
	if lastActive == nil {
		return false
	}
	return now.Sub(*lastActive) <= window
}

// PreferenceMatch reports whether the viewer's looking-for list accepts the
// candidate's relationship type, either directly or through "any".
func PreferenceMatch(lookingFor []string, relationshipType string) bool {
	rt := strings.ToLower(strings.TrimSpace(relationshipType))
	for _, want := range lookingFor {
		want = strings.ToLower(strings.TrimSpace(want))
		if want == SeekingAny || (rt != "" && want == rt) {
			return true
		}
	}
	return false
}

// CollaborativeBonus returns the flat bonus for prior interaction, otherwise a
// popularity bonus of followers/FollowersPerPoint capped at PopularityMax.
func CollaborativeBonus(interacted bool, followers int, w CollaborativeWeights) float64 {
	if interacted {
		return w.Interacted
	}
	if w.FollowersPerPoint <= 0 || followers <= 0 {
		return 0
	}
	return math.Min(float64(followers)/w.FollowersPerPoint, w.PopularityMax)
}

// ContentScore returns the content-quality bonus for a post's media and kind flags.
func ContentScore(hasImage, hasVideo, isEvent, isPremium bool, w TimelineWeights) float64 {
	var score float64
	if hasImage {
		score += w.Image
	}
	if hasVideo {
		score += w.Video
	}
	if isEvent {
		score += w.Event
	}
	if isPremium {
		score += w.PremiumContent
	}
	return score
}

// HashtagScore awards HashtagMatch per hashtag the viewer lists as an interest,
// capped at HashtagMatchMax.
func HashtagScore(hashtags, interests []string, w TimelineWeights) float64 {
	shared, _ := InterestOverlap(hashtags, interests)
	return math.Min(float64(shared)*w.HashtagMatch, w.HashtagMatchMax)
}

// NormalizeTag lower-cases and trims a tag, dropping a leading '#'.
func NormalizeTag(s string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "#")
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = NormalizeTag(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
