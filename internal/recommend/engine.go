// Package recommend scores candidate profiles against a viewer and returns
// them best-first with a per-bucket breakdown and short reasons.
package recommend

import (
	"sort"
	"time"
	"unicode/utf8"

	"github.com/onnwee/rendezvous/internal/geo"
	"github.com/onnwee/rendezvous/internal/profile"
	"github.com/onnwee/rendezvous/internal/ranking"
)

// Algorithm is reported alongside recommendation results.
const Algorithm = "compatibility_v1"

// Recommendation is one scored candidate as returned to the client.
// Raw coordinates are never exposed; CoarseGeohash is used instead.
type Recommendation struct {
	ID                  string         `json:"id"`
	DisplayName         string         `json:"displayName"`
	AvatarURL           *string        `json:"avatarUrl"`
	Bio                 string         `json:"bio"`
	Interests           []string       `json:"interests"`
	Age                 *int           `json:"age"`
	CoarseGeohash       string         `json:"coarseGeohash,omitempty"`
	LocationText        string         `json:"locationText,omitempty"`
	RelationshipType    string         `json:"relationshipType,omitempty"`
	Verified            bool           `json:"verified"`
	Premium             bool           `json:"premium"`
	RecommendationScore int            `json:"recommendationScore"`
	ScoreBreakdown      ranking.Scores `json:"scoreBreakdown"`
	Reasons             []string       `json:"reasons"`
}

// Engine scores profiles with a fixed set of weights. It holds no
// per-request state and is safe for concurrent use.
type Engine struct {
	weights *ranking.Weights
	limits  ranking.Scores
}

// NewEngine creates an Engine. A nil weights uses the defaults.
func NewEngine(weights *ranking.Weights) *Engine {
	if weights == nil {
		weights = ranking.DefaultWeights()
	}
	return &Engine{
		weights: weights,
		limits:  ranking.ProfileLimits(weights),
	}
}

// Score builds the breakdown for one candidate.
func (e *Engine) Score(viewer, candidate *profile.Profile, interacted bool, now time.Time) ranking.Breakdown {
	pw := e.weights.Profile
	b := ranking.NewBreakdown(e.limits)

	points, reason := ranking.InterestScore(viewer.Interests, candidate.Interests, pw.InterestMax)
	b = b.With(ranking.BucketInterests, points, reason)

	points, reason = ranking.AgeScore(viewer.BirthDate, candidate.BirthDate, now, pw)
	b = b.With(ranking.BucketDemographics, points, reason)

	if km, ok := geo.DistanceBetween(viewer.Location, candidate.Location); ok {
		points, reason = ranking.ProximityScore(km, pw)
		b = b.With(ranking.BucketLocation, points, reason)
	}

	window := time.Duration(pw.ActiveWindowDays * float64(24*time.Hour))
	if ranking.RecentlyActive(candidate.LastActiveAt, now, window) {
		b = b.With(ranking.BucketActivity, pw.RecentlyActive, ranking.ReasonRecentlyActive)
	}

	if ranking.PreferenceMatch(viewer.LookingFor, candidate.RelationshipType) {
		b = b.With(ranking.BucketPreferences, pw.PreferenceMatch, ranking.ReasonPreferenceMatch)
	}

	if candidate.Verified {
		b = b.With(ranking.BucketSocial, pw.Verified, ranking.ReasonVerified)
	}
	if candidate.Premium {
		b = b.With(ranking.BucketSocial, pw.Premium, "")
	}
	if float64(utf8.RuneCountInString(candidate.Bio)) > pw.CompleteBioChars {
		b = b.With(ranking.BucketSocial, pw.CompleteBio, ranking.ReasonCompleteProfile)
	}
	b = b.With(ranking.BucketSocial,
		ranking.CollaborativeBonus(interacted, candidate.FollowerCount, e.weights.Collaborative), "")

	return b
}

// Recommend scores every candidate except the viewer, sorts by rounded
// score descending (ties keep input order) and returns at most limit
// results. limit <= 0 returns everything.
func (e *Engine) Recommend(viewer *profile.Profile, candidates []*profile.Profile, interacted map[string]struct{}, limit int, now time.Time) []Recommendation {
	out := make([]Recommendation, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || c.ID == viewer.ID {
			continue
		}
		_, seen := interacted[c.ID]
		b := e.Score(viewer, c, seen, now)
		out = append(out, newRecommendation(c, b, now))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RecommendationScore > out[j].RecommendationScore
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func newRecommendation(c *profile.Profile, b ranking.Breakdown, now time.Time) Recommendation {
	r := Recommendation{
		ID:                  c.ID,
		DisplayName:         c.DisplayName,
		AvatarURL:           c.AvatarURL,
		Bio:                 c.Bio,
		Interests:           c.Interests,
		CoarseGeohash:       geo.Coarse(c.Location),
		LocationText:        c.LocationText,
		RelationshipType:    c.RelationshipType,
		Verified:            c.Verified,
		Premium:             c.Premium,
		RecommendationScore: b.RoundedTotal(),
		ScoreBreakdown:      b.Scores(),
		Reasons:             b.Reasons(),
	}
	if r.Interests == nil {
		r.Interests = []string{}
	}
	if c.BirthDate != nil {
		age := ranking.AgeYears(*c.BirthDate, now)
		r.Age = &age
	}
	return r
}
