// Package timeline ranks candidate posts for the "For You" timeline.
package timeline

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/onnwee/rendezvous/internal/post"
	"github.com/onnwee/rendezvous/internal/profile"
	"github.com/onnwee/rendezvous/internal/ranking"
)

// Algorithm selects how a page is ordered.
type Algorithm string

// Supported algorithms.
const (
	AlgorithmForYou        Algorithm = "for_you"
	AlgorithmChronological Algorithm = "chronological"
)

// ErrUnknownAlgorithm is returned by ParseAlgorithm for unsupported values.
var ErrUnknownAlgorithm = errors.New("unknown timeline algorithm")

// ParseAlgorithm parses a query value. Empty means AlgorithmForYou.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "", AlgorithmForYou:
		return AlgorithmForYou, nil
	case AlgorithmChronological:
		return AlgorithmChronological, nil
	default:
		return "", ErrUnknownAlgorithm
	}
}

// Page is the requested window of the ranked list.
type Page struct {
	Offset    int
	Limit     int
	Algorithm Algorithm
}

// RankedPost is a post annotated with its ranking signals.
type RankedPost struct {
	post.Post
	AlgorithmScore float64 `json:"_algorithmScore"`
	HoursAgo       float64 `json:"_hoursAgo"`
	EngagementRate float64 `json:"_engagementRate"`

	score float64 // unrounded AlgorithmScore, used for ordering
}

// Ranker scores posts with a fixed set of weights. It holds no
// per-request state and is safe for concurrent use.
type Ranker struct {
	weights *ranking.Weights
}

// NewRanker creates a Ranker. A nil weights uses the defaults.
func NewRanker(weights *ranking.Weights) *Ranker {
	if weights == nil {
		weights = ranking.DefaultWeights()
	}
	return &Ranker{weights: weights}
}

// Score returns the "For You" score of p for viewer.
func (r *Ranker) Score(viewer *profile.Profile, p *post.Post, interactedAuthor bool, now time.Time) float64 {
	tw := r.weights.Timeline

	score := ranking.RecencyBonus(now.Sub(p.CreatedAt))
	score += ranking.EngagementScore(p.LikeCount, p.CommentCount, p.ShareCount)
	score += ranking.AuthorCredibility(p.Author.Verified, p.Author.Premium, tw)

	location := p.LocationText
	if location == "" {
		location = p.Author.LocationText
	}
	if ranking.LocationTextMatch(viewer.LocationText, location) {
		score += tw.LocationMatch
	}

	score += ranking.ContentScore(p.HasImage, p.HasVideo, p.IsEvent, p.IsPremium, tw)
	score += ranking.HashtagScore(p.Hashtags, viewer.Interests, tw)
	score += ranking.CollaborativeBonus(interactedAuthor, p.Author.FollowerCount, r.weights.Collaborative)

	return score
}

// Rank scores and orders posts, then returns the requested page.
//
// for_you: score descending (ties keep input order), at most AuthorCap posts
// per author within the first offset+limit, then sliced to the page.
// chronological: newest first with the same annotations and no author cap.
func (r *Ranker) Rank(viewer *profile.Profile, posts []*post.Post, interactedAuthors map[string]struct{}, page Page, now time.Time) []RankedPost {
	ranked := make([]RankedPost, 0, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		_, interacted := interactedAuthors[p.AuthorID]
		ranked = append(ranked, r.annotate(viewer, p, interacted, now))
	}

	end := page.Offset + page.Limit
	if page.Limit <= 0 {
		end = 0
	}

	switch page.Algorithm {
	case AlgorithmChronological:
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
		})
	default:
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].score > ranked[j].score
		})
		ranked = ranking.Diversify(ranked, func(rp RankedPost) string { return rp.AuthorID }, end, ranking.AuthorCap)
	}

	return window(ranked, page.Offset, page.Limit)
}

func (r *Ranker) annotate(viewer *profile.Profile, p *post.Post, interacted bool, now time.Time) RankedPost {
	hours := math.Max(0, now.Sub(p.CreatedAt).Hours())
	engagement := float64(p.LikeCount + p.CommentCount + p.ShareCount)

	score := r.Score(viewer, p, interacted, now)
	return RankedPost{
		Post:           *p,
		AlgorithmScore: round(score, 2),
		HoursAgo:       round(hours, 1),
		EngagementRate: round(engagement/math.Max(hours, 1), 2),
		score:          score,
	}
}

func window(items []RankedPost, offset, limit int) []RankedPost {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []RankedPost{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
