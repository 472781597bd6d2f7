package ranking

import "math"

// MaxReasons is the most reasons a breakdown reports.
const MaxReasons = 3

// Bucket names one bounded contribution to a profile score.
type Bucket string

// Score buckets, in the order their reasons are pushed.
const (
	BucketInterests    Bucket = "interests"
	BucketDemographics Bucket = "demographics"
	BucketLocation     Bucket = "location"
	BucketActivity     Bucket = "activity"
	BucketPreferences  Bucket = "preferences"
	BucketSocial       Bucket = "social"
)

// Scores holds one value per bucket. It is used both for the per-bucket
// upper bounds and for the accumulated contributions.
type Scores struct {
	Interests    float64 `json:"interests"`
	Demographics float64 `json:"demographics"`
	Activity     float64 `json:"activity"`
	Location     float64 `json:"location"`
	Preferences  float64 `json:"preferences"`
	Social       float64 `json:"social"`
}

func (s *Scores) slot(b Bucket) *float64 {
	switch b {
	case BucketInterests:
		return &s.Interests
	case BucketDemographics:
		return &s.Demographics
	case BucketActivity:
		return &s.Activity
	case BucketLocation:
		return &s.Location
	case BucketPreferences:
		return &s.Preferences
	case BucketSocial:
		return &s.Social
	default:
		return nil
	}
}

// Get returns the value of bucket b, or 0 for an unknown bucket.
func (s Scores) Get(b Bucket) float64 {
	if p := s.slot(b); p != nil {
		return *p
	}
	return 0
}

// Sum adds every bucket.
func (s Scores) Sum() float64 {
	return s.Interests + s.Demographics + s.Activity + s.Location + s.Preferences + s.Social
}

// ProfileLimits derives the per-bucket upper bounds from the weights.
// With the defaults these are interests 30, demographics 15, location 15,
// activity 10, preferences 10 and social 17.
func ProfileLimits(w *Weights) Scores {
	if w == nil {
		w = DefaultWeights()
	}
	p := w.Profile
	c := w.Collaborative
	return Scores{
		Interests:    p.InterestMax,
		Demographics: p.AgeMax,
		Location:     p.ProximityMax,
		Activity:     p.RecentlyActive,
		Preferences:  p.PreferenceMatch,
		Social:       p.Verified + p.Premium + p.CompleteBio + math.Max(c.Interacted, c.PopularityMax),
	}
}

// Breakdown is an immutable per-candidate score. Every With call returns a
// new value; the receiver is never modified.
type Breakdown struct {
	limits  Scores
	scores  Scores
	reasons []string
}

// NewBreakdown returns an empty breakdown bounded by limits.
func NewBreakdown(limits Scores) Breakdown {
	return Breakdown{limits: limits}
}

// With adds points to bucket, clamping the bucket into [0, limit], and
// records reason if it is non-empty and not already present.
// Unknown buckets are ignored.
func (b Breakdown) With(bucket Bucket, points float64, reason string) Breakdown {
	next := Breakdown{
		limits:  b.limits,
		scores:  b.scores,
		reasons: b.reasons,
	}

	slot := next.scores.slot(bucket)
	if slot == nil {
		return b
	}
	*slot = clamp(*slot+points, 0, b.limits.Get(bucket))

	if reason != "" && !contains(b.reasons, reason) {
		next.reasons = make([]string, len(b.reasons), len(b.reasons)+1)
		copy(next.reasons, b.reasons)
		next.reasons = append(next.reasons, reason)
	}
	return next
}

// Scores returns the per-bucket contributions.
func (b Breakdown) Scores() Scores {
	return b.scores
}

// Total sums every bucket.
func (b Breakdown) Total() float64 {
	return b.scores.Sum()
}

// RoundedTotal is Total rounded to the nearest integer.
func (b Breakdown) RoundedTotal() int {
	return int(math.Round(b.Total()))
}

// Reasons returns the first MaxReasons reasons in insertion order.
func (b Breakdown) Reasons() []string {
	n := min(len(b.reasons), MaxReasons)
	out := make([]string, n)
	copy(out, b.reasons[:n])
	return out
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
