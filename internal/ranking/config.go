package ranking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// ProfileWeights defines the point values used when scoring a candidate
// profile against the viewer.
type ProfileWeights struct {
	InterestMax        float64 `json:"interest_max"`         // Points for identical interest sets (default: 30)
	AgeMax             float64 `json:"age_max"`              // Points for same age (default: 15)
	AgeWindowYears     float64 `json:"age_window_years"`     // Age gap at which age points reach 0 (default: 10)
	CompatibleAgeYears float64 `json:"compatible_age_years"` // Max gap that earns the "Compatible ages" reason (default: 5)
	ProximityMax       float64 `json:"proximity_max"`        // Points at distance 0 (default: 15)
	ProximityRadiusKm  float64 `json:"proximity_radius_km"`  // Distance at which proximity points reach 0 (default: 50)
	RecentlyActive     float64 `json:"recently_active"`      // Points for activity inside the active window (default: 10)
	ActiveWindowDays   float64 `json:"active_window_days"`   // Active window (default: 7)
	PreferenceMatch    float64 `json:"preference_match"`     // Points when the candidate is what the viewer seeks (default: 10)
	Verified           float64 `json:"verified"`             // Points for a verified profile (default: 5)
	Premium            float64 `json:"premium"`              // Points for a premium profile (default: 2)
	CompleteBio        float64 `json:"complete_bio"`         // Points for a complete bio (default: 5)
	CompleteBioChars   float64 `json:"complete_bio_chars"`   // Bio length that must be exceeded (default: 50)
}

// TimelineWeights defines the point values used by the "For You" ranking
// on top of the fixed recency and engagement tiers.
type TimelineWeights struct {
	Verified        float64 `json:"verified"`          // Verified author (default: 3)
	Premium         float64 `json:"premium"`           // Premium author (default: 2)
	LocationMatch   float64 `json:"location_match"`    // Location text overlap with the viewer (default: 5)
	Image           float64 `json:"image"`             // Post has an image (default: 2)
	Video           float64 `json:"video"`             // Post has a video (default: 3)
	Event           float64 `json:"event"`             // Post announces an event (default: 2)
	PremiumContent  float64 `json:"premium_content"`   // Paid content (default: 1)
	HashtagMatch    float64 `json:"hashtag_match"`     // Per hashtag the viewer lists as an interest (default: 2)
	HashtagMatchMax float64 `json:"hashtag_match_max"` // Cap on hashtag points (default: 6)
}

// CollaborativeWeights defines the interaction-history bonus shared by
// both rankings.
type CollaborativeWeights struct {
	Interacted        float64 `json:"interacted"`          // Flat bonus when viewer and candidate have interacted (default: 5)
	PopularityMax     float64 `json:"popularity_max"`      // Cap on the follower-derived bonus (default: 5)
	FollowersPerPoint float64 `json:"followers_per_point"` // Followers needed per bonus point (default: 100)
}

// Weights holds all ranking weight configurations.
type Weights struct {
	Profile       ProfileWeights       `json:"profile"`
	Timeline      TimelineWeights      `json:"timeline"`
	Collaborative CollaborativeWeights `json:"collaborative"`
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"`
	Weights Weights `json:"weights"`
}

// DefaultWeights returns the default ranking weight configuration.
//
// Profile buckets: interests [0,30], demographics [0,15], location [0,15],
// activity [0,10], preferences [0,10], social [0,17].
//
// Timeline: recency 2..10 + engagement 0..23 + author credibility 0..5 +
// location 0..5 + content 0..8 + hashtags 0..6 + collaborative 0..5.
func DefaultWeights() *Weights {
	return &Weights{
		Profile: ProfileWeights{
			InterestMax:        30,
			AgeMax:             15,
			AgeWindowYears:     10,
			CompatibleAgeYears: 5,
			ProximityMax:       15,
			ProximityRadiusKm:  50,
			RecentlyActive:     10,
			ActiveWindowDays:   7,
			PreferenceMatch:    10,
			Verified:           5,
			Premium:            2,
			CompleteBio:        5,
			CompleteBioChars:   50,
		},
		Timeline: TimelineWeights{
			Verified:        3,
			Premium:         2,
			LocationMatch:   5,
			Image:           2,
			Video:           3,
			Event:           2,
			PremiumContent:  1,
			HashtagMatch:    2,
			HashtagMatchMax: 6,
		},
		Collaborative: CollaborativeWeights{
			Interacted:        5,
			PopularityMax:     5,
			FollowersPerPoint: 100,
		},
	}
}

// LoadCalibration loads ranking weights from a JSON calibration file.
// An empty path yields the defaults. On read or parse failure the defaults
// are returned together with the error so callers can keep serving.
//
// The file is decoded over the defaults: keys it omits keep their default
// and keys it sets, including an explicit 0, replace them. Unknown keys are
// a parse error, so a misspelled weight is reported instead of ignored.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	defaults := DefaultWeights()
	config := CalibrationConfig{Weights: *defaults}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	logCalibrationOverrides(defaults, &config.Weights)
	return &config.Weights, nil
}

// namedWeight points at one float weight together with its calibration key.
type namedWeight struct {
	name  string
	value *float64
}

// fields lists every float weight in calibration-file order.
func (w *Weights) fields() []namedWeight {
	return []namedWeight{
		{"profile.interest_max", &w.Profile.InterestMax},
		{"profile.age_max", &w.Profile.AgeMax},
		{"profile.age_window_years", &w.Profile.AgeWindowYears},
		{"profile.compatible_age_years", &w.Profile.CompatibleAgeYears},
		{"profile.proximity_max", &w.Profile.ProximityMax},
		{"profile.proximity_radius_km", &w.Profile.ProximityRadiusKm},
		{"profile.recently_active", &w.Profile.RecentlyActive},
		{"profile.active_window_days", &w.Profile.ActiveWindowDays},
		{"profile.preference_match", &w.Profile.PreferenceMatch},
		{"profile.verified", &w.Profile.Verified},
		{"profile.premium", &w.Profile.Premium},
		{"profile.complete_bio", &w.Profile.CompleteBio},
		{"profile.complete_bio_chars", &w.Profile.CompleteBioChars},
		{"timeline.verified", &w.Timeline.Verified},
		{"timeline.premium", &w.Timeline.Premium},
		{"timeline.location_match", &w.Timeline.LocationMatch},
		{"timeline.image", &w.Timeline.Image},
		{"timeline.video", &w.Timeline.Video},
		{"timeline.event", &w.Timeline.Event},
		{"timeline.premium_content", &w.Timeline.PremiumContent},
		{"timeline.hashtag_match", &w.Timeline.HashtagMatch},
		{"timeline.hashtag_match_max", &w.Timeline.HashtagMatchMax},
		{"collaborative.interacted", &w.Collaborative.Interacted},
		{"collaborative.popularity_max", &w.Collaborative.PopularityMax},
		{"collaborative.followers_per_point", &w.Collaborative.FollowersPerPoint},
	}
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	before := defaults.fields()
	after := loaded.fields()
	for i := range before {
		if *before[i].value != *after[i].value {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f",
				before[i].name, *before[i].value, *after[i].value))
		}
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
