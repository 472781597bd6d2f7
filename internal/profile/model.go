// Package profile provides the user profile model used for recommendations
// and analytics, its repositories and a read-through Redis cache.
package profile

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/onnwee/rendezvous/internal/geo"
)

// Common errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
)

// Profile is the typed view of a user profile. Optional fields are pointers
// or empty values; interests are lower-cased, trimmed and de-duplicated.
type Profile struct {
	ID               string     `json:"id"`
	DisplayName      string     `json:"display_name"`
	AvatarURL        *string    `json:"avatar_url,omitempty"`
	Bio              string     `json:"bio"`
	Interests        []string   `json:"interests"`
	BirthDate        *time.Time `json:"birth_date,omitempty"`
	Location         *geo.Point `json:"location,omitempty"`
	LocationText     string     `json:"location_text,omitempty"`
	Gender           *string    `json:"gender,omitempty"`
	RelationshipType string     `json:"relationship_type,omitempty"`
	LookingFor       []string   `json:"looking_for,omitempty"`
	LastActiveAt     *time.Time `json:"last_active_at,omitempty"`
	Verified         bool       `json:"verified"`
	Premium          bool       `json:"premium"`
	FollowerCount    int        `json:"follower_count"`
	FollowingCount   int        `json:"following_count"`
	PostCount        int        `json:"post_count"`
}

// HasAvatar reports whether an avatar URL is set.
func (p *Profile) HasAvatar() bool {
	return p.AvatarURL != nil && strings.TrimSpace(*p.AvatarURL) != ""
}

// HasGender reports whether a gender is set.
func (p *Profile) HasGender() bool {
	return p.Gender != nil && strings.TrimSpace(*p.Gender) != ""
}

// Row mirrors a profiles table row as it comes out of the database, with
// every optional column nullable.
type Row struct {
	ID               string
	DisplayName      sql.NullString
	AvatarURL        sql.NullString
	Bio              sql.NullString
	Interests        []string
	BirthDate        sql.NullTime
	Latitude         sql.NullFloat64
	Longitude        sql.NullFloat64
	LocationText     sql.NullString
	Gender           sql.NullString
	RelationshipType sql.NullString
	LookingFor       []string
	LastActiveAt     sql.NullTime
	Verified         sql.NullBool
	Premium          sql.NullBool
	FollowerCount    sql.NullInt64
	FollowingCount   sql.NullInt64
	PostCount        sql.NullInt64
}

// Profile converts the row into a Profile. Coordinates are kept only when
// both are present and in range.
func (r Row) Profile() *Profile {
	p := &Profile{
		ID:               r.ID,
		DisplayName:      strings.TrimSpace(r.DisplayName.String),
		Bio:              strings.TrimSpace(r.Bio.String),
		Interests:        NormalizeTags(r.Interests),
		LocationText:     strings.TrimSpace(r.LocationText.String),
		RelationshipType: strings.ToLower(strings.TrimSpace(r.RelationshipType.String)),
		LookingFor:       NormalizeTags(r.LookingFor),
		Verified:         r.Verified.Valid && r.Verified.Bool,
		Premium:          r.Premium.Valid && r.Premium.Bool,
		FollowerCount:    nonNegative(r.FollowerCount),
		FollowingCount:   nonNegative(r.FollowingCount),
		PostCount:        nonNegative(r.PostCount),
	}

	if s := strings.TrimSpace(r.AvatarURL.String); r.AvatarURL.Valid && s != "" {
		p.AvatarURL = &s
	}
	if s := strings.TrimSpace(r.Gender.String); r.Gender.Valid && s != "" {
		p.Gender = &s
	}
	if r.BirthDate.Valid {
		t := r.BirthDate.Time
		p.BirthDate = &t
	}
	if r.LastActiveAt.Valid {
		t := r.LastActiveAt.Time
		p.LastActiveAt = &t
	}
	if r.Latitude.Valid && r.Longitude.Valid {
		pt := geo.Point{Lat: r.Latitude.Float64, Lng: r.Longitude.Float64}
		if pt.Valid() {
			p.Location = &pt
		}
	}

	return p
}

// NormalizeTags lower-cases and trims tags, dropping empties and duplicates
// while keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func nonNegative(n sql.NullInt64) int {
	if !n.Valid || n.Int64 < 0 {
		return 0
	}
	return int(n.Int64)
}
