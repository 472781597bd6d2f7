// Package interaction provides user-to-user interaction records (views,
// likes, messages, follows) and the canonical mutual-like definition.
package interaction

import (
	"sort"
	"time"
)

// Type tags an interaction.
type Type string

// Interaction types.
const (
	TypeView      Type = "view"
	TypeLike      Type = "like"
	TypeSuperLike Type = "super_like"
	TypeMessage   Type = "message"
	TypeFollow    Type = "follow"
	TypePass      Type = "pass"
)

// Valid reports whether t is a known interaction type.
func (t Type) Valid() bool {
	switch t {
	case TypeView, TypeLike, TypeSuperLike, TypeMessage, TypeFollow, TypePass:
		return true
	}
	return false
}

// Record is a single interaction from SourceID to TargetID.
// The Source* fields carry the source user's demographics when the record
// was loaded for its target; they are empty otherwise.
type Record struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Type      Type      `json:"type"`
	CreatedAt time.Time `json:"created_at"`

	SourceBirthDate *time.Time `json:"source_birth_date,omitempty"`
	SourceGender    *string    `json:"source_gender,omitempty"`
	SourceInterests []string   `json:"source_interests,omitempty"`
}

// MatchedUsers returns the users who both received a like in sent and sent
// a like in received, sorted by ID. This is the only definition of a match.
func MatchedUsers(sent, received []Record) []string {
	liked := make(map[string]struct{})
	for _, r := range sent {
		if r.Type == TypeLike {
			liked[r.TargetID] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var matches []string
	for _, r := range received {
		if r.Type != TypeLike {
			continue
		}
		if _, ok := liked[r.SourceID]; !ok {
			continue
		}
		if _, dup := seen[r.SourceID]; dup {
			continue
		}
		seen[r.SourceID] = struct{}{}
		matches = append(matches, r.SourceID)
	}

	sort.Strings(matches)
	return matches
}

// Counterparts returns every user userID interacted with in either direction.
func Counterparts(userID string, records []Record) map[string]struct{} {
	out := make(map[string]struct{})
	for _, r := range records {
		switch userID {
		case r.SourceID:
			out[r.TargetID] = struct{}{}
		case r.TargetID:
			out[r.SourceID] = struct{}{}
		}
	}
	delete(out, userID)
	return out
}
