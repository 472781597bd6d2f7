package post

import (
	"errors"
	"slices"
)

// Moderation label constants define allowed labels for content moderation.
const (
	// LabelHidden marks content that never appears in anyone else's timeline.
	LabelHidden = "hidden"

	// LabelNSFW marks adult content shown only to viewers who opted in.
	LabelNSFW = "nsfw"

	// LabelFlagged marks content under review.
	LabelFlagged = "flagged"

	// LabelSpam marks content identified as spam.
	LabelSpam = "spam"
)

// AllowedLabels is the exhaustive list of valid moderation labels.
var AllowedLabels = []string{
	LabelHidden,
	LabelNSFW,
	LabelFlagged,
	LabelSpam,
}

// Common errors for moderation operations.
var (
	ErrInvalidLabel = errors.New("invalid moderation label")
)

// ValidateLabels checks that all provided labels are in the allowed list.
func ValidateLabels(labels []string) error {
	for _, label := range labels {
		if !slices.Contains(AllowedLabels, label) {
			return ErrInvalidLabel
		}
	}
	return nil
}

// ViewerPreferences are the viewer settings that affect content filtering.
type ViewerPreferences struct {
	ShowNSFW bool `json:"show_nsfw"`
}

// FilterForViewer returns the posts visible to viewerID in a ranked timeline.
// Hidden, spam and flagged posts are dropped unless the viewer wrote them;
// NSFW posts need an opt-in. Order is preserved.
func FilterForViewer(posts []*Post, prefs *ViewerPreferences, viewerID string) []*Post {
	if len(posts) == 0 {
		return []*Post{}
	}
	if prefs == nil {
		prefs = &ViewerPreferences{}
	}

	filtered := make([]*Post, 0, len(posts))
	for _, p := range posts {
		if visibleTo(p, prefs, viewerID) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func visibleTo(p *Post, prefs *ViewerPreferences, viewerID string) bool {
	if p == nil {
		return false
	}
	if viewerID != "" && p.AuthorID == viewerID {
		return true
	}

	for _, label := range p.Labels {
		switch label {
		case LabelHidden, LabelSpam, LabelFlagged:
			return false
		case LabelNSFW:
			if !prefs.ShowNSFW {
				return false
			}
		}
	}
	return true
}

// HasLabel checks if a post has a specific moderation label.
func (p *Post) HasLabel(label string) bool {
	return slices.Contains(p.Labels, label)
}
