// Package post provides timeline posts, their authors' public signals and
// moderation filtering.
package post

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for post operations.
var (
	ErrPostNotFound = errors.New("post not found")
)

// Author carries the author fields the timeline ranking needs.
type Author struct {
	ID            string `json:"id"`
	DisplayName   string `json:"displayName"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
	Verified      bool   `json:"verified"`
	Premium       bool   `json:"premium"`
	FollowerCount int    `json:"followerCount"`
	LocationText  string `json:"locationText,omitempty"`
}

// Post is a timeline candidate.
type Post struct {
	ID           string     `json:"id"`
	AuthorID     string     `json:"authorId"`
	Text         string     `json:"text"`
	Hashtags     []string   `json:"hashtags,omitempty"`
	LikeCount    int        `json:"likeCount"`
	CommentCount int        `json:"commentCount"`
	ShareCount   int        `json:"shareCount"`
	HasImage     bool       `json:"hasImage"`
	HasVideo     bool       `json:"hasVideo"`
	IsEvent      bool       `json:"isEvent"`
	IsPremium    bool       `json:"isPremium"`
	LocationText string     `json:"locationText,omitempty"`
	Labels       []string   `json:"labels,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	DeletedAt    *time.Time `json:"-"`
	Author       Author     `json:"author"`
}

// Repository defines read access to timeline candidates.
type Repository interface {
	// ListRecent returns up to limit non-deleted posts created at or after
	// since, newest first, with Author populated.
	ListRecent(ctx context.Context, since time.Time, limit int) ([]*Post, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	posts   map[string]*Post
	authors map[string]Author
}

// NewInMemoryRepository creates a new in-memory post repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		posts:   make(map[string]*Post),
		authors: make(map[string]Author),
	}
}

// PutAuthor registers author data joined onto that author's posts.
func (r *InMemoryRepository) PutAuthor(a Author) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authors[a.ID] = a
}

// Create stores a copy of p, assigning an ID and creation time when empty.
func (r *InMemoryRepository) Create(p *Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	postCopy := *p
	r.posts[p.ID] = &postCopy
	return nil
}

// Delete soft-deletes a post.
func (r *InMemoryRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok || p.DeletedAt != nil {
		return ErrPostNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

// ListRecent returns recent non-deleted posts, newest first.
func (r *InMemoryRepository) ListRecent(_ context.Context, since time.Time, limit int) ([]*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Post
	for _, p := range r.posts {
		if p.DeletedAt != nil || p.CreatedAt.Before(since) {
			continue
		}
		postCopy := *p
		if a, ok := r.authors[p.AuthorID]; ok {
			postCopy.Author = a
		}
		postCopy.Author.ID = p.AuthorID
		out = append(out, &postCopy)
	}

	sortPostsByCreatedDesc(out)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sortPostsByCreatedDesc orders posts by created_at DESC, id ASC.
func sortPostsByCreatedDesc(posts []*Post) {
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID < posts[j].ID
	})
}
