package profile

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Repository defines read access to profiles.
type Repository interface {
	// GetByID returns the profile with the given ID or ErrProfileNotFound.
	GetByID(ctx context.Context, id string) (*Profile, error)

	// ListCandidates returns up to limit profiles other than excludeID,
	// most recently active first. Profiles without activity sort last.
	ListCandidates(ctx context.Context, excludeID string, limit int) ([]*Profile, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	order    []string // insertion order, for stable listing
}

// NewInMemoryRepository creates a new in-memory profile repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		profiles: make(map[string]*Profile),
	}
}

// Put stores a copy of p, assigning an ID when empty. Returns the ID.
func (r *InMemoryRepository) Put(p *Profile) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if _, exists := r.profiles[p.ID]; !exists {
		r.order = append(r.order, p.ID)
	}
	pCopy := *p
	pCopy.Interests = NormalizeTags(p.Interests)
	pCopy.LookingFor = NormalizeTags(p.LookingFor)
	r.profiles[p.ID] = &pCopy
	return p.ID
}

// GetByID retrieves a profile by ID.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	pCopy := *p
	return &pCopy, nil
}

// ListCandidates returns profiles other than excludeID, most recently active first.
func (r *InMemoryRepository) ListCandidates(_ context.Context, excludeID string, limit int) ([]*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make([]*Profile, 0, len(r.order))
	for _, id := range r.order {
		if id == excludeID {
			continue
		}
		pCopy := *r.profiles[id]
		candidates = append(candidates, &pCopy)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].LastActiveAt, candidates[j].LastActiveAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}
