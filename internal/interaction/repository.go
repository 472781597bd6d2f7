package interaction

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for interaction operations.
var (
	ErrInvalidType = errors.New("invalid interaction type")
)

// Repository defines read access to interactions.
type Repository interface {
	// Received returns interactions targeting userID created at or after
	// since, newest first, with source demographics populated.
	Received(ctx context.Context, userID string, since time.Time) ([]Record, error)

	// Sent returns interactions from userID created at or after since, newest first.
	Sent(ctx context.Context, userID string, since time.Time) ([]Record, error)

	// Counterparts returns the set of users userID has interacted with in
	// either direction, at any time.
	Counterparts(ctx context.Context, userID string) (map[string]struct{}, error)
}

// Demographics is the source user data attached to received records by
// the in-memory repository.
type Demographics struct {
	BirthDate *time.Time
	Gender    *string
	Interests []string
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu           sync.RWMutex
	records      []Record
	demographics map[string]Demographics
}

// NewInMemoryRepository creates a new in-memory interaction repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		demographics: make(map[string]Demographics),
	}
}

// SetDemographics registers the demographics joined onto records sent by userID.
func (r *InMemoryRepository) SetDemographics(userID string, d Demographics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.demographics[userID] = d
}

// Add stores a record, assigning an ID when empty.
func (r *InMemoryRepository) Add(rec Record) (Record, error) {
	if !rec.Type.Valid() {
		return Record{}, ErrInvalidType
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	r.records = append(r.records, rec)
	return rec, nil
}

// Received returns records targeting userID since the given time.
func (r *InMemoryRepository) Received(_ context.Context, userID string, since time.Time) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Record
	for _, rec := range r.records {
		if rec.TargetID != userID || rec.CreatedAt.Before(since) {
			continue
		}
		if d, ok := r.demographics[rec.SourceID]; ok {
			rec.SourceBirthDate = d.BirthDate
			rec.SourceGender = d.Gender
			rec.SourceInterests = d.Interests
		}
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return out, nil
}

// Sent returns records from userID since the given time.
func (r *InMemoryRepository) Sent(_ context.Context, userID string, since time.Time) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Record
	for _, rec := range r.records {
		if rec.SourceID != userID || rec.CreatedAt.Before(since) {
			continue
		}
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return out, nil
}

// Counterparts returns every user userID has interacted with.
func (r *InMemoryRepository) Counterparts(_ context.Context, userID string) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Counterparts(userID, r.records), nil
}

func sortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
