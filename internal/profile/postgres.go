package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/onnwee/rendezvous/internal/tracing"
)

// profileColumns is the column list shared by every profile query, in Row scan order.
const profileColumns = `
	id, display_name, avatar_url, bio, interests, birth_date,
	latitude, longitude, location_text, gender, relationship_type,
	looking_for, last_active_at, verified, premium,
	follower_count, following_count, post_count`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID retrieves a profile by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (_ *Profile, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "profiles", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT` + profileColumns + `
		FROM profiles
		WHERE id = $1`

	row, err := scanRow(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return row.Profile(), nil
}

// ListCandidates returns up to limit profiles other than excludeID.
func (r *PostgresRepository) ListCandidates(ctx context.Context, excludeID string, limit int) (_ []*Profile, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "profiles", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT` + profileColumns + `
		FROM profiles
		WHERE id <> $1
		ORDER BY last_active_at DESC NULLS LAST, id
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, row.Profile())
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (Row, error) {
	var row Row
	err := s.Scan(
		&row.ID,
		&row.DisplayName,
		&row.AvatarURL,
		&row.Bio,
		pq.Array(&row.Interests),
		&row.BirthDate,
		&row.Latitude,
		&row.Longitude,
		&row.LocationText,
		&row.Gender,
		&row.RelationshipType,
		pq.Array(&row.LookingFor),
		&row.LastActiveAt,
		&row.Verified,
		&row.Premium,
		&row.FollowerCount,
		&row.FollowingCount,
		&row.PostCount,
	)
	return row, err
}
