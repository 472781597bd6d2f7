package interaction

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/onnwee/rendezvous/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Received returns interactions targeting userID since the given time,
// joined with the source profile's demographics.
func (r *PostgresRepository) Received(ctx context.Context, userID string, since time.Time) (_ []Record, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "interactions", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT i.id, i.source_id, i.target_id, i.type, i.created_at,
		       p.birth_date, p.gender, p.interests
		FROM interactions i
		LEFT JOIN profiles p ON p.id = i.source_id
		WHERE i.target_id = $1 AND i.created_at >= $2
		ORDER BY i.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get received interactions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec       Record
			typ       string
			birthDate sql.NullTime
			gender    sql.NullString
			interests []string
		)
		err := rows.Scan(
			&rec.ID,
			&rec.SourceID,
			&rec.TargetID,
			&typ,
			&rec.CreatedAt,
			&birthDate,
			&gender,
			pq.Array(&interests),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan received interaction: %w", err)
		}

		rec.Type = Type(typ)
		if birthDate.Valid {
			t := birthDate.Time
			rec.SourceBirthDate = &t
		}
		if gender.Valid && gender.String != "" {
			g := gender.String
			rec.SourceGender = &g
		}
		rec.SourceInterests = interests
		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating received interactions: %w", err)
	}

	return records, nil
}

// Sent returns interactions from userID since the given time.
func (r *PostgresRepository) Sent(ctx context.Context, userID string, since time.Time) (_ []Record, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "interactions", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT id, source_id, target_id, type, created_at
		FROM interactions
		WHERE source_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get sent interactions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec Record
			typ string
		)
		if err := rows.Scan(&rec.ID, &rec.SourceID, &rec.TargetID, &typ, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sent interaction: %w", err)
		}
		rec.Type = Type(typ)
		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sent interactions: %w", err)
	}

	return records, nil
}

// Counterparts returns every user userID has interacted with.
func (r *PostgresRepository) Counterparts(ctx context.Context, userID string) (_ map[string]struct{}, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "interactions", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT DISTINCT CASE WHEN source_id = $1 THEN target_id ELSE source_id END
		FROM interactions
		WHERE source_id = $1 OR target_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction counterparts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan counterpart: %w", err)
		}
		if id != userID {
			out[id] = struct{}{}
		}
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating counterparts: %w", err)
	}

	return out, nil
}
