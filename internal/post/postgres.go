package post

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

// ListRecent returns recent non-deleted posts joined with their authors.
func (r *PostgresRepository) ListRecent(ctx context.Context, since time.Time, limit int) (_ []*Post, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT p.id, p.author_id, p.text, p.hashtags,
		       p.like_count, p.comment_count, p.share_count,
		       p.has_image, p.has_video, p.is_event, p.is_premium,
		       p.location_text, p.labels, p.created_at,
		       a.display_name, a.avatar_url, a.verified, a.premium,
		       a.follower_count, a.location_text
		FROM posts p
		JOIN profiles a ON a.id = p.author_id
		WHERE p.deleted_at IS NULL AND p.created_at >= $1
		ORDER BY p.created_at DESC, p.id
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent posts: %w", err)
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		var (
			p              Post
			location       sql.NullString
			authorName     sql.NullString
			authorAvatar   sql.NullString
			authorLocation sql.NullString
		)
		err := rows.Scan(
			&p.ID,
			&p.AuthorID,
			&p.Text,
			pq.Array(&p.Hashtags),
			&p.LikeCount,
			&p.CommentCount,
			&p.ShareCount,
			&p.HasImage,
			&p.HasVideo,
			&p.IsEvent,
			&p.IsPremium,
			&location,
			pq.Array(&p.Labels),
			&p.CreatedAt,
			&authorName,
			&authorAvatar,
			&p.Author.Verified,
			&p.Author.Premium,
			&p.Author.FollowerCount,
			&authorLocation,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}

		p.LocationText = location.String
		p.Author.ID = p.AuthorID
		p.Author.DisplayName = authorName.String
		p.Author.AvatarURL = authorAvatar.String
		p.Author.LocationText = authorLocation.String
		posts = append(posts, &p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}

	return posts, nil
}
