package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dchat/internal/domain"
	"dchat/internal/observability"

	"github.com/sethvargo/go-retry"
)

// maxAppendAttempts bounds retries of the per-room id assignment when two
// concurrent appends to the same room pick the same id.
const maxAppendAttempts = 5

// MessageRepository implements domain.MessageRepository for PostgreSQL
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new PostgreSQL message repository
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append inserts the message with the next id for its room. Id assignment
// and insert happen in one statement; a concurrent append to the same room
// surfaces as a primary-key violation and is retried with a fresh id.
func (r *MessageRepository) Append(ctx context.Context, message *domain.Message) error {
	query := `
		INSERT INTO messages (room, id, sender_id, text, html)
		SELECT $1, COALESCE(MAX(id), 0) + 1, $2, $3, $4
		FROM messages
		WHERE room = $1
		RETURNING id, created_at
	`

	start := time.Now()
	defer func() {
		observability.DBQueryDuration.WithLabelValues("append", "messages").Observe(time.Since(start).Seconds())
	}()

	backoff := retry.WithMaxRetries(maxAppendAttempts, retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := r.db.QueryRowContext(ctx, query,
			message.Room,
			message.SenderID,
			message.Text,
			message.HTML,
		).Scan(&message.ID, &message.CreatedAt)

		if IsUniqueViolation(err, "messages_pkey") {
			observability.MessageIDConflictRetries.Inc()
			return retry.RetryableError(err)
		}
		return err
	})
	if IsForeignKeyViolation(err) {
		return domain.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	observability.MessagesStored.WithLabelValues(message.Room).Inc()
	return nil
}

// Before retrieves up to count views with id strictly below beforeID in
// descending id order. A nil beforeID starts from the newest message.
func (r *MessageRepository) Before(ctx context.Context, room string, beforeID *int64, count int) ([]*domain.MessageView, error) {
	query := `
		SELECT m.room, m.id, m.sender_id,
		       COALESCE(NULLIF(u.display_name, ''), m.sender_id::text),
		       m.html, m.created_at
		FROM messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.room = $1 AND ($2::bigint IS NULL OR m.id < $2)
		ORDER BY m.id DESC
		LIMIT $3
	`

	start := time.Now()
	defer func() {
		observability.DBQueryDuration.WithLabelValues("before", "messages").Observe(time.Since(start).Seconds())
	}()

	rows, err := r.db.QueryContext(ctx, query, room, beforeID, count)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages before id: %w", err)
	}
	defer rows.Close()

	return scanViews(rows, count)
}

// After retrieves up to limit views with id strictly above afterID in
// ascending id order. The query is re-executed per call, so callers page
// through an unbounded range by advancing afterID.
func (r *MessageRepository) After(ctx context.Context, room string, afterID int64, limit int) ([]*domain.MessageView, error) {
	query := `
		SELECT m.room, m.id, m.sender_id,
		       COALESCE(NULLIF(u.display_name, ''), m.sender_id::text),
		       m.html, m.created_at
		FROM messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.room = $1 AND m.id > $2
		ORDER BY m.id ASC
		LIMIT $3
	`

	start := time.Now()
	defer func() {
		observability.DBQueryDuration.WithLabelValues("after", "messages").Observe(time.Since(start).Seconds())
	}()

	rows, err := r.db.QueryContext(ctx, query, room, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages after id: %w", err)
	}
	defer rows.Close()

	return scanViews(rows, limit)
}

func scanViews(rows *sql.Rows, capacity int) ([]*domain.MessageView, error) {
	views := make([]*domain.MessageView, 0, capacity)
	for rows.Next() {
		view := &domain.MessageView{}
		var createdAt time.Time
		err := rows.Scan(
			&view.Room,
			&view.ID,
			&view.SenderID,
			&view.SenderDisplayName,
			&view.HTML,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		view.Timestamp = createdAt.UnixMilli()
		views = append(views, view)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return views, nil
}
