package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solterra/solterra/internal/shared"
)

// Repository provides PostgreSQL backed persistence for notifications.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a notification. IDs are assigned here so the caller can
// reference the notification before the insert round-trips.
func (r *Repository) Insert(ctx context.Context, n Notification) (*Notification, error) {
	query := `
		INSERT INTO notifications (id, client_id, type, title, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, NOW())
		RETURNING id, client_id, type, title, message, is_read, created_at`

	var out Notification
	err := r.pool.QueryRow(ctx, query, uuid.NewString(), n.ClientID, n.Type, n.Title, n.Message).Scan(
		&out.ID, &out.ClientID, &out.Type, &out.Title, &out.Message, &out.IsRead, &out.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("notify: insert: %w", err)
	}
	return &out, nil
}

// ListForClient returns a client's notifications newest first.
func (r *Repository) ListForClient(ctx context.Context, clientID string, onlyUnread bool, limit int) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, client_id, type, title, message, is_read, created_at
		FROM notifications
		WHERE client_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC
		LIMIT $3`,
		clientID, onlyUnread, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("notify: list: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.ClientID, &n.Type, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags one notification as read, scoped to its owner.
func (r *Repository) MarkRead(ctx context.Context, clientID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND client_id = $2`,
		id, clientID,
	)
	if err != nil {
		return fmt.Errorf("notify: mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ClientContact resolves the email and name notifications are delivered to.
func (r *Repository) ClientContact(ctx context.Context, clientID string) (name, email string, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT full_name, email FROM clients WHERE id = $1 AND deleted_at IS NULL`,
		clientID,
	).Scan(&name, &email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", shared.ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("notify: client contact: %w", err)
	}
	return name, email, nil
}

// OwnerOfLot resolves which client owns a sold lot contract.
func (r *Repository) OwnerOfLot(ctx context.Context, clientLotID string) (string, error) {
	var clientID string
	err := r.pool.QueryRow(ctx,
		`SELECT client_id FROM client_lots WHERE id = $1`, clientLotID,
	).Scan(&clientID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("notify: owner of lot: %w", err)
	}
	return clientID, nil
}
