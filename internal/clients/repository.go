package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solterra/solterra/internal/shared"
)

// Repository provides PostgreSQL backed persistence for clients.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, user_id, full_name, document, email, phone, address,
	gateway_customer_id, created_at, updated_at, deleted_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(
		&c.ID, &c.UserID, &c.FullName, &c.Document, &c.Email, &c.Phone, &c.Address,
		&c.GatewayCustomerID, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clients: scan: %w", err)
	}
	return &c, nil
}

// Create inserts a client. Documents are unique across live rows.
func (r *Repository) Create(ctx context.Context, c Client) (*Client, error) {
	query := `
		INSERT INTO clients (full_name, document, email, phone, address, gateway_customer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING ` + clientColumns

	created, err := scanClient(r.pool.QueryRow(ctx, query,
		c.FullName, c.Document, c.Email, c.Phone, c.Address, c.GatewayCustomerID,
	))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return nil, fmt.Errorf("%w: document already registered", shared.ErrConflict)
	}
	return created, err
}

// Get fetches a client by ID.
func (r *Repository) Get(ctx context.Context, id string) (*Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1 AND deleted_at IS NULL`
	return scanClient(r.pool.QueryRow(ctx, query, id))
}

// GetByUserID fetches the client linked to an authenticated user.
func (r *Repository) GetByUserID(ctx context.Context, userID string) (*Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE user_id = $1 AND deleted_at IS NULL`
	return scanClient(r.pool.QueryRow(ctx, query, userID))
}

// ClientIDForUser resolves the client record bound to an authenticated user.
func (r *Repository) ClientIDForUser(ctx context.Context, userID string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM clients WHERE user_id = $1 AND deleted_at IS NULL`, userID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("clients: resolve user: %w", err)
	}
	return id, nil
}

// List returns clients matching an optional name/document search.
func (r *Repository) List(ctx context.Context, search string, page, pageSize int) ([]Client, *shared.Pagination, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM clients
		WHERE deleted_at IS NULL
		  AND ($1 = '' OR full_name ILIKE '%' || $1 || '%' OR document LIKE '%' || $1 || '%')`,
		search,
	).Scan(&total)
	if err != nil {
		return nil, nil, fmt.Errorf("clients: count: %w", err)
	}

	pagination := shared.NewPagination(page, pageSize, total)
	rows, err := r.pool.Query(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE deleted_at IS NULL
		  AND ($1 = '' OR full_name ILIKE '%' || $1 || '%' OR document LIKE '%' || $1 || '%')
		ORDER BY full_name
		LIMIT $2 OFFSET $3`,
		search, pageSize, pagination.Offset(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clients: list: %w", err)
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, *c)
	}
	return out, &pagination, rows.Err()
}

// Update applies partial changes to a client.
func (r *Repository) Update(ctx context.Context, id string, input UpdateClientInput) (*Client, error) {
	query := `
		UPDATE clients SET
			full_name = COALESCE($2, full_name),
			email = COALESCE($3, email),
			phone = COALESCE($4, phone),
			address = COALESCE($5, address),
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + clientColumns

	return scanClient(r.pool.QueryRow(ctx, query, id, input.FullName, input.Email, input.Phone, input.Address))
}

// SetGatewayCustomer links the client to its payment gateway customer.
func (r *Repository) SetGatewayCustomer(ctx context.Context, id, customerID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE clients SET gateway_customer_id = $2, updated_at = NOW() WHERE id = $1`,
		id, customerID,
	)
	if err != nil {
		return fmt.Errorf("clients: set gateway customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SoftDelete hides a client. Rows with active lot contracts are kept for
// history, so deletion is never physical.
func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE clients SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("clients: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
