package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solterra/solterra/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the service catalog
// and orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const typeColumns = `id, name, description, base_price, is_active, created_at, updated_at`

func scanType(row pgx.Row) (*ServiceType, error) {
	var t ServiceType
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.BasePrice, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("services: scan type: %w", err)
	}
	return &t, nil
}

// CreateType inserts a catalog entry.
func (r *Repository) CreateType(ctx context.Context, t ServiceType) (*ServiceType, error) {
	query := `
		INSERT INTO service_types (name, description, base_price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + typeColumns
	return scanType(r.pool.QueryRow(ctx, query, t.Name, t.Description, t.BasePrice, t.IsActive))
}

// GetType fetches a catalog entry.
func (r *Repository) GetType(ctx context.Context, id string) (*ServiceType, error) {
	return scanType(r.pool.QueryRow(ctx, `SELECT `+typeColumns+` FROM service_types WHERE id = $1`, id))
}

// ListTypes returns catalog entries, optionally only active ones.
func (r *Repository) ListTypes(ctx context.Context, onlyActive bool) ([]ServiceType, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+typeColumns+` FROM service_types WHERE NOT $1 OR is_active ORDER BY name`,
		onlyActive,
	)
	if err != nil {
		return nil, fmt.Errorf("services: list types: %w", err)
	}
	defer rows.Close()

	var out []ServiceType
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// UpdateType applies partial changes to a catalog entry.
func (r *Repository) UpdateType(ctx context.Context, id string, input UpdateServiceTypeInput) (*ServiceType, error) {
	query := `
		UPDATE service_types SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			base_price = COALESCE($4, base_price),
			is_active = COALESCE($5, is_active),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + typeColumns
	return scanType(r.pool.QueryRow(ctx, query, id, input.Name, input.Description, input.BasePrice, input.IsActive))
}

const orderColumns = `id, client_id, lot_id, service_type_id, requested_date, execution_date,
	status, cost, revenue, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.ClientID, &o.LotID, &o.ServiceTypeID, &o.RequestedDate, &o.ExecutionDate,
		&o.Status, &o.Cost, &o.Revenue, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("services: scan order: %w", err)
	}
	return &o, nil
}

// CreateOrder inserts an order in requested status.
func (r *Repository) CreateOrder(ctx context.Context, o Order) (*Order, error) {
	query := `
		INSERT INTO service_orders (
			client_id, lot_id, service_type_id, requested_date, status, cost, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, 'requested', $5, $6, NOW(), NOW())
		RETURNING ` + orderColumns
	return scanOrder(r.pool.QueryRow(ctx, query,
		o.ClientID, o.LotID, o.ServiceTypeID, o.RequestedDate, o.Cost, o.Notes,
	))
}

// GetOrder fetches an order.
func (r *Repository) GetOrder(ctx context.Context, id string) (*Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM service_orders WHERE id = $1`, id))
}

// UpdateOrder applies partial changes to an order.
func (r *Repository) UpdateOrder(ctx context.Context, id string, input UpdateOrderInput) (*Order, error) {
	query := `
		UPDATE service_orders SET
			status = COALESCE($2, status),
			execution_date = COALESCE($3, execution_date),
			cost = COALESCE($4, cost),
			revenue = COALESCE($5, revenue),
			notes = COALESCE($6, notes),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + orderColumns
	return scanOrder(r.pool.QueryRow(ctx, query,
		id, input.Status, input.ExecutionDate, input.Cost, input.Revenue, input.Notes,
	))
}

// ListOrders returns orders matching the filter newest first.
func (r *Repository) ListOrders(ctx context.Context, filter OrderFilter, page, pageSize int) ([]Order, *shared.Pagination, error) {
	where := []string{"TRUE"}
	args := []any{}
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ServiceTypeID != "" {
		args = append(args, filter.ServiceTypeID)
		where = append(where, fmt.Sprintf("service_type_id = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM service_orders WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, nil, fmt.Errorf("services: count orders: %w", err)
	}

	pagination := shared.NewPagination(page, pageSize, total)
	query := fmt.Sprintf(`
		SELECT `+orderColumns+` FROM service_orders
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, cond, len(args)+1, len(args)+2)
	args = append(args, pageSize, pagination.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("services: list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, *o)
	}
	return out, &pagination, rows.Err()
}

// Analytics aggregates cost, revenue and counts across all orders.
func (r *Repository) Analytics(ctx context.Context) (*Analytics, error) {
	a := &Analytics{
		OrdersByStatus: map[OrderStatus]int{},
		OrdersByType:   map[string]int{},
	}

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(cost), 0), COALESCE(SUM(revenue), 0)
		FROM service_orders`,
	).Scan(&a.TotalOrders, &a.TotalCost, &a.TotalRevenue)
	if err != nil {
		return nil, fmt.Errorf("services: analytics: %w", err)
	}
	a.Profit = a.TotalRevenue.Sub(a.TotalCost)

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM service_orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("services: analytics by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status OrderStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("services: analytics by status: %w", err)
		}
		a.OrdersByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	typeRows, err := r.pool.Query(ctx, `
		SELECT st.name, COUNT(*)
		FROM service_orders so
		JOIN service_types st ON st.id = so.service_type_id
		GROUP BY st.name`)
	if err != nil {
		return nil, fmt.Errorf("services: analytics by type: %w", err)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var name string
		var n int
		if err := typeRows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("services: analytics by type: %w", err)
		}
		a.OrdersByType[name] = n
	}
	return a, typeRows.Err()
}
