package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/solterra/solterra/internal/shared"
)

// Repository runs the aggregate queries behind the dashboards.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ClientCounts returns total, active (with a live contract) and defaulter
// (with an overdue invoice) client counts.
func (r *Repository) ClientCounts(ctx context.Context) (total, active, defaulters int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM clients WHERE deleted_at IS NULL),
			(SELECT COUNT(DISTINCT client_id) FROM client_lots WHERE status = 'active'),
			(SELECT COUNT(DISTINCT cl.client_id)
			 FROM invoices i JOIN client_lots cl ON cl.id = i.client_lot_id
			 WHERE i.status = 'overdue')`,
	).Scan(&total, &active, &defaulters)
	if err != nil {
		err = fmt.Errorf("dashboard: client counts: %w", err)
	}
	return
}

// LotCounts returns total, available and sold lot counts.
func (r *Repository) LotCounts(ctx context.Context) (total, available, sold int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'available'),
			COUNT(*) FILTER (WHERE status = 'sold')
		FROM lots`,
	).Scan(&total, &available, &sold)
	if err != nil {
		err = fmt.Errorf("dashboard: lot counts: %w", err)
	}
	return
}

// OrderCounts returns open and completed service order counts.
func (r *Repository) OrderCounts(ctx context.Context) (open, completed int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status IN ('requested', 'approved', 'in_progress')),
			COUNT(*) FILTER (WHERE status = 'completed')
		FROM service_orders`,
	).Scan(&open, &completed)
	if err != nil {
		err = fmt.Errorf("dashboard: order counts: %w", err)
	}
	return
}

// InvoiceTotals returns receivable, received and overdue sums.
func (r *Repository) InvoiceTotals(ctx context.Context) (receivable, received, overdue decimal.Decimal, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = 'pending'), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = 'overdue'), 0)
		FROM invoices`,
	).Scan(&receivable, &received, &overdue)
	if err != nil {
		err = fmt.Errorf("dashboard: invoice totals: %w", err)
	}
	return
}

// ServiceTotals returns service revenue and cost sums.
func (r *Repository) ServiceTotals(ctx context.Context) (revenue, cost decimal.Decimal, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(revenue), 0), COALESCE(SUM(cost), 0) FROM service_orders`,
	).Scan(&revenue, &cost)
	if err != nil {
		err = fmt.Errorf("dashboard: service totals: %w", err)
	}
	return
}

// Defaulters lists clients with overdue invoices, worst first.
func (r *Repository) Defaulters(ctx context.Context, limit int) ([]Defaulter, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.full_name, c.document, c.phone,
			SUM(i.amount), COUNT(*), MIN(i.due_date)
		FROM invoices i
		JOIN client_lots cl ON cl.id = i.client_lot_id
		JOIN clients c ON c.id = cl.client_id
		WHERE i.status = 'overdue'
		GROUP BY c.id, c.full_name, c.document, c.phone
		ORDER BY SUM(i.amount) DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("dashboard: defaulters: %w", err)
	}
	defer rows.Close()

	var out []Defaulter
	for rows.Next() {
		var d Defaulter
		if err := rows.Scan(&d.ClientID, &d.ClientName, &d.Document, &d.Phone,
			&d.OverdueAmount, &d.OverdueInvoices, &d.OldestOverdueDate); err != nil {
			return nil, fmt.Errorf("dashboard: defaulters: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ClientBillingSummary returns the client's open installment picture: how
// many installments are pending or overdue, their sum, and the next due date.
func (r *Repository) ClientBillingSummary(ctx context.Context, clientID string) (pendingCount int, pendingAmount decimal.Decimal, nextDue *time.Time, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(i.amount), 0),
			MIN(i.due_date) FILTER (WHERE i.status = 'pending')
		FROM invoices i
		JOIN client_lots cl ON cl.id = i.client_lot_id
		WHERE cl.client_id = $1 AND i.status IN ('pending', 'overdue')`,
		clientID,
	).Scan(&pendingCount, &pendingAmount, &nextDue)
	if err != nil {
		err = fmt.Errorf("dashboard: client billing summary: %w", err)
	}
	return
}

// ClientOpenOrders counts the client's service orders still in flight.
func (r *Repository) ClientOpenOrders(ctx context.Context, clientID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM service_orders
		WHERE client_id = $1 AND status IN ('requested', 'approved', 'in_progress')`,
		clientID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("dashboard: client open orders: %w", err)
	}
	return n, nil
}

// ClientName resolves the display name for the portal header.
func (r *Repository) ClientName(ctx context.Context, clientID string) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx,
		`SELECT full_name FROM clients WHERE id = $1 AND deleted_at IS NULL`, clientID,
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("dashboard: client name: %w", err)
	}
	return name, nil
}
