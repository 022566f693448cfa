package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solterra/solterra/internal/lots"
	"github.com/solterra/solterra/internal/platform/db"
	"github.com/solterra/solterra/internal/shared"
)

// Repository provides PostgreSQL backed persistence for sales.
type Repository struct {
	pool *pgxpool.Pool
	lots *lots.Repository
}

// NewRepository constructs a repository. It holds the lots repository because
// the sale transaction spans both tables.
func NewRepository(pool *pgxpool.Pool, lotsRepo *lots.Repository) *Repository {
	return &Repository{pool: pool, lots: lotsRepo}
}

const saleColumns = `id, client_id, lot_id, status, total_value, down_payment,
	total_installments, installment_value, first_due_date, created_at, updated_at`

func scanSale(row pgx.Row) (*Sale, error) {
	var s Sale
	err := row.Scan(
		&s.ID, &s.ClientID, &s.LotID, &s.Status, &s.TotalValue, &s.DownPayment,
		&s.TotalInstallments, &s.InstallmentValue, &s.FirstDueDate, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sales: scan: %w", err)
	}
	return &s, nil
}

// CreateSale atomically marks the lot sold and inserts the contract. The lot
// transition and the contract row commit or roll back together, so a lot can
// never be sold without a contract or vice versa.
func (r *Repository) CreateSale(ctx context.Context, sale Sale) (*Sale, error) {
	var created *Sale
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.lots.MarkSold(ctx, tx, sale.LotID); err != nil {
			return err
		}

		query := `
			INSERT INTO client_lots (
				client_id, lot_id, status, total_value, down_payment,
				total_installments, installment_value, first_due_date, created_at, updated_at
			) VALUES ($1, $2, 'active', $3, $4, $5, $6, $7, NOW(), NOW())
			RETURNING ` + saleColumns

		var err error
		created, err = scanSale(tx.QueryRow(ctx, query,
			sale.ClientID, sale.LotID, sale.TotalValue, sale.DownPayment,
			sale.TotalInstallments, sale.InstallmentValue, sale.FirstDueDate,
		))
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CancelSale atomically cancels the contract and releases the lot.
func (r *Repository) CancelSale(ctx context.Context, saleID string) (*Sale, error) {
	var cancelled *Sale
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			UPDATE client_lots SET status = 'cancelled', updated_at = NOW()
			WHERE id = $1 AND status = 'active'
			RETURNING ` + saleColumns

		var err error
		cancelled, err = scanSale(tx.QueryRow(ctx, query, saleID))
		if errors.Is(err, shared.ErrNotFound) {
			if _, gerr := r.Get(ctx, saleID); gerr != nil {
				return gerr
			}
			return fmt.Errorf("%w: sale is not active", shared.ErrConflict)
		}
		if err != nil {
			return err
		}
		return r.lots.Release(ctx, tx, cancelled.LotID)
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// Complete marks a fully paid contract completed.
func (r *Repository) Complete(ctx context.Context, saleID string) (*Sale, error) {
	query := `
		UPDATE client_lots SET status = 'completed', updated_at = NOW()
		WHERE id = $1 AND status = 'active'
		RETURNING ` + saleColumns
	completed, err := scanSale(r.pool.QueryRow(ctx, query, saleID))
	if errors.Is(err, shared.ErrNotFound) {
		if _, gerr := r.Get(ctx, saleID); gerr != nil {
			return nil, gerr
		}
		return nil, fmt.Errorf("%w: sale is not active", shared.ErrConflict)
	}
	return completed, err
}

// Get fetches a sale by ID.
func (r *Repository) Get(ctx context.Context, id string) (*Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM client_lots WHERE id = $1`
	return scanSale(r.pool.QueryRow(ctx, query, id))
}

// ListByClient returns a client's contracts newest first.
func (r *Repository) ListByClient(ctx context.Context, clientID string) ([]Sale, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+saleColumns+` FROM client_lots WHERE client_id = $1 ORDER BY created_at DESC`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("sales: list by client: %w", err)
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// List returns all contracts page by page, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status SaleStatus, page, pageSize int) ([]Sale, *shared.Pagination, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM client_lots WHERE $1 = '' OR status = $1`, string(status),
	).Scan(&total)
	if err != nil {
		return nil, nil, fmt.Errorf("sales: count: %w", err)
	}

	pagination := shared.NewPagination(page, pageSize, total)
	rows, err := r.pool.Query(ctx, `
		SELECT `+saleColumns+` FROM client_lots
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		string(status), pageSize, pagination.Offset(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("sales: list: %w", err)
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, *s)
	}
	return out, &pagination, rows.Err()
}
