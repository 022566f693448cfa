package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/solterra/solterra/internal/shared"
)

// Repository provides PostgreSQL backed persistence for invoices and the
// issuance outbox.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, client_lot_id, remote_payment_id, due_date, amount, status,
	installment_number, barcode, payment_url, paid_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.ClientLotID, &inv.RemotePaymentID, &inv.DueDate, &inv.Amount,
		&inv.Status, &inv.InstallmentNumber, &inv.Barcode, &inv.PaymentURL,
		&inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("billing: scan invoice: %w", err)
	}
	return &inv, nil
}

// CreateInvoice inserts a pending invoice issued against the gateway.
func (r *Repository) CreateInvoice(ctx context.Context, inv Invoice) (*Invoice, error) {
	query := `
		INSERT INTO invoices (
			client_lot_id, remote_payment_id, due_date, amount, status,
			installment_number, barcode, payment_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING ` + invoiceColumns

	return scanInvoice(r.pool.QueryRow(ctx, query,
		inv.ClientLotID, inv.RemotePaymentID, inv.DueDate, inv.Amount, inv.Status,
		inv.InstallmentNumber, inv.Barcode, inv.PaymentURL,
	))
}

// GetInvoice fetches a single invoice by ID.
func (r *Repository) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return scanInvoice(r.pool.QueryRow(ctx, query, id))
}

// GetInvoiceByRemoteID fetches the invoice linked to a gateway payment.
func (r *Repository) GetInvoiceByRemoteID(ctx context.Context, remotePaymentID string) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE remote_payment_id = $1`
	return scanInvoice(r.pool.QueryRow(ctx, query, remotePaymentID))
}

// InvoiceEventUpdate carries the fields a webhook event may change.
type InvoiceEventUpdate struct {
	Status     InvoiceStatus
	PaidAt     *time.Time
	Barcode    *string
	PaymentURL *string
}

// ApplyEventUpdate mutates an invoice from a reconciled webhook event.
// Barcode and payment URL are only overwritten when the event carries them,
// and paid_at is only set on payment, never cleared by later events.
func (r *Repository) ApplyEventUpdate(ctx context.Context, invoiceID string, upd InvoiceEventUpdate) error {
	query := `
		UPDATE invoices SET
			status = $2,
			paid_at = COALESCE($3, paid_at),
			barcode = COALESCE($4, barcode),
			payment_url = COALESCE($5, payment_url),
			updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, invoiceID, upd.Status, upd.PaidAt, upd.Barcode, upd.PaymentURL)
	if err != nil {
		return fmt.Errorf("billing: apply event update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	ClientID    string
	ClientLotID string
	Status      InvoiceStatus
}

// ListInvoices returns invoices for a client ordered by due date, with totals
// by status and pagination computed over the same filter.
func (r *Repository) ListInvoices(ctx context.Context, filter InvoiceFilter, page, pageSize int) ([]Invoice, InvoiceTotals, *shared.Pagination, error) {
	where := []string{"cl.client_id = $1"}
	args := []any{filter.ClientID}

	if filter.ClientLotID != "" {
		args = append(args, filter.ClientLotID)
		where = append(where, fmt.Sprintf("i.client_lot_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("i.status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	totalsQuery := `
		SELECT
			COUNT(*),
			COALESCE(SUM(i.amount) FILTER (WHERE i.status = 'pending'), 0),
			COALESCE(SUM(i.amount) FILTER (WHERE i.status = 'paid'), 0),
			COALESCE(SUM(i.amount) FILTER (WHERE i.status = 'overdue'), 0)
		FROM invoices i
		JOIN client_lots cl ON cl.id = i.client_lot_id
		WHERE ` + cond

	var total int
	var totals InvoiceTotals
	if err := r.pool.QueryRow(ctx, totalsQuery, args...).Scan(&total, &totals.Pending, &totals.Paid, &totals.Overdue); err != nil {
		return nil, InvoiceTotals{}, nil, fmt.Errorf("billing: invoice totals: %w", err)
	}

	pagination := shared.NewPagination(page, pageSize, total)
	listQuery := fmt.Sprintf(`
		SELECT i.id, i.client_lot_id, i.remote_payment_id, i.due_date, i.amount, i.status,
			i.installment_number, i.barcode, i.payment_url, i.paid_at, i.created_at, i.updated_at
		FROM invoices i
		JOIN client_lots cl ON cl.id = i.client_lot_id
		WHERE %s
		ORDER BY i.due_date, i.installment_number
		LIMIT $%d OFFSET $%d`, cond, len(args)+1, len(args)+2)
	args = append(args, pageSize, pagination.Offset())

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, InvoiceTotals{}, nil, fmt.Errorf("billing: list invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]Invoice, 0, pageSize)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, InvoiceTotals{}, nil, err
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, InvoiceTotals{}, nil, fmt.Errorf("billing: list invoices: %w", err)
	}
	return invoices, totals, &pagination, nil
}

// ListInvoicesForLot returns every invoice of one sale ordered by installment.
func (r *Repository) ListInvoicesForLot(ctx context.Context, clientLotID string) ([]Invoice, InvoiceTotals, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE client_lot_id = $1 ORDER BY installment_number`,
		clientLotID,
	)
	if err != nil {
		return nil, InvoiceTotals{}, fmt.Errorf("billing: list invoices for lot: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	var totals InvoiceTotals
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, InvoiceTotals{}, err
		}
		invoices = append(invoices, *inv)
		switch inv.Status {
		case InvoiceStatusPending:
			totals.Pending = totals.Pending.Add(inv.Amount)
		case InvoiceStatusPaid:
			totals.Paid = totals.Paid.Add(inv.Amount)
		case InvoiceStatusOverdue:
			totals.Overdue = totals.Overdue.Add(inv.Amount)
		}
	}
	return invoices, totals, rows.Err()
}

// OverdueInvoice is the slice of an invoice the sweep needs to notify on.
type OverdueInvoice struct {
	ID          string
	ClientLotID string
	Amount      decimal.Decimal
	DueDate     time.Time
}

// MarkOverdueBefore flips pending invoices past due into overdue and returns
// the affected invoices. Used by the worker sweep as a safety net behind webhooks.
func (r *Repository) MarkOverdueBefore(ctx context.Context, cutoff time.Time) ([]OverdueInvoice, error) {
	query := `
		UPDATE invoices SET status = 'overdue', updated_at = NOW()
		WHERE status = 'pending' AND due_date < $1
		RETURNING id, client_lot_id, amount, due_date`

	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("billing: mark overdue: %w", err)
	}
	defer rows.Close()

	var flagged []OverdueInvoice
	for rows.Next() {
		var inv OverdueInvoice
		if err := rows.Scan(&inv.ID, &inv.ClientLotID, &inv.Amount, &inv.DueDate); err != nil {
			return nil, fmt.Errorf("billing: mark overdue: %w", err)
		}
		flagged = append(flagged, inv)
	}
	return flagged, rows.Err()
}

// --- Issuance outbox ---

// EnqueueOutbox records an installment whose remote issuance failed.
func (r *Repository) EnqueueOutbox(ctx context.Context, entry OutboxEntry) error {
	query := `
		INSERT INTO issuance_outbox (
			client_lot_id, installment_number, amount, due_date, description,
			customer_ref, attempts, last_error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	_, err := r.pool.Exec(ctx, query,
		entry.ClientLotID, entry.InstallmentNumber, entry.Amount, entry.DueDate,
		entry.Description, entry.CustomerRef, entry.Attempts, entry.LastError,
	)
	if err != nil {
		return fmt.Errorf("billing: enqueue outbox: %w", err)
	}
	return nil
}

// ListPendingOutbox returns unsettled outbox entries oldest first.
func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]OutboxEntry, error) {
	query := `
		SELECT id, client_lot_id, installment_number, amount, due_date, description,
			customer_ref, attempts, last_error, created_at, settled_at
		FROM issuance_outbox
		WHERE settled_at IS NULL
		ORDER BY created_at
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("billing: list outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(
			&e.ID, &e.ClientLotID, &e.InstallmentNumber, &e.Amount, &e.DueDate,
			&e.Description, &e.CustomerRef, &e.Attempts, &e.LastError, &e.CreatedAt, &e.SettledAt,
		); err != nil {
			return nil, fmt.Errorf("billing: scan outbox: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SettleOutbox marks an entry as issued.
func (r *Repository) SettleOutbox(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE issuance_outbox SET settled_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("billing: settle outbox: %w", err)
	}
	return nil
}

// RecordOutboxFailure bumps the attempt counter after a failed retry.
func (r *Repository) RecordOutboxFailure(ctx context.Context, id int64, lastError string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE issuance_outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`,
		id, lastError,
	)
	if err != nil {
		return fmt.Errorf("billing: record outbox failure: %w", err)
	}
	return nil
}

// ResolveCustomerRef finds the current gateway customer for a sold lot. Used
// by outbox retries when the ref was unknown at sale time.
func (r *Repository) ResolveCustomerRef(ctx context.Context, clientLotID string) (string, error) {
	query := `
		SELECT COALESCE(c.gateway_customer_id, '')
		FROM client_lots cl
		JOIN clients c ON c.id = cl.client_id
		WHERE cl.id = $1`

	var ref string
	err := r.pool.QueryRow(ctx, query, clientLotID).Scan(&ref)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("billing: resolve customer ref: %w", err)
	}
	return ref, nil
}

func (r *Repository) clientOwnsLot(ctx context.Context, clientID, clientLotID string) (bool, error) {
	var owned bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM client_lots WHERE id = $1 AND client_id = $2)`,
		clientLotID, clientID,
	).Scan(&owned)
	if err != nil {
		return false, fmt.Errorf("billing: ownership check: %w", err)
	}
	return owned, nil
}

// CancelOpenInvoicesForLot cancels every non-final invoice of a sale and
// returns the remote payment IDs so the caller can void them at the gateway.
func (r *Repository) CancelOpenInvoicesForLot(ctx context.Context, clientLotID string) ([]string, error) {
	query := `
		UPDATE invoices SET status = 'cancelled', updated_at = NOW()
		WHERE client_lot_id = $1 AND status IN ('pending', 'overdue')
		RETURNING COALESCE(remote_payment_id, '')`

	rows, err := r.pool.Query(ctx, query, clientLotID)
	if err != nil {
		return nil, fmt.Errorf("billing: cancel open invoices: %w", err)
	}
	defer rows.Close()

	var remoteIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("billing: cancel open invoices: %w", err)
		}
		if id != "" {
			remoteIDs = append(remoteIDs, id)
		}
	}
	return remoteIDs, rows.Err()
}

// SumAmountByStatus totals invoice amounts for one status across all clients.
func (r *Repository) SumAmountByStatus(ctx context.Context, status InvoiceStatus) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM invoices WHERE status = $1`, status,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("billing: sum by status: %w", err)
	}
	return sum, nil
}
