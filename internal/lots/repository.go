package lots

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solterra/solterra/internal/shared"
)

// Repository provides PostgreSQL backed persistence for developments and lots.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// --- Developments ---

const developmentColumns = `id, name, location, created_at, updated_at`

func scanDevelopment(row pgx.Row) (*Development, error) {
	var d Development
	err := row.Scan(&d.ID, &d.Name, &d.Location, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lots: scan development: %w", err)
	}
	return &d, nil
}

// CreateDevelopment inserts a development.
func (r *Repository) CreateDevelopment(ctx context.Context, input CreateDevelopmentInput) (*Development, error) {
	query := `
		INSERT INTO developments (name, location, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING ` + developmentColumns
	return scanDevelopment(r.pool.QueryRow(ctx, query, input.Name, input.Location))
}

// GetDevelopment fetches a development by ID.
func (r *Repository) GetDevelopment(ctx context.Context, id string) (*Development, error) {
	query := `SELECT ` + developmentColumns + ` FROM developments WHERE id = $1`
	return scanDevelopment(r.pool.QueryRow(ctx, query, id))
}

// ListDevelopments returns all developments ordered by name.
func (r *Repository) ListDevelopments(ctx context.Context) ([]Development, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+developmentColumns+` FROM developments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("lots: list developments: %w", err)
	}
	defer rows.Close()

	var out []Development
	for rows.Next() {
		d, err := scanDevelopment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// --- Lots ---

const lotColumns = `id, development_id, number, block, area_m2, price, status,
	description, created_at, updated_at`

func scanLot(row pgx.Row) (*Lot, error) {
	var l Lot
	err := row.Scan(
		&l.ID, &l.DevelopmentID, &l.Number, &l.Block, &l.AreaM2, &l.Price,
		&l.Status, &l.Description, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lots: scan lot: %w", err)
	}
	return &l, nil
}

// CreateLot inserts a lot as available. Lot numbers are unique per
// development.
func (r *Repository) CreateLot(ctx context.Context, input CreateLotInput) (*Lot, error) {
	query := `
		INSERT INTO lots (development_id, number, block, area_m2, price, status, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'available', $6, NOW(), NOW())
		RETURNING ` + lotColumns

	lot, err := scanLot(r.pool.QueryRow(ctx, query,
		input.DevelopmentID, input.Number, input.Block, input.AreaM2, input.Price, input.Description,
	))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return nil, fmt.Errorf("%w: lot number already exists in development", shared.ErrConflict)
		case "23503":
			return nil, fmt.Errorf("%w: development not found", shared.ErrValidation)
		}
	}
	return lot, err
}

// GetLot fetches a lot by ID.
func (r *Repository) GetLot(ctx context.Context, id string) (*Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = $1`
	return scanLot(r.pool.QueryRow(ctx, query, id))
}

// ListLots returns lots matching the filter ordered by development and number.
func (r *Repository) ListLots(ctx context.Context, filter LotFilter, page, pageSize int) ([]Lot, *shared.Pagination, error) {
	where := []string{"TRUE"}
	args := []any{}
	if filter.DevelopmentID != "" {
		args = append(args, filter.DevelopmentID)
		where = append(where, fmt.Sprintf("development_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lots WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, nil, fmt.Errorf("lots: count: %w", err)
	}

	pagination := shared.NewPagination(page, pageSize, total)
	query := fmt.Sprintf(`
		SELECT `+lotColumns+` FROM lots
		WHERE %s
		ORDER BY development_id, number
		LIMIT $%d OFFSET $%d`, cond, len(args)+1, len(args)+2)
	args = append(args, pageSize, pagination.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("lots: list: %w", err)
	}
	defer rows.Close()

	var out []Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, *l)
	}
	return out, &pagination, rows.Err()
}

// UpdateLot applies partial changes to a lot.
func (r *Repository) UpdateLot(ctx context.Context, id string, input UpdateLotInput) (*Lot, error) {
	query := `
		UPDATE lots SET
			number = COALESCE($2, number),
			block = COALESCE($3, block),
			area_m2 = COALESCE($4, area_m2),
			price = COALESCE($5, price),
			description = COALESCE($6, description),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + lotColumns

	return scanLot(r.pool.QueryRow(ctx, query,
		id, input.Number, input.Block, input.AreaM2, input.Price, input.Description,
	))
}

// MarkSold transitions an available lot to sold. Reserved lots must be
// released first. The conditional update is the concurrency guard: two
// concurrent sales of the same lot race on it and exactly one wins, the
// loser gets ErrConflict.
func (r *Repository) MarkSold(ctx context.Context, tx pgx.Tx, lotID string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE lots SET status = 'sold', updated_at = NOW() WHERE id = $1 AND status = 'available'`,
		lotID,
	)
	if err != nil {
		return fmt.Errorf("lots: mark sold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetLot(ctx, lotID); err != nil {
			return err
		}
		return fmt.Errorf("%w: lot is not available", shared.ErrConflict)
	}
	return nil
}

// Release puts a lot back on the market after a cancelled sale.
func (r *Repository) Release(ctx context.Context, tx pgx.Tx, lotID string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE lots SET status = 'available', updated_at = NOW() WHERE id = $1 AND status = 'sold'`,
		lotID,
	)
	if err != nil {
		return fmt.Errorf("lots: release: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: lot is not sold", shared.ErrConflict)
	}
	return nil
}

// Reserve holds an available lot during negotiation.
func (r *Repository) Reserve(ctx context.Context, lotID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE lots SET status = 'reserved', updated_at = NOW() WHERE id = $1 AND status = 'available'`,
		lotID,
	)
	if err != nil {
		return fmt.Errorf("lots: reserve: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: lot is not available", shared.ErrConflict)
	}
	return nil
}

// CountByStatus returns lot counts grouped by status, optionally scoped to a
// development.
func (r *Repository) CountByStatus(ctx context.Context, developmentID string) (map[LotStatus]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM lots
		WHERE $1 = '' OR development_id = $1
		GROUP BY status`, developmentID)
	if err != nil {
		return nil, fmt.Errorf("lots: count by status: %w", err)
	}
	defer rows.Close()

	counts := map[LotStatus]int{}
	for rows.Next() {
		var status LotStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("lots: count by status: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
