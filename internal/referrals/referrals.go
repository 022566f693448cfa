package referrals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solterra/solterra/internal/platform/httpx"
	"github.com/solterra/solterra/internal/shared"
)

// Status enumerates referral follow-up states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusContacted Status = "contacted"
	StatusConverted Status = "converted"
	StatusLost      Status = "lost"
)

// Referral is a prospect indicated by an existing client.
type Referral struct {
	ID               string    `json:"id"`
	ReferrerClientID string    `json:"referrer_client_id"`
	ReferredName     string    `json:"referred_name"`
	ReferredPhone    string    `json:"referred_phone"`
	ReferredEmail    *string   `json:"referred_email,omitempty"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// CreateInput carries the fields a client submits when referring someone.
type CreateInput struct {
	ReferredName  string  `json:"referred_name" validate:"required,min=2,max=100"`
	ReferredPhone string  `json:"referred_phone" validate:"required,min=10,max=20"`
	ReferredEmail *string `json:"referred_email" validate:"omitempty,email"`
}

// Repository provides PostgreSQL backed persistence for referrals.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, referrer_client_id, referred_name, referred_phone, referred_email, status, created_at`

func scan(row pgx.Row) (*Referral, error) {
	var ref Referral
	err := row.Scan(&ref.ID, &ref.ReferrerClientID, &ref.ReferredName, &ref.ReferredPhone,
		&ref.ReferredEmail, &ref.Status, &ref.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("referrals: scan: %w", err)
	}
	return &ref, nil
}

// Create inserts a referral in pending status.
func (r *Repository) Create(ctx context.Context, referrerClientID string, input CreateInput) (*Referral, error) {
	query := `
		INSERT INTO referrals (referrer_client_id, referred_name, referred_phone, referred_email, status, created_at)
		VALUES ($1, $2, $3, $4, 'pending', NOW())
		RETURNING ` + columns
	return scan(r.pool.QueryRow(ctx, query,
		referrerClientID, input.ReferredName, input.ReferredPhone, input.ReferredEmail))
}

// ListByReferrer returns a client's referrals newest first.
func (r *Repository) ListByReferrer(ctx context.Context, clientID string) ([]Referral, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+columns+` FROM referrals WHERE referrer_client_id = $1 ORDER BY created_at DESC`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("referrals: list: %w", err)
	}
	defer rows.Close()

	var out []Referral
	for rows.Next() {
		ref, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ref)
	}
	return out, rows.Err()
}

// ListAll returns every referral for back-office follow up.
func (r *Repository) ListAll(ctx context.Context, status Status) ([]Referral, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+columns+` FROM referrals WHERE $1 = '' OR status = $1 ORDER BY created_at DESC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("referrals: list all: %w", err)
	}
	defer rows.Close()

	var out []Referral
	for rows.Next() {
		ref, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ref)
	}
	return out, rows.Err()
}

// SetStatus moves a referral through follow up.
func (r *Repository) SetStatus(ctx context.Context, id string, status Status) (*Referral, error) {
	query := `UPDATE referrals SET status = $2 WHERE id = $1 RETURNING ` + columns
	return scan(r.pool.QueryRow(ctx, query, id, status))
}

// Handler manages referral endpoints.
type Handler struct {
	logger   *slog.Logger
	repo     *Repository
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// MountClientRoutes registers the client's referral routes.
func (h *Handler) MountClientRoutes(r chi.Router) {
	r.Get("/referrals", h.listOwn)
	r.Post("/referrals", h.create)
}

// MountAdminRoutes registers back-office follow-up routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/referrals", h.listAll)
	r.Patch("/referrals/{id}", h.setStatus)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok || principal.ClientID == "" {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, err.Error())
		return
	}
	ref, err := h.repo.Create(r.Context(), principal.ClientID, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ref)
}

func (h *Handler) listOwn(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok || principal.ClientID == "" {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	list, err := h.repo.ListByReferrer(r.Context(), principal.ClientID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"referrals": list})
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListAll(r.Context(), Status(r.URL.Query().Get("status")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"referrals": list})
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status Status `json:"status"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	switch body.Status {
	case StatusPending, StatusContacted, StatusConverted, StatusLost:
	default:
		httpx.Problem(w, http.StatusBadRequest, "unknown referral status")
		return
	}
	ref, err := h.repo.SetStatus(r.Context(), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ref)
}
