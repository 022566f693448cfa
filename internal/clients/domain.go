package clients

import "time"

// Client is a buyer managed by the back office. A client may exist before the
// person ever logs in, so the user link is optional.
type Client struct {
	ID                string     `json:"id"`
	UserID            *string    `json:"user_id,omitempty"`
	FullName          string     `json:"full_name"`
	Document          string     `json:"document"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone,omitempty"`
	Address           string     `json:"address,omitempty"`
	GatewayCustomerID *string    `json:"gateway_customer_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeletedAt         *time.Time `json:"-"`
}

// CreateClientInput carries the fields accepted on creation.
type CreateClientInput struct {
	FullName string `json:"full_name" validate:"required,min=3"`
	Document string `json:"document" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

// UpdateClientInput carries the mutable fields. Nil means leave unchanged.
type UpdateClientInput struct {
	FullName *string `json:"full_name" validate:"omitempty,min=3"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
}
