package services

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus enumerates service order lifecycle states.
type OrderStatus string

const (
	OrderStatusRequested  OrderStatus = "requested"
	OrderStatusApproved   OrderStatus = "approved"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// ServiceType is a catalog entry of services offered to lot owners, priced
// with a default the order can override.
type ServiceType struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	BasePrice   decimal.Decimal `json:"base_price"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Order is a client's request for a catalog service, optionally tied to one
// of their lots.
type Order struct {
	ID            string           `json:"id"`
	ClientID      string           `json:"client_id"`
	LotID         *string          `json:"lot_id,omitempty"`
	ServiceTypeID string           `json:"service_type_id"`
	RequestedDate time.Time        `json:"requested_date"`
	ExecutionDate *time.Time       `json:"execution_date,omitempty"`
	Status        OrderStatus      `json:"status"`
	Cost          decimal.Decimal  `json:"cost"`
	Revenue       *decimal.Decimal `json:"revenue,omitempty"`
	Notes         string           `json:"notes,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// CreateServiceTypeInput carries the fields accepted on catalog creation.
type CreateServiceTypeInput struct {
	Name        string          `json:"name" validate:"required,min=2,max=100"`
	Description string          `json:"description"`
	BasePrice   decimal.Decimal `json:"base_price"`
	IsActive    *bool           `json:"is_active"`
}

// UpdateServiceTypeInput carries the mutable catalog fields.
type UpdateServiceTypeInput struct {
	Name        *string          `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string          `json:"description"`
	BasePrice   *decimal.Decimal `json:"base_price"`
	IsActive    *bool            `json:"is_active"`
}

// CreateOrderInput carries the fields a client submits when requesting a
// service.
type CreateOrderInput struct {
	LotID         *string   `json:"lot_id"`
	ServiceTypeID string    `json:"service_type_id" validate:"required"`
	RequestedDate time.Time `json:"requested_date" validate:"required"`
	Notes         string    `json:"notes"`
}

// UpdateOrderInput carries the fields the back office may change.
type UpdateOrderInput struct {
	Status        *OrderStatus     `json:"status"`
	ExecutionDate *time.Time       `json:"execution_date"`
	Cost          *decimal.Decimal `json:"cost"`
	Revenue       *decimal.Decimal `json:"revenue"`
	Notes         *string          `json:"notes"`
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	ClientID      string
	Status        OrderStatus
	ServiceTypeID string
}

// Analytics aggregates order economics.
type Analytics struct {
	TotalOrders    int                 `json:"total_orders"`
	TotalCost      decimal.Decimal     `json:"total_cost"`
	TotalRevenue   decimal.Decimal     `json:"total_revenue"`
	Profit         decimal.Decimal     `json:"profit"`
	OrdersByStatus map[OrderStatus]int `json:"orders_by_status"`
	OrdersByType   map[string]int      `json:"orders_by_type"`
}
