package lots

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotStatus enumerates lot availability states.
type LotStatus string

const (
	LotStatusAvailable LotStatus = "available"
	LotStatusReserved  LotStatus = "reserved"
	LotStatusSold      LotStatus = "sold"
)

// Development is a land development containing lots.
type Development struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lot is a single sellable plot of a development.
type Lot struct {
	ID            string          `json:"id"`
	DevelopmentID string          `json:"development_id"`
	Number        string          `json:"number"`
	Block         string          `json:"block,omitempty"`
	AreaM2        decimal.Decimal `json:"area_m2"`
	Price         decimal.Decimal `json:"price"`
	Status        LotStatus       `json:"status"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CreateDevelopmentInput carries the fields accepted on creation.
type CreateDevelopmentInput struct {
	Name     string `json:"name" validate:"required,min=2"`
	Location string `json:"location"`
}

// CreateLotInput carries the fields accepted on lot creation.
type CreateLotInput struct {
	DevelopmentID string          `json:"development_id" validate:"required"`
	Number        string          `json:"number" validate:"required"`
	Block         string          `json:"block"`
	AreaM2        decimal.Decimal `json:"area_m2"`
	Price         decimal.Decimal `json:"price" validate:"required"`
	Description   string          `json:"description"`
}

// UpdateLotInput carries the mutable lot fields. Nil means leave unchanged.
// Status is not here: availability transitions go through dedicated methods.
type UpdateLotInput struct {
	Number      *string          `json:"number"`
	Block       *string          `json:"block"`
	AreaM2      *decimal.Decimal `json:"area_m2"`
	Price       *decimal.Decimal `json:"price"`
	Description *string          `json:"description"`
}

// LotFilter narrows lot listings.
type LotFilter struct {
	DevelopmentID string
	Status        LotStatus
}
