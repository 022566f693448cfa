package dashboard

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/solterra/solterra/internal/notify"
	"github.com/solterra/solterra/internal/sales"
)

// AdminStats is the back-office landing summary.
type AdminStats struct {
	TotalClients           int `json:"total_clients"`
	ActiveClients          int `json:"active_clients"`
	DefaulterClients       int `json:"defaulter_clients"`
	TotalLots              int `json:"total_lots"`
	AvailableLots          int `json:"available_lots"`
	SoldLots               int `json:"sold_lots"`
	OpenServiceOrders      int `json:"open_service_orders"`
	CompletedServiceOrders int `json:"completed_service_orders"`
}

// Defaulter is one client with overdue installments.
type Defaulter struct {
	ClientID          string          `json:"client_id"`
	ClientName        string          `json:"client_name"`
	Document          string          `json:"cpf_cnpj"`
	Phone             string          `json:"phone"`
	OverdueAmount     decimal.Decimal `json:"overdue_amount"`
	OverdueInvoices   int             `json:"overdue_invoices_count"`
	OldestOverdueDate time.Time       `json:"oldest_overdue_date"`
}

// FinancialDashboard aggregates money across billing and services.
type FinancialDashboard struct {
	TotalReceivables    decimal.Decimal `json:"total_receivables"`
	TotalReceived       decimal.Decimal `json:"total_received"`
	TotalOverdue        decimal.Decimal `json:"total_overdue"`
	Defaulters          []Defaulter     `json:"defaulters"`
	RevenueFromServices decimal.Decimal `json:"revenue_from_services"`
	ServiceCosts        decimal.Decimal `json:"service_costs"`
	ServiceProfit       decimal.Decimal `json:"service_profit"`
}

// ClientDashboard is the portal landing page for one client.
type ClientDashboard struct {
	ClientName          string                `json:"client_name"`
	Contracts           []sales.Sale          `json:"contracts"`
	PendingInvoices     int                   `json:"pending_invoices"`
	TotalPendingAmount  decimal.Decimal       `json:"total_pending_amount"`
	NextDueDate         *time.Time            `json:"next_due_date,omitempty"`
	OpenServiceOrders   int                   `json:"open_service_orders"`
	RecentNotifications []notify.Notification `json:"recent_notifications"`
}
