package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Address struct {
	ID      int64  `json:"id"`
	Label   string `json:"label"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone"`
}

type ShippingRate struct {
	ID            string          `json:"id"`
	Carrier       string          `json:"carrier"`
	Service       string          `json:"service"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	EstimatedDays int             `json:"estimated_days,omitempty"`
}

type OrderConfirmation struct {
	ID        string          `json:"id"`
	Reference string          `json:"reference,omitempty"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
