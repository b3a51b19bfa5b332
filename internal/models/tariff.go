package models

import "github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"

// Tariff тарифный план.
type Tariff struct {
	ID       int64        `json:"id"`
	Key      string       `json:"key"`
	Name     string       `json:"name"`
	Price    money.Amount `json:"price"`
	Days     int          `json:"days"`
	GB       int          `json:"gb"`
	IsActive bool         `json:"is_active"`
}
