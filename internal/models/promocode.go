package models

import (
	"time"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
)

// PromoCode скидка в процентах с ограниченным числом применений.
type PromoCode struct {
	Code            string    `json:"code"`
	DiscountPercent int       `json:"discount_percent"`
	MaxUses         int       `json:"max_uses"`
	UsesCount       int       `json:"uses_count"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Discounted цена после скидки percent процентов, с округлением до копейки.
func Discounted(price money.Amount, percent int) money.Amount {
	return price - price.Percent(int64(percent))
}
