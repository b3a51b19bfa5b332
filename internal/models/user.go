// Package models описывает сущности движка выдачи доступов и расчетов.
package models

import (
	"time"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
)

// User пользователь сервиса. Идентификатор совпадает с chat id в Telegram.
type User struct {
	ID                 int64        `json:"user_id"`
	Username           string       `json:"username,omitempty"`
	ReferrerID         *int64       `json:"referrer_id,omitempty"`
	MainBalance        money.Amount `json:"main_balance"`
	ReferralBalance    money.Amount `json:"referral_balance"`
	SubscriptionType   string       `json:"subscription_type,omitempty"`
	SubscriptionExpiry *time.Time   `json:"subscription_expiry,omitempty"`
	HasUsedTrial       bool         `json:"has_used_trial"`
	CreatedAt          time.Time    `json:"created_at"`
}

// Balances пара балансов пользователя.
type Balances struct {
	Main     money.Amount `json:"main"`
	Referral money.Amount `json:"referral"`
}

// Total сумма обоих балансов.
func (b Balances) Total() money.Amount {
	return b.Main + b.Referral
}

// Account сводка по пользователю для отображения.
type Account struct {
	UserID             int64        `json:"user_id"`
	Main               money.Amount `json:"main_balance"`
	Referral           money.Amount `json:"referral_balance"`
	ReferralCount      int          `json:"referral_count"`
	SubscriptionType   string       `json:"subscription_type,omitempty"`
	SubscriptionExpiry *time.Time   `json:"subscription_expiry,omitempty"`
}

// ExpiringUser пользователь с подпиской, истекающей в окне напоминаний.
type ExpiringUser struct {
	UserID             int64     `json:"user_id"`
	SubscriptionExpiry time.Time `json:"subscription_expiry"`
}
