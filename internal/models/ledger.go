package models

import (
	"time"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
)

// EntryKind вид движения по балансам.
type EntryKind string

const (
	EntryTopUp         EntryKind = "topup"
	EntryCredit        EntryKind = "credit"
	EntryReferralBonus EntryKind = "referral_bonus"
	EntryPurchase      EntryKind = "purchase"
	EntryRefund        EntryKind = "refund"
)

// LedgerEntry запись журнала. Дельты со знаком: списания отрицательные.
type LedgerEntry struct {
	ID            int64        `json:"id"`
	UserID        int64        `json:"user_id"`
	Kind          EntryKind    `json:"kind"`
	MainDelta     money.Amount `json:"main_delta"`
	ReferralDelta money.Amount `json:"referral_delta"`
	InvoiceID     *int64       `json:"invoice_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}
