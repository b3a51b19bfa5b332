package models

import "time"

// InvoiceStatus статус счета в хранилище.
type InvoiceStatus string

const (
	InvoiceWaiting InvoiceStatus = "waiting"
	InvoicePaid    InvoiceStatus = "paid"
)

// PaymentType назначение счета.
type PaymentType string

const (
	PaymentSubscription PaymentType = "subscription"
	PaymentTopUp        PaymentType = "balance_topup"
)

// Invoice счет во внешнем платежном процессоре.
//
// Для подписки Amount хранит цену тарифа в валюте расчетов, для пополнения
// количество криптовалюты Currency.
type Invoice struct {
	ID        int64         `json:"invoice_id"`
	UserID    int64         `json:"user_id"`
	TariffKey string        `json:"tariff_key,omitempty"`
	Amount    float64       `json:"amount"`
	Currency  string        `json:"currency"`
	Status    InvoiceStatus `json:"status"`
	Type      PaymentType   `json:"payment_type"`
	PayURL    string        `json:"pay_url,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	PaidAt    *time.Time    `json:"paid_at,omitempty"`
}
