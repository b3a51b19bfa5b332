package models

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUnknownTariff       = errors.New("unknown tariff")
	ErrNoActiveServer      = errors.New("no active server")
	ErrRemoteProvisioning  = errors.New("remote provisioning failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrTrialUsed           = errors.New("trial already used")
	ErrBelowMinimumDeposit = errors.New("amount below minimum deposit")
	ErrUnsupportedAsset    = errors.New("unsupported asset")
	ErrOrphanNotFound      = errors.New("reconciliation item not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidPromoCode    = errors.New("promo code is invalid or exhausted")
	ErrPromoCodeExists     = errors.New("promo code already exists")
)
