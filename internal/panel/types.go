package panel

import "time"

// Config таймауты обращений к панели.
type Config struct {
	LoginTimeout   time.Duration
	RequestTimeout time.Duration
}

// CreateRequest параметры нового клиента на панели.
type CreateRequest struct {
	InboundID int
	OwnerID   int64
	Days      int
	QuotaGB   int
	Flow      string
}

// Created результат создания клиента.
type Created struct {
	ClientID string
	Label    string
}

type panelResponse struct {
	Success *bool  `json:"success"`
	Msg     string `json:"msg"`
}

func (r panelResponse) ok() bool {
	return r.Success != nil && *r.Success
}

type addClientRequest struct {
	ID       int    `json:"id"`
	Settings string `json:"settings"`
}

type clientSettings struct {
	Clients []clientEntry `json:"clients"`
}

type clientEntry struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Flow       string `json:"flow"`
	TotalGB    int64  `json:"totalGB"`
	ExpiryTime int64  `json:"expiryTime"`
	Enable     bool   `json:"enable"`
	TgID       string `json:"tgId"`
	SubID      string `json:"subId"`
}
