package models

import "time"

// Orphan клиент на панели, который не удалось удалить при отзыве доступа.
type Orphan struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ServerID   int64     `json:"server_id"`
	ServerName string    `json:"server_name"`
	InboundID  int       `json:"inbound_id"`
	ClientID   string    `json:"client_id"`
	CreatedAt  time.Time `json:"created_at"`
}
