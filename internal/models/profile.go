package models

import "time"

// Profile выданный пользователю доступ на конкретном сервере.
type Profile struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ServerID   int64     `json:"server_id"`
	ClientID   string    `json:"client_id"`
	Label      string    `json:"label"`
	Descriptor string    `json:"descriptor"`
	InboundID  int       `json:"inbound_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProfileWithServer профиль вместе с данными сервера, на котором он выдан.
type ProfileWithServer struct {
	Profile
	Server Server
}
