package models

import "strings"

// Server сервер с панелью управления, на котором выдаются доступы.
type Server struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	PanelURL      string `json:"panel_url"`
	PanelUsername string `json:"-"`
	PanelPassword string `json:"-"`
	Address       string `json:"address"`
	Port          int    `json:"port"`
	InboundID     int    `json:"inbound_id"`
	SNI           string `json:"sni"`
	Flow          string `json:"flow"`
	PublicKey     string `json:"public_key"`
	ShortID       string `json:"short_id"`
	IsActive      bool   `json:"is_active"`
}

// FirstShortID первый short id из списка через запятую.
func (s Server) FirstShortID() string {
	first, _, _ := strings.Cut(s.ShortID, ",")
	return strings.TrimSpace(first)
}
