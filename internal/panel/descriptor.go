package panel

import (
	"fmt"

	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

// Descriptor собирает vless-ссылку для импорта в клиентское приложение.
func Descriptor(server models.Server, clientID, flow, label string) string {
	return fmt.Sprintf(
		"vless://%s@%s:%d/?type=tcp&security=reality&pbk=%s&fp=chrome&sni=%s&sid=%s&spx=%%2F&flow=%s#%s",
		clientID,
		server.Address,
		server.Port,
		server.PublicKey,
		server.SNI,
		server.FirstShortID(),
		flow,
		label,
	)
}
