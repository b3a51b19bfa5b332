package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

const serverColumns = `s.id, s.name, s.panel_url, s.panel_username, s.panel_password,
	s.address, s.port, s.inbound_id, s.sni, s.flow, s.public_key, s.short_id, s.is_active`

func scanServer(row rowScanner, srv *models.Server, extra ...any) error {
	dest := []any{&srv.ID, &srv.Name, &srv.PanelURL, &srv.PanelUsername, &srv.PanelPassword,
		&srv.Address, &srv.Port, &srv.InboundID, &srv.SNI, &srv.Flow, &srv.PublicKey, &srv.ShortID, &srv.IsActive}
	return row.Scan(append(dest, extra...)...)
}

// ListActiveServers возвращает активные серверы в стабильном порядке по id.
func (s *Storage) ListActiveServers(ctx context.Context) ([]models.Server, error) {
	const op = "storage.ListActiveServers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+serverColumns+` FROM servers s WHERE s.is_active ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.Server
	for rows.Next() {
		var srv models.Server
		if err := scanServer(rows, &srv); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, srv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
