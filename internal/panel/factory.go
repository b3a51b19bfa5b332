package panel

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

// Factory открывает клиента под каждую операцию и закрывает его после.
type Factory struct {
	cfg Config
	log *slog.Logger
}

// NewFactory создает фабрику клиентов панелей.
func NewFactory(cfg Config, log *slog.Logger) *Factory {
	return &Factory{cfg: cfg, log: log}
}

// CreateClient создает клиента на панели сервера.
func (f *Factory) CreateClient(ctx context.Context, server models.Server, req CreateRequest) (Created, error) {
	c, err := Open(server, f.cfg, f.log)
	if err != nil {
		return Created{}, err
	}
	defer c.Close()
	return c.CreateClient(ctx, req)
}

// DeleteClient удаляет клиента с панели сервера.
func (f *Factory) DeleteClient(ctx context.Context, server models.Server, inboundID int, clientID string) bool {
	c, err := Open(server, f.cfg, f.log)
	if err != nil {
		f.log.Error("failed to open panel client", slog.String("server", server.Name), sl.Err(err))
		return false
	}
	defer c.Close()
	return c.DeleteClient(ctx, inboundID, clientID)
}
