// Package panel реализует клиент API панели управления (3x-ui).
//
// Один Client привязан к учетным данным одного сервера и живет в пределах
// одной логической операции: перед каждым вызовом выполняется вход,
// после операции клиент закрывается. Повторов нет: любая ошибка
// возвращается вызывающему.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/metrics"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

const bytesInGB = int64(1) << 30

var (
	// ErrAuth панель не выдала сессию.
	ErrAuth = errors.New("panel authentication failed")
	// ErrRejected панель ответила отказом.
	ErrRejected = errors.New("panel rejected request")
)

// Client клиент панели одного сервера.
type Client struct {
	server         models.Server
	baseURL        string
	http           *http.Client
	loginTimeout   time.Duration
	requestTimeout time.Duration
	log            *slog.Logger
	now            func() time.Time
}

// Open создает клиента с собственной сессией для сервера.
func Open(server models.Server, cfg Config, log *slog.Logger) (*Client, error) {
	const op = "panel.Open"
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Client{
		server:         server,
		baseURL:        strings.TrimRight(server.PanelURL, "/"),
		http:           &http.Client{Jar: jar},
		loginTimeout:   cfg.LoginTimeout,
		requestTimeout: cfg.RequestTimeout,
		log:            log.With(slog.String("server", server.Name)),
		now:            time.Now,
	}, nil
}

// Close освобождает сетевые соединения клиента.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// CreateClient создает клиента на inbound сервера.
func (c *Client) CreateClient(ctx context.Context, req CreateRequest) (Created, error) {
	const op = "panel.CreateClient"
	defer observe("create", time.Now())

	if err := c.login(ctx); err != nil {
		metrics.PanelRequests.WithLabelValues("create", "auth_failed").Inc()
		c.log.Error("panel login failed", slog.String("op", op), sl.Err(err))
		return Created{}, fmt.Errorf("%s: %w", op, err)
	}

	now := c.now()
	created := Created{
		ClientID: uuid.NewString(),
		Label:    fmt.Sprintf("user_%d_%s", req.OwnerID, now.Format("200601021504")),
	}
	settings, err := json.Marshal(clientSettings{Clients: []clientEntry{{
		ID:         created.ClientID,
		Email:      created.Label,
		Flow:       req.Flow,
		TotalGB:    int64(req.QuotaGB) * bytesInGB,
		ExpiryTime: now.AddDate(0, 0, req.Days).UnixMilli(),
		Enable:     true,
		TgID:       strconv.FormatInt(req.OwnerID, 10),
		SubID:      "",
	}}})
	if err != nil {
		return Created{}, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.post(ctx, "/panel/api/inbounds/addClient", addClientRequest{
		ID:       req.InboundID,
		Settings: string(settings),
	})
	if err == nil && !resp.ok() {
		err = fmt.Errorf("%w: %s", ErrRejected, resp.Msg)
	}
	if err != nil {
		metrics.PanelRequests.WithLabelValues("create", "error").Inc()
		c.log.Error("failed to create panel client",
			slog.String("op", op),
			slog.Int64("user_id", req.OwnerID),
			slog.Int("inbound_id", req.InboundID),
			sl.Err(err))
		return Created{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.PanelRequests.WithLabelValues("create", "ok").Inc()
	c.log.Info("panel client created",
		slog.Int64("user_id", req.OwnerID),
		slog.String("client_id", created.ClientID))
	return created, nil
}

// DeleteClient удаляет клиента. true только при явном подтверждении панели.
func (c *Client) DeleteClient(ctx context.Context, inboundID int, clientID string) bool {
	const op = "panel.DeleteClient"
	defer observe("delete", time.Now())
	log := c.log.With(slog.String("op", op), slog.String("client_id", clientID))

	if err := c.login(ctx); err != nil {
		metrics.PanelRequests.WithLabelValues("delete", "auth_failed").Inc()
		log.Error("panel login failed", sl.Err(err))
		return false
	}

	path := fmt.Sprintf("/panel/api/inbounds/%d/delClient/%s", inboundID, url.PathEscape(clientID))
	resp, err := c.post(ctx, path, nil)
	if err != nil {
		metrics.PanelRequests.WithLabelValues("delete", "error").Inc()
		log.Error("failed to delete panel client", sl.Err(err))
		return false
	}
	if !resp.ok() {
		metrics.PanelRequests.WithLabelValues("delete", "rejected").Inc()
		log.Warn("panel refused to delete client", slog.String("msg", resp.Msg))
		return false
	}

	metrics.PanelRequests.WithLabelValues("delete", "ok").Inc()
	return true
}

func (c *Client) login(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.loginTimeout)
	defer cancel()

	form := url.Values{}
	form.Set("username", c.server.PanelUsername)
	form.Set("password", c.server.PanelPassword)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	}

	var body panelResponse
	raw, _ := io.ReadAll(resp.Body)
	if json.Unmarshal(raw, &body) == nil && body.Success != nil && !*body.Success {
		return fmt.Errorf("%w: %s", ErrAuth, body.Msg)
	}

	if len(c.http.Jar.Cookies(req.URL)) == 0 {
		return fmt.Errorf("%w: no session cookie", ErrAuth)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*panelResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var out panelResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func observe(operation string, start time.Time) {
	metrics.PanelLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
