// Package cryptopay клиент платежного процессора Crypto Pay: курсы валют,
// создание счетов и проверка их статуса.
package cryptopay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
)

var (
	// ErrRateNotFound процессор не вернул курс для пары.
	ErrRateNotFound = errors.New("exchange rate not found")
	// ErrInvoiceNotFound процессор не знает счет.
	ErrInvoiceNotFound = errors.New("invoice not found")
)

// Client клиент Crypto Pay API.
type Client struct {
	token      string
	apiURL     string
	invoiceTTL time.Duration
	httpClient *http.Client
}

// NewClient создает клиента процессора.
func NewClient(token, apiURL string, timeout, invoiceTTL time.Duration) *Client {
	return &Client{
		token:      token,
		apiURL:     strings.TrimRight(apiURL, "/"),
		invoiceTTL: invoiceTTL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Crypto-Pay-API-Token", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("unexpected response (status %s): %w", resp.Status, err)
	}
	if !env.OK {
		if env.Error != nil {
			return fmt.Errorf("api error %d: %s", env.Error.Code, env.Error.Name)
		}
		return errors.New("unexpected status: " + resp.Status)
	}
	return json.Unmarshal(env.Result, result)
}

// ExchangeRates возвращает все курсы процессора.
func (c *Client) ExchangeRates(ctx context.Context) ([]Rate, error) {
	const op = "cryptopay.ExchangeRates"
	req, err := c.newRequest(ctx, http.MethodGet, "/getExchangeRates", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var rates []Rate
	if err := c.do(req, &rates); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rates, nil
}

// Rate возвращает курс source→target.
func (c *Client) Rate(ctx context.Context, source, target string) (float64, error) {
	const op = "cryptopay.Rate"
	rates, err := c.ExchangeRates(ctx)
	if err != nil {
		return 0, err
	}
	for _, r := range rates {
		if strings.EqualFold(r.Source, source) && strings.EqualFold(r.Target, target) && r.Rate > 0 {
			return r.Rate, nil
		}
	}
	return 0, fmt.Errorf("%s: %w: %s/%s", op, ErrRateNotFound, source, target)
}

// CreateInvoice создает счет на amount единиц asset.
func (c *Client) CreateInvoice(ctx context.Context, asset string, amount float64) (*Invoice, error) {
	const op = "cryptopay.CreateInvoice"
	req, err := c.newRequest(ctx, http.MethodPost, "/createInvoice", createInvoiceRequest{
		Asset:     asset,
		Amount:    money.FormatCrypto(amount),
		ExpiresIn: int(c.invoiceTTL.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var inv Invoice
	if err := c.do(req, &inv); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &inv, nil
}

// GetInvoices возвращает счета по идентификаторам.
func (c *Client) GetInvoices(ctx context.Context, ids []int64) ([]Invoice, error) {
	const op = "cryptopay.GetInvoices"
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	q := url.Values{}
	q.Set("invoice_ids", strings.Join(parts, ","))

	req, err := c.newRequest(ctx, http.MethodGet, "/getInvoices?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var list invoiceList
	if err := c.do(req, &list); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list.Items, nil
}

// GetInvoice возвращает один счет.
func (c *Client) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	const op = "cryptopay.GetInvoice"
	items, err := c.GetInvoices(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, fmt.Errorf("%s: %w: %d", op, ErrInvoiceNotFound, id)
}
