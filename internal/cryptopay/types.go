package cryptopay

import "encoding/json"

// Статусы счета во внешнем процессоре.
const (
	StatusActive  = "active"
	StatusPaid    = "paid"
	StatusExpired = "expired"
)

// Rate курс пары валют.
type Rate struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Rate   float64 `json:"rate,string"`
	Valid  bool    `json:"is_valid"`
}

// Invoice счет процессора.
type Invoice struct {
	ID            int64   `json:"invoice_id"`
	Status        string  `json:"status"`
	Asset         string  `json:"asset"`
	Amount        float64 `json:"amount,string"`
	PayURL        string  `json:"pay_url"`
	BotInvoiceURL string  `json:"bot_invoice_url"`
}

// URL ссылка на оплату.
func (i Invoice) URL() string {
	if i.PayURL != "" {
		return i.PayURL
	}
	return i.BotInvoiceURL
}

type createInvoiceRequest struct {
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	ExpiresIn int    `json:"expires_in,omitempty"`
}

type envelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  *apiError       `json:"error"`
}

type apiError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

type invoiceList struct {
	Items []Invoice `json:"items"`
}
