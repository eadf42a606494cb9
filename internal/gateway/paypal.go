package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"taskpay/escrow-service/internal/money"
)

const httpTimeout = 15 * time.Second

// PayPalClient implements Gateway against the PayPal Orders v2 REST API.
//
// Provider quirks hidden here: unapproved orders expire after ~3h (the
// caller just sees a rejection on capture), amounts travel as decimal
// strings, and the payer identity arrives as an embedded object that is
// flattened into PayerInfo.
type PayPalClient struct {
	BaseURL      string // e.g. https://api-m.sandbox.paypal.com
	ClientID     string
	ClientSecret string
	ReturnURL    string
	CancelURL    string

	client *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalClient constructs a client with a shared HTTP client.
func NewPayPalClient(baseURL, clientID, clientSecret, returnURL, cancelURL string) *PayPalClient {
	return &PayPalClient{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		ReturnURL:    returnURL,
		CancelURL:    cancelURL,
		client:       &http.Client{Timeout: httpTimeout},
	}
}

// ─── Gateway implementation ──────────────────────────────────────────────────

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

func (p *PayPalClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	if err := req.Amount.Validate(); err != nil {
		return Order{}, err
	}

	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": req.ContractRef,
			"description":  req.Description,
			"amount": paypalAmount{
				CurrencyCode: req.Amount.Currency,
				Value:        decimalValue(req.Amount),
			},
		}},
		"application_context": map[string]string{
			"return_url": p.ReturnURL,
			"cancel_url": p.CancelURL,
		},
	}

	var resp struct {
		ID    string       `json:"id"`
		Links []paypalLink `json:"links"`
	}
	if err := p.post(ctx, "/v2/checkout/orders", body, &resp); err != nil {
		return Order{}, err
	}

	order := Order{OrderID: resp.ID}
	for _, l := range resp.Links {
		if l.Rel == "approve" {
			order.ApprovalURL = l.Href
		}
	}
	if order.OrderID == "" || order.ApprovalURL == "" {
		return Order{}, Rejected("paypal returned an order without id or approval link")
	}
	return order, nil
}

func (p *PayPalClient) CaptureOrder(ctx context.Context, orderID string) (Capture, error) {
	var resp struct {
		Payer struct {
			PayerID string `json:"payer_id"`
			Email   string `json:"email_address"`
		} `json:"payer"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID     string       `json:"id"`
					Amount paypalAmount `json:"amount"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", orderID)
	if err := p.post(ctx, path, map[string]any{}, &resp); err != nil {
		return Capture{}, err
	}

	for _, u := range resp.PurchaseUnits {
		for _, c := range u.Payments.Captures {
			amount, err := parseDecimalValue(c.Amount.Value, c.Amount.CurrencyCode)
			if err != nil {
				return Capture{}, Rejected(fmt.Sprintf("paypal capture amount unparseable: %v", err))
			}
			return Capture{
				CaptureID: c.ID,
				Payer:     PayerInfo{PayerID: resp.Payer.PayerID, Email: resp.Payer.Email},
				Amount:    amount,
			}, nil
		}
	}
	return Capture{}, Rejected("paypal capture response contained no capture")
}

func (p *PayPalClient) Refund(ctx context.Context, captureID string, amount *money.Money) (Refund, error) {
	body := map[string]any{}
	if amount != nil {
		body["amount"] = paypalAmount{
			CurrencyCode: amount.Currency,
			Value:        decimalValue(*amount),
		}
	}

	var resp struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/v2/payments/captures/%s/refund", captureID)
	if err := p.post(ctx, path, body, &resp); err != nil {
		return Refund{}, err
	}
	if resp.ID == "" {
		return Refund{}, Rejected("paypal returned a refund without id")
	}
	return Refund{RefundID: resp.ID}, nil
}

// ─── HTTP plumbing ───────────────────────────────────────────────────────────

// post sends an authenticated JSON request and decodes the response.
// 5xx and transport errors map to unavailable; other non-2xx to rejected.
func (p *PayPalClient) post(ctx context.Context, path string, body, out any) error {
	token, err := p.token(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return Unavailable(err, "paypal request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Unavailable(err, "paypal response read failed")
	}

	switch {
	case resp.StatusCode >= 500:
		return Unavailable(fmt.Errorf("status %d: %s", resp.StatusCode, raw), "paypal unavailable")
	case resp.StatusCode >= 300:
		return Rejected(fmt.Sprintf("paypal returned %d: %s", resp.StatusCode, raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode paypal response: %w", err)
		}
	}
	return nil
}

// token returns a cached OAuth access token, refreshing when expired.
func (p *PayPalClient) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Now().Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.BaseURL+"/v1/oauth2/token", strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.ClientID, p.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", Unavailable(err, "paypal token request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Unavailable(err, "paypal token read failed")
	}
	if resp.StatusCode != http.StatusOK {
		return "", Rejected(fmt.Sprintf("paypal token returned %d: %s", resp.StatusCode, raw))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", fmt.Errorf("decode paypal token: %w", err)
	}

	p.accessToken = tok.AccessToken
	// refresh a minute early
	p.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return p.accessToken, nil
}

// decimalValue renders minor units as the decimal string the provider
// expects (two-decimal currencies only, matching the platform's
// single-currency model).
func decimalValue(m money.Money) string {
	return fmt.Sprintf("%d.%02d", m.Amount/100, m.Amount%100)
}

// parseDecimalValue is the inverse of decimalValue.
func parseDecimalValue(s, currency string) (money.Money, error) {
	whole, frac, ok := strings.Cut(s, ".")
	if !ok {
		frac = "00"
	}
	if len(frac) != 2 {
		return money.Money{}, fmt.Errorf("amount %q: expected two decimal places", s)
	}
	var units, cents int64
	if _, err := fmt.Sscanf(whole, "%d", &units); err != nil {
		return money.Money{}, fmt.Errorf("amount %q: %w", s, err)
	}
	if _, err := fmt.Sscanf(frac, "%d", &cents); err != nil {
		return money.Money{}, fmt.Errorf("amount %q: %w", s, err)
	}
	return money.New(units*100+cents, currency)
}
