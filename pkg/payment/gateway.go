package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// GatewayProvider implements hosted-checkout payments against the bank
// gateway's merchant API. Deposits and escrow funding go through here; the
// gateway calls back to our webhook when the customer completes payment.
type GatewayProvider struct {
	BaseURL     string
	APIKey      string
	WebhookBase string
	client      *http.Client
}

func NewGatewayProvider(baseURL, apiKey, webhookBase string) *GatewayProvider {
	return &GatewayProvider{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		WebhookBase: webhookBase,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

type gatewayCheckoutReq struct {
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	CallbackURL   string `json:"callback_url"`
	OrderID       string `json:"order_id"`
	ExpiresInSec  int64  `json:"expires_in_sec"`
}

type gatewayCheckoutResp struct {
	Reference   string `json:"reference"`
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	CheckoutURL string `json:"checkout_url"`
	ExpiresAt   string `json:"expires_at"`
}

func (p *GatewayProvider) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	orderID := req.OrderID
	if orderID == "" {
		orderID = req.IdempotencyKey
	}
	if orderID == "" {
		orderID = fmt.Sprintf("bm-%d", time.Now().UnixNano())
	}
	callbackURL := req.CallbackURL
	if callbackURL == "" && p.WebhookBase != "" {
		callbackURL = p.WebhookBase + "/api/v1/webhooks/payment"
	}
	currency := req.Currency
	if currency == "" {
		currency = "VND"
	}
	expiresIn := req.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 30 * time.Minute
	}
	payload := gatewayCheckoutReq{
		Amount:        strconv.FormatInt(req.Amount, 10),
		Currency:      currency,
		Description:   req.Description,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		CallbackURL:   callbackURL,
		OrderID:       orderID,
		ExpiresInSec:  int64(expiresIn.Seconds()),
	}
	body, _ := json.Marshal(payload)
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/api/v1/checkouts", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	apiReq.Header.Set("Content-Type", "application/json")
	apiReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	resp, err := p.client.Do(apiReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("gateway checkout: %d: %s", resp.StatusCode, string(respBody))
	}
	var out gatewayCheckoutResp
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	expiresAt, perr := time.Parse(time.RFC3339, out.ExpiresAt)
	if perr != nil {
		expiresAt = time.Now().Add(expiresIn)
	}
	reference := out.Reference
	if reference == "" {
		reference = orderID
	}
	return &PaymentResponse{
		Reference:   reference,
		Status:      out.Status,
		CheckoutURL: out.CheckoutURL,
		ExpiresAt:   expiresAt,
	}, nil
}

type gatewayStatusResp struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// VerifyPayment asks the gateway for the authoritative status of a checkout.
// Used by the webhook handler before crediting any money.
func (p *GatewayProvider) VerifyPayment(ctx context.Context, reference string) (bool, error) {
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/api/v1/checkouts/"+reference, nil)
	if err != nil {
		return false, err
	}
	apiReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	resp, err := p.client.Do(apiReq)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("gateway status: %d", resp.StatusCode)
	}
	var out gatewayStatusResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Status == "COMPLETED" || out.Status == "PAID", nil
}
