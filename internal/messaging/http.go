package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/dropDatabas3/vanilla/internal/observability/logger"
	"github.com/dropDatabas3/vanilla/internal/store/core"
)

// HTTPGateway habla con el servicio de mensajería por HTTP, autenticado con
// la gateway session del store.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

type deliveryResponse struct {
	DeliveryID string `json:"delivery_id"`
	Status     string `json:"status"`
}

func (g *HTTPGateway) post(ctx context.Context, st *core.Store, op, path string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gateway-Session", st.GatewaySession)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &GatewayError{Op: op, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", &GatewayError{Op: op, Status: resp.StatusCode}
	}
	var out deliveryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &GatewayError{Op: op, Cause: err}
	}
	logger.From(ctx).Info("message dispatched",
		logger.Store(st.Name), logger.Op(op), logger.String("delivery_id", out.DeliveryID))
	return out.DeliveryID, nil
}

func (g *HTTPGateway) SendSMS(ctx context.Context, st *core.Store, recipient, text string) (string, error) {
	return g.post(ctx, st, "send_sms", "/sms", map[string]string{
		"recipient": recipient,
		"text":      text,
	})
}

func (g *HTTPGateway) SendEmail(ctx context.Context, st *core.Store, sender, recipient, subject, htmlBody, textBody string) (string, error) {
	if sender == "" {
		sender = st.DefaultSenderEmail
	}
	return g.post(ctx, st, "send_email", "/email", map[string]string{
		"sender":    sender,
		"recipient": recipient,
		"subject":   subject,
		"html":      htmlBody,
		"text":      textBody,
	})
}

func (g *HTTPGateway) DeliveryStatus(ctx context.Context, st *core.Store, deliveryID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.baseURL+"/deliveries/"+url.PathEscape(deliveryID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Gateway-Session", st.GatewaySession)
	resp, err := g.client.Do(req)
	if err != nil {
		return "", &GatewayError{Op: "delivery_status", Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &GatewayError{Op: "delivery_status", Status: resp.StatusCode}
	}
	var out deliveryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &GatewayError{Op: "delivery_status", Cause: err}
	}
	return out.Status, nil
}
