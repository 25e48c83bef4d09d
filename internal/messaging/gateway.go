// Package messaging es el gateway saliente de SMS y email. Los fallos del
// gateway son fatales para el request que los disparó; no hay retries.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/vanilla/internal/store/core"
)

// Gateway envía mensajes en nombre de un store y permite consultar el
// estado de una entrega.
type Gateway interface {
	SendSMS(ctx context.Context, st *core.Store, recipient, text string) (deliveryID string, err error)
	SendEmail(ctx context.Context, st *core.Store, sender, recipient, subject, htmlBody, textBody string) (deliveryID string, err error)
	DeliveryStatus(ctx context.Context, st *core.Store, deliveryID string) (string, error)
}

var errSMSUnsupported = errors.New("sms is not supported by this driver")

// GatewayError es un fallo del gateway externo.
type GatewayError struct {
	Op     string
	Status int
	Cause  error
}

func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("messaging %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("messaging %s: gateway returned %d", e.Op, e.Status)
}

func (e *GatewayError) Unwrap() error { return e.Cause }

// Config del gateway.
type Config struct {
	// http | smtp
	Driver  string
	BaseURL string
	Timeout time.Duration
	SMTP    SMTPConfig
}

// New arma el driver configurado.
func New(cfg Config) (Gateway, error) {
	switch cfg.Driver {
	case "", "http":
		return NewHTTPGateway(cfg.BaseURL, cfg.Timeout), nil
	case "smtp":
		return NewSMTPGateway(cfg.SMTP), nil
	default:
		return nil, errors.New("messaging: unknown driver " + cfg.Driver)
	}
}
