package messaging

import (
	"context"
	"crypto/tls"

	"github.com/go-mail/mail"
	"github.com/google/uuid"

	"github.com/dropDatabas3/vanilla/internal/observability/logger"
	"github.com/dropDatabas3/vanilla/internal/store/core"
)

// SMTPConfig son las credenciales del relay.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
}

// SMTPGateway entrega email directo por SMTP. No soporta SMS ni tracking de
// entregas; sirve para entornos sin el gateway HTTP.
type SMTPGateway struct {
	cfg SMTPConfig
}

func NewSMTPGateway(cfg SMTPConfig) *SMTPGateway {
	return &SMTPGateway{cfg: cfg}
}

func (g *SMTPGateway) SendSMS(ctx context.Context, st *core.Store, recipient, text string) (string, error) {
	return "", &GatewayError{Op: "send_sms", Cause: errSMSUnsupported}
}

func (g *SMTPGateway) SendEmail(ctx context.Context, st *core.Store, sender, recipient, subject, htmlBody, textBody string) (string, error) {
	if sender == "" {
		sender = st.DefaultSenderEmail
	}
	m := mail.NewMessage()
	m.SetHeader("From", sender)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	if textBody != "" {
		m.SetBody("text/plain", textBody)
		if htmlBody != "" {
			m.AddAlternative("text/html", htmlBody)
		}
	} else {
		m.SetBody("text/html", htmlBody)
	}

	d := mail.NewDialer(g.cfg.Host, g.cfg.Port, g.cfg.User, g.cfg.Pass)
	d.TLSConfig = &tls.Config{ServerName: g.cfg.Host}
	if err := d.DialAndSend(m); err != nil {
		return "", &GatewayError{Op: "send_email", Cause: err}
	}
	id := uuid.NewString()
	logger.From(ctx).Info("email sent via smtp",
		logger.Store(st.Name), logger.String("delivery_id", id))
	return id, nil
}

// DeliveryStatus siempre reporta sent: SMTP no trackea entregas.
func (g *SMTPGateway) DeliveryStatus(ctx context.Context, st *core.Store, deliveryID string) (string, error) {
	return "sent", nil
}
