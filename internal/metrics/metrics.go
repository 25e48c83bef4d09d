// Package metrics define los collectors Prometheus del servicio.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics agrupa los collectors del dominio. Las labels de store permiten
// desglosar por tenant.
type Metrics struct {
	Logins            *prometheus.CounterVec
	Signups           *prometheus.CounterVec
	NoncesSent        *prometheus.CounterVec
	NoncesVerified    *prometheus.CounterVec
	TokensIssued      *prometheus.CounterVec
	TemplateRenderDur prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vanilla_logins_total",
			Help: "Logins por store y resultado",
		}, []string{"store", "result"}),
		Signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vanilla_signups_total",
			Help: "Signups por store",
		}, []string{"store"}),
		NoncesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vanilla_nonces_sent_total",
			Help: "Códigos de verificación enviados por store y endpoint",
		}, []string{"store", "endpoint"}),
		NoncesVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vanilla_nonces_verified_total",
			Help: "Verificaciones exitosas por store",
		}, []string{"store"}),
		TokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vanilla_tokens_issued_total",
			Help: "Tokens emitidos por grant type",
		}, []string{"grant_type"}),
		TemplateRenderDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vanilla_template_render_ms",
			Help:    "Latencia del renderer de templates en milisegundos",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// Register registra los collectors en el registry dado (default si es nil).
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		m.Logins, m.Signups, m.NoncesSent, m.NoncesVerified, m.TokensIssued, m.TemplateRenderDur,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
