// Package metrics exposes the webhook core's Prometheus counters on a private registry.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wabiz"

// Collector is safe to use as a nil pointer; every Record method is then a no-op.
type Collector struct {
	registry *prometheus.Registry

	WebhookDeliveries *prometheus.CounterVec
	InboundMessages   *prometheus.CounterVec
	RoutingOutcomes   *prometheus.CounterVec
	OutboundSends     *prometheus.CounterVec
	CredentialLookups *prometheus.CounterVec
	ClosedIdle        prometheus.Counter
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		WebhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook POST deliveries by result",
		}, []string{"result"}),
		InboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound message units by declared type",
		}, []string{"type"}),
		RoutingOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_outcomes_total",
			Help:      "Responder that handled each inbound message (none when nobody did)",
		}, []string{"responder"}),
		OutboundSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_sends_total",
			Help:      "Outbound messages by provenance and send status",
		}, []string{"provenance", "status"}),
		CredentialLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_resolutions_total",
			Help:      "Access token resolutions by the tier that answered",
		}, []string{"tier"}),
		ClosedIdle: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idle_conversations_closed_total",
			Help:      "Conversations closed by the idle closer",
		}),
	}
	reg.MustRegister(
		c.WebhookDeliveries,
		c.InboundMessages,
		c.RoutingOutcomes,
		c.OutboundSends,
		c.CredentialLookups,
		c.ClosedIdle,
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) RecordDelivery(result string) {
	if c != nil {
		c.WebhookDeliveries.WithLabelValues(result).Inc()
	}
}

// tipos de mensagem da Cloud API; qualquer outro vira "other"
var inboundTypes = map[string]bool{
	"text": true, "image": true, "audio": true, "video": true, "document": true,
	"sticker": true, "location": true, "contacts": true, "button": true,
	"interactive": true, "reaction": true, "order": true, "system": true,
	"unknown": true, "unsupported": true,
}

func (c *Collector) RecordInbound(msgType string) {
	if c == nil {
		return
	}
	msgType = strings.ToLower(strings.TrimSpace(msgType))
	if !inboundTypes[msgType] {
		msgType = "other"
	}
	c.InboundMessages.WithLabelValues(msgType).Inc()
}

func (c *Collector) RecordOutcome(responder string) {
	if c == nil {
		return
	}
	if responder == "" {
		responder = "none"
	}
	c.RoutingOutcomes.WithLabelValues(responder).Inc()
}

func (c *Collector) RecordSend(provenance, status string) {
	if c != nil {
		c.OutboundSends.WithLabelValues(provenance, status).Inc()
	}
}

// RecordCredential matches credentials.Observer.
func (c *Collector) RecordCredential(tier string) {
	if c != nil {
		c.CredentialLookups.WithLabelValues(tier).Inc()
	}
}

func (c *Collector) RecordClosed(n int) {
	if c != nil && n > 0 {
		c.ClosedIdle.Add(float64(n))
	}
}
