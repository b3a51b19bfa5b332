// Package metrics регистрирует метрики Prometheus сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PanelRequests вызовы API панелей по операции и результату.
	PanelRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlements",
		Name:      "panel_requests_total",
		Help:      "Panel API calls by operation and result.",
	}, []string{"operation", "result"})

	// PanelLatency длительность вызовов API панелей.
	PanelLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "entitlements",
		Name:      "panel_request_duration_seconds",
		Help:      "Panel API call latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// Provisions результаты выдачи доступов.
	Provisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlements",
		Name:      "provisions_total",
		Help:      "Provisioning attempts by result.",
	}, []string{"result"})

	// Settlements результаты проверки счетов и оплат с баланса.
	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlements",
		Name:      "settlements_total",
		Help:      "Settlement outcomes by path and status.",
	}, []string{"path", "status"})

	// Revocations отозванные и осиротевшие клиенты.
	Revocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlements",
		Name:      "revoked_clients_total",
		Help:      "Remote clients processed during revocation by result.",
	}, []string{"result"})

	// Reminders отправленные напоминания по окну.
	Reminders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlements",
		Name:      "reminders_sent_total",
		Help:      "Expiry reminders published by window.",
	}, []string{"window"})
)
