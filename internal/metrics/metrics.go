package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Sales          *prometheus.CounterVec
	SalesAmount    *prometheus.CounterVec
	Refunds        *prometheus.CounterVec
	ClaimRejected  *prometheus.CounterVec
	MailsSent      *prometheus.CounterVec
	CheckoutTiming prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
		Sales: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pos_sales_total",
				Help: "Committed sales by payment method",
			},
			[]string{"method"},
		),
		SalesAmount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pos_sales_amount_clp_total",
				Help: "Sum of committed sale totals in CLP",
			},
			[]string{"method"},
		),
		Refunds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pos_refunds_total",
				Help: "Refunded sales by original payment method",
			},
			[]string{"method"},
		),
		ClaimRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pos_claims_rejected_total",
				Help: "Checkouts rejected over numbered items",
			},
			[]string{"reason"},
		),
		MailsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pos_mails_total",
				Help: "Email delivery attempts",
			},
			[]string{"kind", "result"},
		),
		CheckoutTiming: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pos_checkout_duration_seconds",
			Help:    "Time spent inside the checkout unit of work",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests, m.HTTPDuration,
		m.Sales, m.SalesAmount, m.Refunds, m.ClaimRejected, m.MailsSent, m.CheckoutTiming,
	)
	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Middleware records count and latency per matched route.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		path := c.Route().Path
		if path == "" {
			path = "undefined"
		}
		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		// fasthttp reuses the method buffer; the label outlives the request.
		method := utils.CopyString(c.Method())
		m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(path).Observe(duration.Seconds())
		return err
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
}

// MailResult matches the notify dispatcher's result hook.
func (m *Metrics) MailResult(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.MailsSent.WithLabelValues(kind, result).Inc()
}
