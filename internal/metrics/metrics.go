package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "pairs"

var (
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "status_transitions_total", Help: "Strategy state transitions"},
		[]string{"from", "to"},
	)
	Status = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "status", Help: "Current strategy state as its ordinal"},
	)
	SubscriptionsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "subscriptions_sent_total", Help: "Data requests sent to the brokerage"},
		[]string{"kind"},
	)
	QuoteTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "quote_ticks_total", Help: "Quote field updates applied"},
		[]string{"field"},
	)
	BarsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "bars_received_total", Help: "Historical bars stored"},
		[]string{"mode"},
	)
	OrdersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "orders_placed_total", Help: "Orders sent to the brokerage"},
		[]string{"action"},
	)
	OrderFills = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "order_fills_total", Help: "Orders reconciled as fully filled"},
	)
	TradesCompleted = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "trades_completed_total", Help: "Pairs trades with both legs entered and exited"},
	)
	LastTradeNetPnL = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "last_trade_net_pnl", Help: "Net PnL of the most recently completed trade"},
	)
	PairScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "pair_score", Help: "Ranking score of evaluated pairs"},
		[]string{"leg1", "leg2"},
	)
	Spread = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "spread", Help: "Latest mid-price spread of the active pair"},
	)
	SelectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{Namespace: namespace, Name: "selection_duration_seconds", Help: "Time spent ranking pairs", Buckets: prometheus.DefBuckets},
	)
	GatewayReconnects = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "gateway_reconnects_total", Help: "Successful gateway reconnects"},
	)
	BrokerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "broker_errors_total", Help: "Errors and warnings reported by the brokerage"},
		[]string{"severity"},
	)
)

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv
}
