package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// Collector tracks gateway request and push delivery counters.
type Collector struct {
	totalRequests   atomic.Int64
	failedRequests  atomic.Int64
	totalLatencyMic atomic.Int64

	deliveriesOK     atomic.Int64
	deliveriesFailed atomic.Int64
	pruned           atomic.Int64

	startedAt time.Time
}

func New() *Collector {
	return &Collector{
		startedAt: time.Now(),
	}
}

// GinMiddleware records request count, failures, and aggregate latency.
func (c *Collector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		c.totalRequests.Add(1)
		if ctx.Writer.Status() >= http.StatusInternalServerError {
			c.failedRequests.Add(1)
		}
		c.totalLatencyMic.Add(time.Since(start).Microseconds())
	}
}

// RecordDelivery counts one settled delivery attempt.
func (c *Collector) RecordDelivery(delivered bool) {
	if delivered {
		c.deliveriesOK.Add(1)
		return
	}
	c.deliveriesFailed.Add(1)
}

// RecordPrune counts one subscription removed after a permanent failure.
func (c *Collector) RecordPrune() {
	c.pruned.Add(1)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	RequestsTotal     int64     `json:"requests_total"`
	RequestsFailed    int64     `json:"requests_failed"`
	AvgLatencyMicros  int64     `json:"avg_latency_micros"`
	DeliveriesOK      int64     `json:"push_deliveries_succeeded"`
	DeliveriesFailed  int64     `json:"push_deliveries_failed"`
	SubscriptionsGone int64     `json:"push_subscriptions_pruned"`
	UptimeSeconds     int64     `json:"uptime_seconds"`
	Timestamp         time.Time `json:"timestamp"`
}

// Snapshot reads the current counters.
func (c *Collector) Snapshot() Snapshot {
	reqs := c.totalRequests.Load()
	var avgMicros int64
	if reqs > 0 {
		avgMicros = c.totalLatencyMic.Load() / reqs
	}
	return Snapshot{
		RequestsTotal:     reqs,
		RequestsFailed:    c.failedRequests.Load(),
		AvgLatencyMicros:  avgMicros,
		DeliveriesOK:      c.deliveriesOK.Load(),
		DeliveriesFailed:  c.deliveriesFailed.Load(),
		SubscriptionsGone: c.pruned.Load(),
		UptimeSeconds:     int64(time.Since(c.startedAt).Seconds()),
		Timestamp:         time.Now().UTC(),
	}
}

// Handler exposes the metrics in a simple JSON form.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": "push-gateway metrics snapshot",
			"data":    c.Snapshot(),
		})
	})
}
