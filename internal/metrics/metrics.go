package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "codeq_votes_total",
		Help: "Vote transitions applied, by target kind and action",
	}, []string{"target", "action"})

	VoteConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "codeq_vote_conflicts_total",
		Help: "Vote read-modify-write attempts repeated after a concurrent change",
	})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codeq_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	RankingQueueDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "codeq_ranking_queue_dropped_total",
		Help: "Hot rank updates skipped because the queue was full",
	})
)

// MustRegister registers all collectors.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		VotesTotal,
		VoteConflicts,
		HTTPRequestDuration,
		RankingQueueDropped,
	)
}

// Handler exposes /metrics on the gin router.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// Middleware observes request latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
