package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "civicmod_operation_duration_sec",
	Help: "Duration of engine operations",
}, []string{"op"})

var operationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "civicmod_operations",
	Help: "Number of engine operations processed",
}, []string{"op"})

var operationErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "civicmod_operation_errors",
	Help: "Number of engine operations which failed, by error kind",
}, []string{"op", "kind"})

var contentActionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "civicmod_content_actions",
	Help: "Number of content audit entries persisted",
}, []string{"kind", "actor"})

var standingActionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "civicmod_standing_actions",
	Help: "Number of account standing audit entries persisted",
}, []string{"kind", "actor"})

var spamScoreHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "civicmod_spam_score",
	Help:    "Spam scores of submitted content",
	Buckets: prometheus.LinearBuckets(0, 1, 11),
})

var notifyCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "civicmod_notifications",
	Help: "Number of notifications sent",
}, []string{"type"})

var notifyErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "civicmod_notification_errors",
	Help: "Number of notifications which failed to send",
}, []string{"type"})

var notifyQuotaSkipCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "civicmod_notifications_skipped",
	Help: "Number of notifications dropped by the hourly quota",
}, []string{"type"})

var cacheHitCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "civicmod_cache_hits",
	Help: "Number of query results served from the cache",
}, []string{"name"})

var cacheMissCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "civicmod_cache_misses",
	Help: "Number of query results computed on a cache miss",
}, []string{"name"})
