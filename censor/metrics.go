package censor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "censor_provider_requests",
	Help: "Number of moderation provider requests, by HTTP status code",
}, []string{"provider", "status"})

var providerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "censor_provider_duration_sec",
	Help: "Duration of moderation provider requests",
}, []string{"provider"})

var retryCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "censor_provider_retries",
	Help: "Number of retried provider calls after a transport fault",
}, []string{"provider"})
