package flow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var submitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "censor_flow_duration_sec",
	Help: "Total duration of a submission, including fallbacks",
}, []string{"channel"})

var verdictCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "censor_flow_verdicts",
	Help: "Number of submission results, by channel and risk level",
}, []string{"channel", "risk"})

var failOpenCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "censor_flow_fail_open",
	Help: "Number of detector failures converted to review results",
}, []string{"channel", "kind"})

var imageDownloadCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "censor_image_downloads",
	Help: "Number of fallback image downloads, by HTTP status code",
}, []string{"status"})

var imageDownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "censor_image_download_duration_sec",
	Help: "Duration of fallback image download attempts",
})

var cacheLookupCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "censor_cache_lookups",
	Help: "Number of verdict cache lookups, by outcome",
}, []string{"provider", "result"})

var refreshCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "censor_pattern_refreshes",
	Help: "Number of pattern set refreshes pushed to detectors",
}, []string{"set", "status"})

var alarmCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "censor_failure_alarms",
	Help: "Number of repeated-failure alarms raised",
}, []string{"channel", "kind"})
