package local

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var buildCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "censor_local_builds",
	Help: "Number of local pattern automaton builds, by outcome",
}, []string{"name", "status"})

var buildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "censor_local_build_duration_sec",
	Help: "Duration of local pattern automaton builds",
}, []string{"name"})

var patternCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "censor_local_patterns",
	Help: "Number of patterns in the active local automaton",
}, []string{"name"})
