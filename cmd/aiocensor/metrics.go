package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var auditLogCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aiocensor_audit_log_writes",
	Help: "Number of audit log entries written, by outcome",
}, []string{"status"})
