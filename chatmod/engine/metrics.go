package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messageProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "linesman_message_duration_sec",
	Help: "Total duration of message pipeline processing",
})

var messageProcessCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "linesman_messages_processed",
	Help: "Number of messages evaluated",
})

var messageErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "linesman_message_errors",
	Help: "Number of messages which failed processing",
})

var violationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linesman_violations",
	Help: "Number of messages blocked, by primary trigger",
}, []string{"trigger"})

var escalationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linesman_escalations",
	Help: "Number of discipline escalations, by outcome",
}, []string{"outcome"})

var auditEventCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linesman_audit_events",
	Help: "Number of audit events emitted, by tier",
}, []string{"tier"})

var amnestyResetCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "linesman_amnesty_resets",
	Help: "Number of user warning records reset by the amnesty sweeper",
})

var broadcastCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linesman_broadcasts",
	Help: "Number of broadcast confirm attempts, by result",
}, []string{"result"})
