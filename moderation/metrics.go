package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "marshal_events_processed",
	Help: "Number of platform events evaluated, by kind",
}, []string{"kind"})

var enforcements = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "marshal_enforcements",
	Help: "Number of punishments attempted, by action and outcome",
}, []string{"action", "outcome"})

var spamTriggers = promauto.NewCounter(prometheus.CounterOpts{
	Name: "marshal_spam_triggers",
	Help: "Number of times a member reached the spam threshold",
})

var filterMatches = promauto.NewCounter(prometheus.CounterOpts{
	Name: "marshal_filter_matches",
	Help: "Number of messages which matched a forbidden term",
})

var filterEscalations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "marshal_filter_escalations",
	Help: "Number of times repeated filter matches led to a punishment",
})

var reconcileCorrections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "marshal_reconcile_corrections",
	Help: "Number of member changes reverted, by kind",
}, []string{"kind"})

var lockdownChannels = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "marshal_lockdown_channels",
	Help: "Number of channel overwrites changed by the external app lockdown",
}, []string{"op"})
