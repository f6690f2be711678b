package db

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var policySaves = promauto.NewCounter(prometheus.CounterOpts{
	Name: "marshal_policy_saves",
	Help: "Number of guild policies written to the backend",
})

var persistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "marshal_policy_persistence_failures",
	Help: "Number of guild policy writes which failed",
})
