package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated counts sessions opened by instructors.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrclass_sessions_created_total",
		Help: "Number of class sessions created.",
	})

	// Submissions counts attendance submissions by outcome
	// (ok, duplicate, rejected, error).
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrclass_submissions_total",
		Help: "Number of attendance submissions by outcome.",
	}, []string{"outcome"})

	// TokenDecodes counts scan payload decodes by outcome (ok, unrecognized).
	TokenDecodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrclass_token_decodes_total",
		Help: "Number of scanned payload decode attempts by outcome.",
	}, []string{"outcome"})
)
