package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scanCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sift_scans",
	Help: "Number of content scans, by result",
}, []string{"result"})

var scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "sift_scan_duration_sec",
	Help: "Total duration of content scan processing",
})

var autoResolveCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sift_auto_resolves",
	Help: "Number of scans resolved from a prior decision, by verdict and match kind",
}, []string{"verdict", "match"})

var voteCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sift_votes",
	Help: "Number of vote casts, by outcome",
}, []string{"outcome"})

var overruleCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sift_overrules",
	Help: "Number of admin overrules, by verdict",
}, []string{"verdict"})

var decisionPersistCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sift_decisions_persisted",
	Help: "Number of decisions written, by verdict and source",
}, []string{"verdict", "source"})

var casesOpenGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "sift_cases_open",
	Help: "Number of flag cases currently open",
})
