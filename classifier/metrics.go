package classifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var classifierAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sift_classifier_api_requests",
	Help: "Number of classifier API requests, by HTTP status code",
}, []string{"status"})

var classifierAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "sift_classifier_api_duration_sec",
	Help: "Duration of classifier API requests",
})
