package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recognitionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_recognition_attempts_total",
		Help: "Recognition attempts by outcome.",
	}, []string{"outcome"})

	recognitionBestScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rollcall_recognition_best_similarity",
		Help:    "Best cosine similarity observed per recognition attempt.",
		Buckets: prometheus.LinearBuckets(0, 0.05, 21),
	})

	templatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_templates_skipped_total",
		Help: "Stored face templates skipped because they failed to decrypt.",
	})
)

const (
	outcomeRecognized    = "recognized"
	outcomeAlreadyMarked = "already_marked"
	outcomeNoMatch       = "no_match"
	outcomeNoFaces       = "no_registered_faces"
)
