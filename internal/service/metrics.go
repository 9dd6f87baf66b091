package service

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once

	watchSessionsTotal   *prometheus.CounterVec
	quizSubmissionsTotal *prometheus.CounterVec
	quizScorePercent     prometheus.Histogram
	videosCompletedTotal prometheus.Counter
	pathsCompletedTotal  prometheus.Counter
	progressResetsTotal  prometheus.Counter
	integrityIssues      *prometheus.GaugeVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		watchSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "videopath",
			Subsystem: "progression",
			Name:      "watch_sessions_total",
			Help:      "Watch sessions reported by learners",
		}, []string{"status"})

		quizSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "videopath",
			Subsystem: "progression",
			Name:      "quiz_submissions_total",
			Help:      "Quiz submissions by outcome",
		}, []string{"outcome"})

		quizScorePercent = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "videopath",
			Subsystem: "progression",
			Name:      "quiz_score_percent",
			Help:      "Distribution of scored quiz percentages",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		})

		videosCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "videopath",
			Subsystem: "progression",
			Name:      "videos_completed_total",
			Help:      "Videos newly completed by learners",
		})

		pathsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "videopath",
			Subsystem: "progression",
			Name:      "paths_completed_total",
			Help:      "Learners who completed every published video",
		})

		progressResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "videopath",
			Subsystem: "progression",
			Name:      "progress_resets_total",
			Help:      "Administrative progress resets",
		})

		integrityIssues = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "videopath",
			Subsystem: "integrity",
			Name:      "issues",
			Help:      "Data integrity issues found by the last audit",
		}, []string{"kind"})
	})
}
