package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	assembleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cvforge",
			Subsystem: "assemble",
			Name:      "duration_seconds",
			Help:      "最终文档合成耗时分布（秒）。",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	assembleAnnexesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvforge",
			Subsystem: "assemble",
			Name:      "annexes_total",
			Help:      "合成时处理的附件数量，按结果区分。",
		},
		[]string{"result"},
	)

	assemblePagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cvforge",
			Subsystem: "assemble",
			Name:      "pages_total",
			Help:      "合成输出的总页数。",
		},
	)
)

// ObserveAssemble 记录一次成功的合成。
func ObserveAssemble(seconds float64, included, skipped, pages int) {
	assembleDuration.Observe(seconds)
	assembleAnnexesTotal.WithLabelValues("included").Add(float64(included))
	assembleAnnexesTotal.WithLabelValues("skipped").Add(float64(skipped))
	assemblePagesTotal.Add(float64(pages))
}
