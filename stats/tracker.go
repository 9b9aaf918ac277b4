// Package stats tracks and exports estimator counters, histograms and
// gauges as Prometheus collectors registered by NewTracker, each named
// with a "pd3_" prefix.
package stats

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Tracker accumulates estimator-wide counters and exposes them as
// Prometheus collectors. One Tracker is normally shared by every Outlet of
// a given Estimator.
type Tracker struct {
	mu sync.Mutex

	lossArrivals prometheus.Counter
	lossGaps     prometheus.Counter

	extentHist  prometheus.Histogram
	densityHist prometheus.Histogram

	queueDepth   prometheus.Gauge
	freelistSize *prometheus.GaugeVec
}

// NewTracker constructs a Tracker and registers its collectors with reg. If
// reg is nil, prometheus.DefaultRegisterer is used.
func NewTracker(reg prometheus.Registerer) *Tracker {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	t := &Tracker{
		lossArrivals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pd3_loss_arrivals_total",
			Help: "Total packets observed by the loss estimator.",
		}),
		lossGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pd3_loss_gaps_total",
			Help: "Total presumed-dropped sequence numbers.",
		}),
		extentHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pd3_reorder_extent_bucket",
			Help:    "Reorder extent (arrivals since reference position) per packet; 0 for in-order arrivals.",
			Buckets: prometheus.LinearBuckets(0, 16, 16),
		}),
		densityHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pd3_reorder_density_bucket",
			Help:    "Signed displacement of each packet relative to the sliding window; 0 for in-order arrivals.",
			Buckets: prometheus.LinearBuckets(-8, 1, 17),
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pd3_queue_depth",
			Help: "Current depth of the aggregator's shared producer queue.",
		}),
		freelistSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pd3_freelist_size",
			Help: "Number of recycled objects held per freelist domain.",
		}, []string{"domain"}),
	}
	reg.MustRegister(t.lossArrivals, t.lossGaps, t.extentHist, t.densityHist, t.queueDepth, t.freelistSize)
	return t
}

func (t *Tracker) AddLoss(arrivals, gaps int) {
	t.lossArrivals.Add(float64(arrivals))
	t.lossGaps.Add(float64(gaps))
}

func (t *Tracker) ObserveExtent(hist []int) {
	for extent, count := range hist {
		for i := 0; i < count; i++ {
			t.extentHist.Observe(float64(extent))
		}
	}
}

func (t *Tracker) ObserveDensity(fd []int) {
	dt := len(fd) / 2
	for i, count := range fd {
		d := i - dt
		for n := 0; n < count; n++ {
			t.densityHist.Observe(float64(d))
		}
	}
}

func (t *Tracker) SetQueueDepth(n int) { t.queueDepth.Set(float64(n)) }

func (t *Tracker) SetFreelistSize(domain string, n int) {
	t.freelistSize.WithLabelValues(domain).Set(float64(n))
}
