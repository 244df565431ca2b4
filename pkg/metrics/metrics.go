package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Store metrics (§4.1, §6.1)
	StoreBytesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warrensync_store_bytes_total",
			Help: "Total ciphertext bytes currently stored",
		},
	)

	StoreQuotaBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warrensync_store_quota_bytes",
			Help: "Configured storage quota in bytes (0 = unlimited)",
		},
	)

	BranchesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warrensync_branches_total",
			Help: "Total number of branches by admission state",
		},
		[]string{"state"},
	)

	// Tracker metrics (§4.7)
	TrackerOffersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warrensync_tracker_offers_total",
			Help: "Total number of block offers registered with the tracker",
		},
	)

	TrackerAcceptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warrensync_tracker_accepts_total",
			Help: "Total number of block offers accepted by the tracker",
		},
	)

	TrackerMissingBlocks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warrensync_tracker_missing_blocks",
			Help: "Number of blocks currently tracked as missing",
		},
	)

	// Protocol/client metrics (§4.5)
	PendingRequestsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warrensync_pending_requests_total",
			Help: "Number of requests currently awaiting a response, by kind",
		},
		[]string{"kind"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warrensync_request_duration_seconds",
			Help:    "Round-trip duration of a protocol request, by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	BlocksReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warrensync_blocks_received_total",
			Help: "Total number of blocks received and successfully verified",
		},
	)

	BlocksRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warrensync_blocks_rejected_total",
			Help: "Total number of received blocks rejected, by reason",
		},
		[]string{"reason"},
	)

	// Channel metrics (§4.6)
	ChannelBytesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warrensync_channel_bytes_sent_total",
			Help: "Total ciphertext bytes sent over Noise channels",
		},
		[]string{"peer"},
	)

	ChannelBytesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warrensync_channel_bytes_received_total",
			Help: "Total ciphertext bytes received over Noise channels",
		},
		[]string{"peer"},
	)

	ChannelsOpenTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warrensync_channels_open_total",
			Help: "Number of currently open Noise channels",
		},
	)

	HandshakesFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warrensync_handshakes_failed_total",
			Help: "Total number of failed Noise handshakes",
		},
	)

	// Background worker metrics (§9)
	MergeCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warrensync_merge_cycles_total",
			Help: "Total number of merger worker cycles completed",
		},
	)

	MergeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warrensync_merge_duration_seconds",
			Help:    "Time taken for a merger worker cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	GCCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warrensync_gc_cycles_total",
			Help: "Total number of garbage collector cycles completed",
		},
	)

	GCBlocksRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warrensync_gc_blocks_removed_total",
			Help: "Total number of orphaned blocks removed by garbage collection",
		},
	)

	PrunerCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warrensync_pruner_cycles_total",
			Help: "Total number of pruner worker cycles completed",
		},
	)

	PrunerRootsRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warrensync_pruner_roots_removed_total",
			Help: "Total number of superseded root node records removed by the pruner",
		},
	)

	TrashCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warrensync_trash_cycles_total",
			Help: "Total number of trash cleaner worker cycles completed",
		},
	)

	TrashTombstonesRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warrensync_trash_tombstones_removed_total",
			Help: "Total number of causally stable tombstone entries removed by the trash cleaner",
		},
	)

	// API metrics (§6.4)
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warrensync_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warrensync_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(StoreBytesTotal)
	prometheus.MustRegister(StoreQuotaBytes)
	prometheus.MustRegister(BranchesTotal)

	prometheus.MustRegister(TrackerOffersTotal)
	prometheus.MustRegister(TrackerAcceptsTotal)
	prometheus.MustRegister(TrackerMissingBlocks)

	prometheus.MustRegister(PendingRequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(BlocksReceivedTotal)
	prometheus.MustRegister(BlocksRejectedTotal)

	prometheus.MustRegister(ChannelBytesSent)
	prometheus.MustRegister(ChannelBytesReceived)
	prometheus.MustRegister(ChannelsOpenTotal)
	prometheus.MustRegister(HandshakesFailedTotal)

	prometheus.MustRegister(MergeCyclesTotal)
	prometheus.MustRegister(MergeDuration)
	prometheus.MustRegister(GCCyclesTotal)
	prometheus.MustRegister(GCBlocksRemovedTotal)
	prometheus.MustRegister(PrunerCyclesTotal)
	prometheus.MustRegister(PrunerRootsRemovedTotal)
	prometheus.MustRegister(TrashCyclesTotal)
	prometheus.MustRegister(TrashTombstonesRemovedTotal)

	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
