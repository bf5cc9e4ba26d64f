package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RestoreOutcome string

var (
	RestoreOK        RestoreOutcome = "ok"
	RestoreDiverged  RestoreOutcome = "diverged"
	RestoreMalformed RestoreOutcome = "malformed"
	RestoreStoreFail RestoreOutcome = "store_error"
	RestoreCancelled RestoreOutcome = "cancelled"
)

type nodePromMetrics struct {
	nodeUpUnixSeconds prometheus.Gauge
	restoreDuration   prometheus.Histogram
	restoreCount      *prometheus.CounterVec
	blocksReplayed    prometheus.Counter
	restoredTip       prometheus.Gauge
	checkpointBlock   prometheus.Gauge
	divergenceBlock   prometheus.Gauge
	blockHeight       prometheus.Gauge
	updatesInBlock    prometheus.Histogram
	accountCount      prometheus.Gauge
	panicCount        prometheus.Counter
}

func newNodePromMetrics() *nodePromMetrics {
	return &nodePromMetrics{
		nodeUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rollupstate_node_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the node",
			},
		),
		restoreDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rollupstate_restore_duration_seconds",
				Help:    "Wall time of a state restoration run",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
		restoreCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollupstate_restore_count",
				Help: "The total number of restoration runs by outcome",
			},
			[]string{"outcome"},
		),
		blocksReplayed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rollupstate_restore_blocks_replayed",
				Help: "The total number of blocks replayed onto a restored tree, including locator passes",
			},
		),
		restoredTip: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rollupstate_restored_tip",
				Help: "Block number the state tree was last restored to",
			},
		),
		checkpointBlock: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rollupstate_checkpoint_block",
				Help: "Block number of the checkpoint used as restore base, 0 when none",
			},
		),
		divergenceBlock: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rollupstate_divergence_block",
				Help: "First block whose recorded root did not match the replayed state, 0 when none",
			},
		),
		blockHeight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rollupstate_block_height",
				Help: "The current sealed block height",
			},
		),
		updatesInBlock: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rollupstate_updates_in_block",
				Help:    "Number of account updates in a sealed block",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14),
			},
		),
		accountCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rollupstate_account_count",
				Help: "Number of accounts in the state tree",
			},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rollupstate_panic_count",
				Help: "The total number of recovered panics",
			},
		),
	}
}

var (
	nodeMetrics *nodePromMetrics
	initOnce    sync.Once
)

// InitMetrics registers the node metrics with the default registry. Setters
// call it implicitly, so it is safe to use them before the node starts.
func InitMetrics() {
	initOnce.Do(func() {
		nodeMetrics = newNodePromMetrics()
		nodeMetrics.nodeUpUnixSeconds.SetToCurrentTime()
	})
}

func metrics() *nodePromMetrics {
	InitMetrics()
	return nodeMetrics
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordRestore(outcome RestoreOutcome, duration time.Duration) {
	m := metrics()
	m.restoreDuration.Observe(duration.Seconds())
	m.restoreCount.With(prometheus.Labels{
		"outcome": string(outcome),
	}).Inc()
}

func AddBlocksReplayed(n int) {
	metrics().blocksReplayed.Add(float64(n))
}

func SetRestoredTip(block uint32) {
	metrics().restoredTip.Set(float64(block))
}

func SetCheckpointBlock(block uint32) {
	metrics().checkpointBlock.Set(float64(block))
}

func SetDivergenceBlock(block uint32) {
	metrics().divergenceBlock.Set(float64(block))
}

func SetBlockHeight(block uint32) {
	metrics().blockHeight.Set(float64(block))
}

func RecordUpdatesInBlock(count int) {
	metrics().updatesInBlock.Observe(float64(count))
}

func SetAccountCount(count int) {
	metrics().accountCount.Set(float64(count))
}

func IncreasePanicCount() {
	metrics().panicCount.Inc()
}
