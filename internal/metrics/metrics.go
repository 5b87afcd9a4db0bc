package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "holistia_availability",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	slotRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "holistia_availability",
			Name:      "slot_requests_total",
			Help:      "Count of slot generations by mode.",
		},
		[]string{"mode"},
	)

	syncPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "holistia_availability",
			Name:      "calendar_sync_passes_total",
			Help:      "Count of external calendar sync passes by result.",
		},
		[]string{"result"},
	)

	syncBlocksInserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "holistia_availability",
			Name:      "calendar_sync_blocks_inserted_total",
			Help:      "Count of blocks inserted by calendar sync.",
		},
	)

	syncBlocksDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "holistia_availability",
			Name:      "calendar_sync_blocks_deleted_total",
			Help:      "Count of blocks deleted by calendar sync.",
		},
	)

	checkins = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "holistia_availability",
			Name:      "challenge_checkins_total",
			Help:      "Count of challenge check-ins recorded.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests, slotRequests, syncPasses,
			syncBlocksInserted, syncBlocksDeleted, checkins,
		)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncSlotRequest(mode string) {
	slotRequests.WithLabelValues(mode).Inc()
}

func IncSyncPass(result string) {
	syncPasses.WithLabelValues(result).Inc()
}

func AddSyncBlocks(inserted, deleted int) {
	syncBlocksInserted.Add(float64(inserted))
	syncBlocksDeleted.Add(float64(deleted))
}

func IncCheckin() {
	checkins.Inc()
}
