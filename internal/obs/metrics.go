package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WaitingClients      = promauto.NewGauge(prometheus.GaugeOpts{Name: "pairsona_waiting_clients", Help: "Clients currently waiting for a partner"})
	ActivePairs         = promauto.NewGauge(prometheus.GaugeOpts{Name: "pairsona_active_pairs", Help: "Pairs currently relaying"})
	PairsFormedTotal    = promauto.NewCounter(prometheus.CounterOpts{Name: "pairsona_pairs_formed_total", Help: "Pairs formed"})
	RelayFramesTotal    = promauto.NewCounter(prometheus.CounterOpts{Name: "pairsona_relay_frames_total", Help: "Frames relayed between paired clients"})
	WaitTimeoutTotal    = promauto.NewCounter(prometheus.CounterOpts{Name: "pairsona_wait_timeout_total", Help: "Clients closed after exceeding the maximum wait"})
	LookupUnknownTotal  = promauto.NewCounter(prometheus.CounterOpts{Name: "pairsona_lookup_unknown_total", Help: "Location lookups that returned the unknown sentinel"})
	ErrorsTotal         = promauto.NewCounterVec(prometheus.CounterOpts{Name: "pairsona_errors_total", Help: "Errors by type"}, []string{"type"})
	PairDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{Name: "pairsona_pair_duration_seconds", Help: "Pair lifetime seconds", Buckets: prometheus.ExponentialBuckets(0.1, 2, 14)})
)
