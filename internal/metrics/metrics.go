// Package metrics holds the prometheus collectors of a ledger process.
//
// Collectors live on a private registry so tests and multiple instances never
// collide on the global default one. A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"RoomLedger/internal/floor"
	"RoomLedger/internal/store"
)

// Commit outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeStale     = "stale"
	OutcomeMalformed = "malformed"
	OutcomeInvalid   = "invalid"
	OutcomeNotFound  = "not_found"
	OutcomeExists    = "exists"
	OutcomeError     = "error"
)

// Metrics groups the ledger collectors.
type Metrics struct {
	registry *prometheus.Registry

	commits        *prometheus.CounterVec // commits counts mutations by operation and outcome
	treeBuild      prometheus.Histogram   // treeBuild tracks Merkle tree build latency
	roomsPerCommit prometheus.Histogram   // roomsPerCommit tracks room list size of committed states
	proofs         *prometheus.CounterVec // proofs counts proof requests and verifications
	snapshots      *prometheus.CounterVec // snapshots counts snapshot exports and imports
	floors         prometheus.Gauge       // floors is the floor count seen by the last audit
}

// New creates the collectors on a fresh registry, including Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		commits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roomledger_commits_total",
			Help: "Floor mutations by operation and outcome",
		}, []string{"op", "outcome"}),
		treeBuild: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "roomledger_tree_build_duration_seconds",
			Help:    "Merkle tree build duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14), // 10us to ~80ms
		}),
		roomsPerCommit: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "roomledger_rooms_per_commit",
			Help:    "Number of rooms in each committed floor state",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 500, 1000},
		}),
		proofs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roomledger_proofs_total",
			Help: "Inclusion proofs by action (prove, verify) and result",
		}, []string{"action", "result"}),
		snapshots: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roomledger_snapshots_total",
			Help: "Snapshot exports and imports by outcome",
		}, []string{"action", "outcome"}),
		floors: f.NewGauge(prometheus.GaugeOpts{
			Name: "roomledger_floors",
			Help: "Number of floors seen by the last audit",
		}),
	}
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Outcome classifies a mutation error into a label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, floor.ErrStaleVersion):
		return OutcomeStale
	case errors.Is(err, floor.ErrMalformedRecord):
		return OutcomeMalformed
	case errors.Is(err, floor.ErrRoomIndex):
		return OutcomeInvalid
	case errors.Is(err, store.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, store.ErrExists):
		return OutcomeExists
	default:
		return OutcomeError
	}
}

// Commit records the outcome of one mutation.
func (m *Metrics) Commit(op string, err error) {
	if m == nil {
		return
	}

	m.commits.WithLabelValues(op, Outcome(err)).Inc()
}

// TreeBuilt records a tree build over rooms entries.
func (m *Metrics) TreeBuilt(elapsed time.Duration, rooms int) {
	if m == nil {
		return
	}

	m.treeBuild.Observe(elapsed.Seconds())
	m.roomsPerCommit.Observe(float64(rooms))
}

// Proof records a proof action ("prove" or "verify") and whether it succeeded.
func (m *Metrics) Proof(action string, ok bool) {
	if m == nil {
		return
	}

	result := "ok"
	if !ok {
		result = "rejected"
	}

	m.proofs.WithLabelValues(action, result).Inc()
}

// Snapshot records a snapshot action ("export" or "import").
func (m *Metrics) Snapshot(action string, err error) {
	if m == nil {
		return
	}

	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}

	m.snapshots.WithLabelValues(action, outcome).Inc()
}

// SetFloors records the current floor count.
func (m *Metrics) SetFloors(n int) {
	if m == nil {
		return
	}

	m.floors.Set(float64(n))
}
