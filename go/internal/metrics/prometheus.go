package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "typeduel"

// Collectors implements the MetricsCollector interfaces of the rankings,
// match and gateway packages on one registry.
type Collectors struct {
	registry *prometheus.Registry

	rankingSubmissions *prometheus.CounterVec
	persistFailures    *prometheus.CounterVec
	leaderboardSize    prometheus.Gauge

	matchesCreated prometheus.Counter
	matchesClosed  *prometheus.CounterVec
	playersWaiting prometheus.Gauge
	activeRooms    prometheus.Gauge
	inputs         prometheus.Counter

	activeConnections prometheus.Gauge
	inboundMessages   *prometheus.CounterVec
	droppedMessages   *prometheus.CounterVec
	sessionsArchived  *prometheus.CounterVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collectors{
		registry: reg,

		rankingSubmissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_submissions_total",
			Help:      "Leaderboard submissions by outcome",
		}, []string{"outcome"}),
		persistFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_persist_failures_total",
			Help:      "Failed leaderboard saves by backend",
		}, []string{"backend"}),
		leaderboardSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "leaderboard_entries",
			Help:      "Current number of leaderboard entries",
		}),

		matchesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_created_total",
			Help:      "Total number of duels created by the coordinator",
		}),
		matchesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_closed_total",
			Help:      "Duels removed from the registry by reason",
		}, []string{"reason"}),
		playersWaiting: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "players_waiting",
			Help:      "Players in the waiting slot (0 or 1)",
		}),
		activeRooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Duels currently registered",
		}),
		inputs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_inputs_total",
			Help:      "Scoring inputs applied to rooms",
		}),

		activeConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_active_connections",
			Help:      "Open websocket connections",
		}),
		inboundMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_inbound_messages_total",
			Help:      "Inbound websocket messages by kind",
		}, []string{"kind"}),
		droppedMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_dropped_messages_total",
			Help:      "Messages dropped by the gateway by reason",
		}, []string{"reason"}),
		sessionsArchived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_archived_total",
			Help:      "Typing sessions replayed by archive outcome",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// rankings

func (c *Collectors) RecordRankingSubmission(accepted bool) {
	c.rankingSubmissions.WithLabelValues(outcome(accepted, "accepted", "rejected")).Inc()
}

func (c *Collectors) RecordPersistFailure(backend string) {
	c.persistFailures.WithLabelValues(backend).Inc()
}

func (c *Collectors) SetLeaderboardSize(n int) {
	c.leaderboardSize.Set(float64(n))
}

// match

func (c *Collectors) RecordMatchCreated() {
	c.matchesCreated.Inc()
}

func (c *Collectors) RecordMatchClosed(reason string) {
	c.matchesClosed.WithLabelValues(reason).Inc()
}

func (c *Collectors) SetPlayersWaiting(n int) {
	c.playersWaiting.Set(float64(n))
}

func (c *Collectors) SetActiveRooms(n int) {
	c.activeRooms.Set(float64(n))
}

func (c *Collectors) RecordInput() {
	c.inputs.Inc()
}

// gateway

func (c *Collectors) SetActiveConnections(n int) {
	c.activeConnections.Set(float64(n))
}

func (c *Collectors) RecordInboundMessage(kind string) {
	c.inboundMessages.WithLabelValues(kind).Inc()
}

func (c *Collectors) RecordDroppedMessage(reason string) {
	c.droppedMessages.WithLabelValues(reason).Inc()
}

// sessions

func (c *Collectors) RecordSessionArchived(archived bool) {
	c.sessionsArchived.WithLabelValues(outcome(archived, "archived", "not_archived")).Inc()
}
