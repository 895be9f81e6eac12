// ABOUTME: Prometheus collectors for fleet state, search outcomes and operator commands.
// ABOUTME: Fed from fleet snapshots and the notice hub; served over HTTP when enabled.

package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/2389/lobby-scout/internal/fleet"
	"github.com/2389/lobby-scout/internal/notify"
)

const namespace = "lobby_scout"

var allStates = []fleet.ConnState{
	fleet.StateConnecting,
	fleet.StateConnected,
	fleet.StateDisconnected,
	fleet.StateKicked,
	fleet.StateErrored,
}

// Fleet exposes Prometheus collectors that report fleet activity.
type Fleet struct {
	agents       *prometheus.GaugeVec
	searching    prometheus.Gauge
	found        prometheus.Gauge
	sightings    prometheus.Counter
	swapFailures prometheus.Counter
	commands     *prometheus.CounterVec
}

// MustNewFleet constructs and registers the collectors. A nil registerer
// means prometheus.DefaultRegisterer. Registration errors panic.
func MustNewFleet(reg prometheus.Registerer) *Fleet {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Fleet{
		agents: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "agents",
				Help:      "Number of live agents by connection state.",
			},
			[]string{"state"},
		),
		searching: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents_searching",
			Help:      "Number of agents currently rotating through lobbies.",
		}),
		found: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents_target_found",
			Help:      "Number of live agents sharing a lobby with the target.",
		}),
		sightings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sightings_total",
			Help:      "Total number of times an agent spotted the target.",
		}),
		swapFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_failures_total",
			Help:      "Total number of lobby moves refused by the server.",
		}),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Operator commands executed, by command name.",
			},
			[]string{"command"},
		),
	}
	reg.MustRegister(m.agents, m.searching, m.found, m.sightings, m.swapFailures, m.commands)
	for _, s := range allStates {
		m.agents.WithLabelValues(s.String()).Set(0)
	}
	return m
}

// MustRegisterNoticeDrops exposes the number of notices a subscriber lost
// because its buffer was full. A nil registerer means
// prometheus.DefaultRegisterer.
func MustRegisterNoticeDrops(reg prometheus.Registerer, dropped func() uint64) prometheus.CounterFunc {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_dropped_total",
			Help:      "Notices skipped because a subscriber fell behind.",
		},
		func() float64 { return float64(dropped()) },
	)
	reg.MustRegister(c)
	return c
}

// ObserveSnapshot sets the gauges from a fleet snapshot.
func (m *Fleet) ObserveSnapshot(views []fleet.AgentView) {
	if m == nil {
		return
	}
	counts := make(map[fleet.ConnState]int, len(allStates))
	searching, found := 0, 0
	for _, v := range views {
		counts[v.State]++
		if v.Searching {
			searching++
		}
		if v.TargetFound {
			found++
		}
	}
	for _, s := range allStates {
		m.agents.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
	m.searching.Set(float64(searching))
	m.found.Set(float64(found))
}

// ObserveNotice counts sightings and refused lobby moves.
func (m *Fleet) ObserveNotice(n notify.Notice) {
	if m == nil {
		return
	}
	switch {
	case n.Kind == notify.KindSighting:
		m.sightings.Inc()
	case n.Kind == notify.KindWarning && n.Source == notify.SourceSwapFailure:
		m.swapFailures.Inc()
	}
}

// IncCommand counts one operator command.
func (m *Fleet) IncCommand(name string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name).Inc()
}

// Run feeds notices into the counters until the channel closes or ctx is
// done.
func (m *Fleet) Run(ctx context.Context, notices <-chan notify.Notice) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notices:
			if !ok {
				return
			}
			m.ObserveNotice(n)
		}
	}
}
