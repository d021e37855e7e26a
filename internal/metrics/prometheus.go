// Copyright 2025 Alibaba Group Holding Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ewm_robot"

// Prometheus is a Sink backed by a private Prometheus registry.
type Prometheus struct {
	registry *prometheus.Registry

	watchEvents      *prometheus.CounterVec
	callbackFailures *prometheus.CounterVec
	reprocessSkipped *prometheus.CounterVec
	stateEntries     *prometheus.CounterVec
	missions         *prometheus.CounterVec
	confirmations    *prometheus.CounterVec
	effectFailures   *prometheus.CounterVec
}

var _ Sink = (*Prometheus)(nil)

// NewPrometheus creates the collectors and registers them on a new registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		watchEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "watcher",
				Name:      "events_total",
				Help:      "Events dispatched by resource watchers",
			},
			[]string{"resource", "operation"},
		),
		callbackFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "watcher",
				Name:      "callback_failures_total",
				Help:      "Callbacks that returned an error or panicked",
			},
			[]string{"resource", "callback"},
		),
		reprocessSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "watcher",
				Name:      "reprocess_skipped_total",
				Help:      "REPROCESS dispatches skipped because the resource was busy",
			},
			[]string{"resource"},
		),
		stateEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "statemachine",
				Name:      "state_entries_total",
				Help:      "State machine state entries",
			},
			[]string{"robot", "state"},
		),
		missions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "runner",
				Name:      "missions_created_total",
				Help:      "Missions created",
			},
			[]string{"robot", "kind"},
		),
		confirmations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "runner",
				Name:      "confirmations_total",
				Help:      "Warehouse task confirmations sent",
			},
			[]string{"robot", "number", "result"},
		),
		effectFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "runner",
				Name:      "effect_failures_total",
				Help:      "Effects that failed during execution",
			},
			[]string{"robot", "effect"},
		),
	}
	p.registry.MustRegister(
		p.watchEvents,
		p.callbackFailures,
		p.reprocessSkipped,
		p.stateEntries,
		p.missions,
		p.confirmations,
		p.effectFailures,
	)
	return p
}

// Registry returns the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) WatchEvent(resource, op string) {
	p.watchEvents.WithLabelValues(resource, op).Inc()
}

func (p *Prometheus) CallbackFailure(resource, callback string) {
	p.callbackFailures.WithLabelValues(resource, callback).Inc()
}

func (p *Prometheus) ReprocessSkipped(resource string) {
	p.reprocessSkipped.WithLabelValues(resource).Inc()
}

func (p *Prometheus) StateEntered(robot, state string) {
	p.stateEntries.WithLabelValues(robot, state).Inc()
}

func (p *Prometheus) MissionCreated(robot, kind string) {
	p.missions.WithLabelValues(robot, kind).Inc()
}

func (p *Prometheus) Confirmation(robot, number, result string) {
	p.confirmations.WithLabelValues(robot, number, result).Inc()
}

func (p *Prometheus) EffectFailed(robot, effect string) {
	p.effectFailures.WithLabelValues(robot, effect).Inc()
}
