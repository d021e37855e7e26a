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

// Package statemachine implements the per robot order fulfillment state machine.
//
// The machine performs no I/O. Every input returns a Step describing the
// transition and the effects that must be executed for it; the caller runs the
// effects and reports back with Complete. Until then the machine is in
// transition and ignores ticks.
package statemachine

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"
)

const (
	// MaxRetries is the number of mission failures retried per state before escalation.
	MaxRetries = 3
	// WorkRequestInterval spaces work requests while the robot has no order.
	WorkRequestInterval = 10 * time.Second
	// IdleWorkRequestInterval is how long an idling robot waits before asking for work again.
	IdleWorkRequestInterval = 10 * time.Minute
	// OrderRestoreTimeout bounds the wait for order data after a restore.
	OrderRestoreTimeout = 2 * time.Minute
	fullBattery         = 100.0
)

// Machine is the state machine of one robot. It is not safe for concurrent use.
type Machine struct {
	robot string
	cfg   Config

	state      State
	stateSince time.Time
	now        time.Time
	obs        Observation

	orders    *orderQueue
	subOrders *orderQueue
	// done holds finished or canceled orders whose resources still exist.
	done sets.Set[OrderKey]

	activeOrder    *OrderKey
	activeSubOrder *OrderKey
	activeTask     string
	mission        *Mission
	moveTarget     string
	atStaging      bool
	// pickLeg is set while a pick, pack and pass move heads to a pick location.
	pickLeg        bool
	pickLegUnknown bool
	chargerIndex   int

	firstConfirmed  sets.Set[taskKey]
	secondConfirmed sets.Set[taskKey]

	errorPrior  State
	errorCounts map[State]int
	failedStep  *Step

	lastWorkRequest time.Time
	restoring       bool
	restoredAt      time.Time

	pending *Step
}

// New returns a machine in the initial state.
func New(robot string, cfg Config) *Machine {
	return &Machine{
		robot:           robot,
		cfg:             cfg,
		state:           Initial,
		orders:          newOrderQueue(),
		subOrders:       newOrderQueue(),
		done:            sets.New[OrderKey](),
		firstConfirmed:  sets.New[taskKey](),
		secondConfirmed: sets.New[taskKey](),
		errorPrior:      Initial,
		errorCounts:     make(map[State]int),
	}
}

func (m *Machine) Robot() string {
	return m.robot
}

func (m *Machine) State() State {
	return m.state
}

// InTransition reports whether a step is waiting for Complete.
func (m *Machine) InTransition() bool {
	return m.pending != nil
}

// ActiveMission returns a copy of the mission the machine polls, nil without one.
func (m *Machine) ActiveMission() *Mission {
	if m.mission == nil {
		return nil
	}
	out := *m.mission
	return &out
}

// ActiveOrder returns the order being processed.
func (m *Machine) ActiveOrder() (OrderKey, bool) {
	if m.activeOrder == nil {
		return OrderKey{}, false
	}
	return *m.activeOrder, true
}

// ErrorCount returns the failure counter kept for state s.
func (m *Machine) ErrorCount(s State) int {
	return m.errorCounts[errorGroup(s)]
}

// QueueLength returns the number of queued orders including the active one.
func (m *Machine) QueueLength() int {
	return m.orders.len()
}

// ConfigChanged replaces the robot configuration.
func (m *Machine) ConfigChanged(cfg Config) {
	m.cfg = cfg
	if len(cfg.Chargers) == 0 || m.chargerIndex >= len(cfg.Chargers) {
		m.chargerIndex = 0
	}
}

// Tick advances the machine with freshly polled data. It is a no-op while in transition.
func (m *Machine) Tick(obs Observation) *Step {
	if m.pending != nil {
		return nil
	}
	m.obs = obs
	m.now = obs.Now
	if m.stateSince.IsZero() {
		m.stateSince = obs.Now
	}
	if obs.Mission != nil && m.mission != nil && obs.Mission.Name == m.mission.Name {
		m.mission.Status = obs.Mission.Status
		m.mission.ActiveAction = obs.Mission.ActiveAction
	}

	if m.activeOrder != nil {
		if _, ok := m.orders.get(*m.activeOrder); !ok {
			if !m.restoring {
				return m.propose(m.orderGone("order data gone", false))
			}
			if m.restoredAt.IsZero() {
				m.restoredAt = obs.Now
			}
			if obs.Now.Sub(m.restoredAt) < OrderRestoreTimeout {
				return nil
			}
			klog.InfoS("order did not reappear after restore", "robot", m.robot, "order", m.activeOrder.String())
			m.restoring = false
			return m.propose(m.orderGone("order missing after restore", false))
		}
	}

	switch {
	case m.state == top(NoWarehouseOrder):
		return m.propose(m.tickNoOrder())
	case m.state == top(Idling):
		return m.propose(m.tickIdling())
	case m.state == top(AtTarget):
		return m.propose(m.settle(newPlan(m.state, "reached target"), Idling))
	case m.state == top(Moving):
		return m.propose(m.tickMoving())
	case m.state == top(Charging):
		return m.propose(m.tickCharging())
	case m.state == top(RobotError):
		return m.tickRobotError()
	case m.state.Process == ProcessMoveHU:
		return m.propose(m.tickMoveHU())
	case m.state.Process == ProcessPickPackPass:
		return m.propose(m.tickPickPackPass())
	}
	return nil
}

// Complete reports the outcome of the pending step. It returns a follow-up
// step, nil when the machine is at rest.
func (m *Machine) Complete(res Result, err error) *Step {
	step := m.pending
	if step == nil {
		return nil
	}
	m.pending = nil
	if err != nil {
		return m.propose(m.effectFailed(step, err))
	}

	for _, s := range step.Path {
		m.enter(s)
	}
	if !ownsMission(m.state) {
		m.mission = nil
	}
	if res.Mission != nil {
		mission := *res.Mission
		m.mission = &mission
	}
	for _, commit := range step.commits {
		commit(m, res)
	}
	if step.then != nil {
		return m.propose(step.then(m))
	}
	return nil
}

// propose turns a plan into the pending step. Plans without transitions or
// effects are applied immediately.
func (m *Machine) propose(p *plan) *Step {
	if p == nil {
		return nil
	}
	step := p.done()
	if len(step.Path) == 0 && len(step.Effects) == 0 {
		for _, commit := range step.commits {
			commit(m, Result{})
		}
		if step.then != nil {
			return m.propose(step.then(m))
		}
		return nil
	}
	m.pending = step
	return step
}

func (m *Machine) enter(s State) {
	if s == m.state {
		return
	}
	if s.Sub != RobotError && m.state.Sub != RobotError && errorGroup(s) != errorGroup(m.state) {
		delete(m.errorCounts, errorGroup(m.state))
	}
	m.state = s
	m.stateSince = m.now
}

func (m *Machine) effectFailed(step *Step, err error) *plan {
	prior := m.state
	if prior.Sub == RobotError {
		prior = m.errorPrior
	}
	klog.ErrorS(err, "step failed", "robot", m.robot, "step", step.String())
	if onlyWorkRequests(step) {
		return newPlan(m.state, "work request failed").onCommit(func(m *Machine, _ Result) {
			m.lastWorkRequest = m.now
		})
	}
	return newPlan(m.state, fmt.Sprintf("effect failed: %v", err)).
		enter(top(RobotError)).
		onCommit(func(m *Machine, _ Result) {
			m.errorPrior = prior
			m.errorCounts[errorGroup(prior)]++
			m.failedStep = step
		})
}

// onlyWorkRequests reports whether a failed step can be dropped without a state change.
func onlyWorkRequests(step *Step) bool {
	if len(step.Path) > 0 {
		return false
	}
	for _, e := range step.Effects {
		if e.Kind() != EffectRequestWork {
			return false
		}
	}
	return len(step.Effects) > 0
}

// Snapshot returns the persistable progress.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		State:        m.state.String(),
		Tanum:        m.activeTask,
		ChargerIndex: m.chargerIndex,
	}
	if m.activeOrder != nil {
		s.Lgnum = m.activeOrder.Lgnum
		s.Who = m.activeOrder.Who
	}
	if m.activeSubOrder != nil {
		s.SubWho = m.activeSubOrder.Who
	}
	if m.mission != nil {
		s.Mission = m.mission.Name
		s.MissionKind = m.mission.Kind
	}
	if m.state.Sub == RobotError {
		s.ErrorPrior = m.errorPrior.String()
	}
	return s
}

// Restore resumes from a snapshot. Order data must be fed again with
// OrderChanged; until it arrives the machine only waits.
func (m *Machine) Restore(s Snapshot) error {
	state, err := ParseState(s.State)
	if err != nil {
		return fmt.Errorf("failed to restore robot %s: %w", m.robot, err)
	}
	if state.Sub == StartedWarehouseOrder || state.Sub == FinishedWarehouseOrder {
		state = Initial
	}
	m.state = state
	m.pending = nil
	m.chargerIndex = s.ChargerIndex
	if m.chargerIndex < 0 || m.chargerIndex >= len(m.cfg.Chargers) {
		m.chargerIndex = 0
	}
	m.activeOrder, m.activeSubOrder, m.activeTask = nil, nil, s.Tanum
	if s.Who != "" {
		m.activeOrder = &OrderKey{Lgnum: s.Lgnum, Who: s.Who}
		m.restoring = true
	}
	if s.SubWho != "" {
		m.activeSubOrder = &OrderKey{Lgnum: s.Lgnum, Who: s.SubWho}
	}
	m.pickLegUnknown = state == pickPackPass(Moving)
	m.mission = nil
	if s.Mission != "" {
		kind := s.MissionKind
		if kind == "" {
			kind = missionKindFor(state)
		}
		m.mission = &Mission{Name: s.Mission, Kind: kind, Status: MissionUnknown}
	}
	if state.Sub == RobotError {
		m.errorPrior = restoredErrorPrior(s.ErrorPrior, m.activeOrder != nil)
	}
	klog.InfoS("restored state machine", "robot", m.robot, "state", state.String(), "order", s.Who, "mission", s.Mission)
	return nil
}

// restoredErrorPrior falls back to finding a target again when the persisted
// prior is missing or unreadable.
func restoredErrorPrior(persisted string, inOrder bool) State {
	if prior, err := ParseState(persisted); err == nil && prior.Sub != RobotError {
		return prior
	}
	if inOrder {
		return State{Process: ProcessMoveHU, Sub: FindingTarget}
	}
	return Initial
}

func missionKindFor(s State) MissionKind {
	switch s {
	case top(Charging):
		return MissionCharge
	case moveHU(Loading):
		return MissionLoad
	case moveHU(Unloading):
		return MissionUnload
	}
	return MissionMove
}

// lowBattery is false until the first observation arrived.
func (m *Machine) lowBattery() bool {
	return !m.obs.Now.IsZero() && m.obs.Battery < m.cfg.BatteryMin
}

func (m *Machine) missionTerminal() bool {
	if m.mission == nil {
		return true
	}
	switch m.mission.Status {
	case MissionSucceeded, MissionFailed, MissionCanceled, MissionDeleted:
		return true
	}
	return false
}

// cancelRunningMission adds a cancel effect for a mission still in flight.
func (m *Machine) cancelRunningMission(p *plan) *plan {
	if m.mission != nil && !m.missionTerminal() {
		p.do(CancelMission{Name: m.mission.Name, Mission: m.mission.Kind})
	}
	return p
}
