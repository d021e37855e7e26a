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

package statemachine

import (
	"k8s.io/klog/v2"
)

// missionFailed applies the failure policy of the current state: retry in
// place up to MaxRetries, wait in RobotError while the robot is not OK, escalate beyond.
func (m *Machine) missionFailed(reason string) *plan {
	cur := m.state
	group := errorGroup(cur)
	count := m.errorCounts[group] + 1
	klog.InfoS("mission failed", "robot", m.robot, "state", cur.String(), "reason", reason, "failures", count)

	if count > MaxRetries {
		return m.escalate(reason)
	}

	p := newPlan(cur, reason).onCommit(func(m *Machine, _ Result) {
		m.errorCounts[group] = count
	})
	next := m.chargerIndex
	if cur == top(Charging) && len(m.cfg.Chargers) > 0 {
		next = (m.chargerIndex + 1) % len(m.cfg.Chargers)
		p.onCommit(func(m *Machine, _ Result) {
			m.chargerIndex = next
		})
	}
	if !m.obs.RobotOK {
		return p.enter(top(RobotError)).onCommit(func(m *Machine, _ Result) {
			m.errorPrior = cur
		})
	}
	return m.retry(p, cur, next)
}

// retry resumes the work of prior.
func (m *Machine) retry(p *plan, prior State, charger int) *plan {
	switch prior {
	case top(Moving):
		if m.lowBattery() && len(m.cfg.Chargers) > 0 {
			return m.planCharging(p, charger)
		}
		target := m.moveTarget
		if target == "" {
			target = m.cfg.StagingArea
		}
		return m.planMove(p, target)
	case top(Charging):
		if len(m.cfg.Chargers) == 0 {
			return m.settle(p, NoWarehouseOrder)
		}
		return m.planCharging(p, charger)
	case moveHU(MovingToSourceBin), moveHU(Loading):
		task, _, ok := m.activeTaskData()
		if !ok || !task.HasSource() {
			return m.findTargetIn(p.enter(moveHU(FindingTarget)))
		}
		return p.enter(moveHU(MovingToSourceBin)).
			do(CreateMission{Mission: MissionMove, Target: task.SourceBin, Task: &task})
	case moveHU(MovingToTargetBin), moveHU(Unloading):
		task, _, ok := m.activeTaskData()
		if !ok || !task.HasTarget() {
			return m.findTargetIn(p.enter(moveHU(FindingTarget)))
		}
		return p.enter(moveHU(MovingToTargetBin)).
			do(CreateMission{Mission: MissionMove, Target: task.TargetBin, Task: &task})
	case pickPackPass(Moving):
		return m.findTargetIn(p.enter(pickPackPass(FindingTarget)))
	case moveHU(WaitingForErrorRecovery), pickPackPass(WaitingAtPick), pickPackPass(WaitingAtTarget):
		if m.activeOrder != nil {
			return p.enter(prior)
		}
	}
	if prior.InOrder() && m.activeOrder != nil {
		if o, ok := m.activeOrderData(); ok && o.Composite {
			return m.findTargetIn(p.enter(pickPackPass(FindingTarget)))
		}
		return m.findTargetIn(p.enter(moveHU(FindingTarget)))
	}
	return m.settle(p, NoWarehouseOrder)
}

// escalate handles a state that failed more than MaxRetries times.
func (m *Machine) escalate(reason string) *plan {
	cur := m.state
	group := errorGroup(cur)
	resetCounter := func(m *Machine, _ Result) {
		delete(m.errorCounts, group)
	}
	klog.InfoS("giving up after repeated failures", "robot", m.robot, "state", cur.String(), "reason", reason)

	switch group {
	case moveHU(MovingToSourceBin), pickPackPass(Moving):
		return newPlan(cur, "task failed: "+reason).
			do(SendTaskError{Task: m.activeTaskOrStub()}).
			enter(top(RobotError)).
			onCommit(resetCounter).
			onCommit(func(m *Machine, _ Result) {
				m.clearActiveOrder(true)
				m.errorPrior = Initial
			})
	case moveHU(MovingToTargetBin):
		task := m.activeTaskOrStub()
		p := newPlan(cur, "task failed: "+reason).do(SendTaskError{Task: task}).onCommit(resetCounter)
		_, order, ok := m.activeTaskData()
		if ok && m.unconfirmedAtPick(task, order) {
			return m.planFinish(p, *m.activeOrder, true)
		}
		return p.do(NotifyOrderCompletion{Order: *m.activeOrder}).
			enter(moveHU(WaitingForErrorRecovery))
	case top(Moving):
		if m.moveTarget != "" && m.moveTarget == m.cfg.StagingArea {
			return newPlan(cur, "staging area unreachable, treating as reached").
				enter(top(AtTarget)).
				onCommit(resetCounter).
				onCommit(func(m *Machine, _ Result) {
					m.atStaging = true
				})
		}
	case top(Charging):
		if n := len(m.cfg.Chargers); n > 0 {
			next := (m.chargerIndex + 1) % n
			return newPlan(cur, reason).
				enter(top(RobotError)).
				onCommit(resetCounter).
				onCommit(func(m *Machine, _ Result) {
					m.chargerIndex = next
					m.errorPrior = cur
				})
		}
	}
	return newPlan(cur, reason).
		enter(top(RobotError)).
		onCommit(resetCounter).
		onCommit(func(m *Machine, _ Result) {
			m.errorPrior = cur
		})
}

// tickRobotError recovers once the robot is OK and recovery is enabled.
func (m *Machine) tickRobotError() *Step {
	if !m.obs.RobotOK || !m.cfg.RecoverFromRobotError {
		return nil
	}
	if m.failedStep != nil {
		step := m.failedStep.clone(m.state)
		step.Reason = "retry: " + step.Reason
		m.failedStep = nil
		m.pending = step
		return step
	}
	prior := m.errorPrior
	klog.InfoS("recovering from robot error", "robot", m.robot, "prior", prior.String())
	return m.propose(m.retry(newPlan(m.state, "recovered from robot error"), prior, m.chargerIndex))
}
