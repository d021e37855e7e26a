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

// tickNoOrder starts queued work, charges, parks at staging or asks for work.
func (m *Machine) tickNoOrder() *plan {
	if o, ok := m.nextOrder(); ok {
		return m.planStartOrder(newPlan(m.state, "queued order"), o)
	}
	if m.lowBattery() && len(m.cfg.Chargers) > 0 {
		return m.planCharging(newPlan(m.state, "battery low"), m.chargerIndex)
	}
	if m.cfg.MaxIdleTime > 0 && m.cfg.StagingArea != "" && !m.atStaging &&
		m.now.Sub(m.stateSince) >= m.cfg.MaxIdleTime {
		return m.planMove(newPlan(m.state, "idle timeout"), m.cfg.StagingArea)
	}
	if m.obs.RobotOK && m.now.Sub(m.lastWorkRequest) >= WorkRequestInterval {
		return m.requestWork(newPlan(m.state, "no order"), false)
	}
	return nil
}

func (m *Machine) tickIdling() *plan {
	if o, ok := m.nextOrder(); ok {
		return m.planStartOrder(newPlan(m.state, "queued order"), o)
	}
	if m.obs.Battery < m.cfg.BatteryIdle && len(m.cfg.Chargers) > 0 {
		return m.planCharging(newPlan(m.state, "battery below idle threshold"), m.chargerIndex)
	}
	if m.obs.RobotOK && m.now.Sub(m.stateSince) >= IdleWorkRequestInterval {
		return m.requestWork(newPlan(m.state, "idle for too long").enter(top(NoWarehouseOrder)), false)
	}
	return nil
}

func (m *Machine) tickMoving() *plan {
	if o, ok := m.nextOrder(); ok {
		return m.planStartOrder(m.cancelRunningMission(newPlan(m.state, "order while moving")), o)
	}
	return m.pollMission(func() *plan {
		reached := m.moveTarget
		return newPlan(m.state, "move succeeded").
			enter(top(AtTarget)).
			onCommit(func(m *Machine, _ Result) {
				m.atStaging = reached != "" && reached == m.cfg.StagingArea
			})
	})
}

func (m *Machine) tickCharging() *plan {
	if o, ok := m.nextOrder(); ok && m.obs.Battery >= m.cfg.BatteryOk {
		return m.planStartOrder(m.cancelRunningMission(newPlan(m.state, "order while charging")), o)
	}
	if m.mission != nil && m.mission.Status != MissionSucceeded &&
		m.mission.ActiveAction == ActiveActionCharging && m.obs.Battery >= fullBattery {
		return m.settle(m.cancelRunningMission(newPlan(m.state, "battery full")), NoWarehouseOrder)
	}
	return m.pollMission(func() *plan {
		return m.settle(newPlan(m.state, "charging finished"), NoWarehouseOrder)
	})
}

// settle moves a robot without an order to the next order, a charger or rest.
func (m *Machine) settle(p *plan, rest SubState) *plan {
	if o, ok := m.nextOrder(); ok {
		return m.planStartOrder(p, o)
	}
	if m.lowBattery() && len(m.cfg.Chargers) > 0 && m.state != top(Charging) {
		return m.planCharging(p, m.chargerIndex)
	}
	return p.enter(top(rest))
}

func (m *Machine) requestWork(p *plan, onlyNew bool) *plan {
	return p.do(RequestWork{OnlyNewOrder: onlyNew}).
		onCommit(func(m *Machine, _ Result) {
			m.lastWorkRequest = m.now
		})
}

func (m *Machine) planMove(p *plan, target string) *plan {
	return p.enter(top(Moving)).
		do(CreateMission{Mission: MissionMove, Target: target}).
		onCommit(func(m *Machine, _ Result) {
			m.moveTarget = target
			m.atStaging = false
		})
}

// planCharging starts a charge mission at the charger with the given index.
func (m *Machine) planCharging(p *plan, index int) *plan {
	n := len(m.cfg.Chargers)
	if n == 0 {
		return p
	}
	index %= n
	return p.enter(top(Charging)).
		do(CreateMission{Mission: MissionCharge, Target: m.cfg.Chargers[index]}).
		onCommit(func(m *Machine, _ Result) {
			m.chargerIndex = index
			m.atStaging = false
		})
}

// pollMission calls onSuccess when the active mission succeeded and applies
// the failure policy when it failed.
func (m *Machine) pollMission(onSuccess func() *plan) *plan {
	if m.mission == nil {
		return m.missionFailed("mission unknown")
	}
	switch m.mission.Status {
	case MissionSucceeded:
		return onSuccess()
	case MissionFailed, MissionCanceled, MissionDeleted:
		return m.missionFailed("mission " + string(m.mission.Status))
	}
	return nil
}
