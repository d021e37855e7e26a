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
	"strings"

	"k8s.io/klog/v2"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
)

// OrderChanged feeds an added or modified warehouse order.
func (m *Machine) OrderChanged(o Order) *Step {
	key := o.Key()
	if o.Rsrc != "" && !strings.EqualFold(o.Rsrc, m.robot) {
		klog.V(2).InfoS("ignoring order of another robot", "robot", m.robot, "order", key.String(), "rsrc", o.Rsrc)
		return m.dropOrder(o)
	}
	if o.IsSubOrder() {
		return m.subOrderChanged(o)
	}
	if o.Processed {
		return m.orderFinishedExternally(key)
	}
	if m.done.Has(key) {
		return nil
	}
	if !m.orders.upsert(o) {
		return nil
	}

	if m.isActive(key) {
		if m.restoring {
			klog.InfoS("order data restored", "robot", m.robot, "order", key.String())
			m.restoring = false
		}
		if m.pending != nil {
			return nil
		}
		return m.propose(m.activeOrderUpdated())
	}
	if m.activeOrder != nil || m.pending != nil {
		return nil
	}

	switch m.state {
	case top(NoWarehouseOrder), top(Idling), top(AtTarget):
		return m.propose(m.planStartOrder(newPlan(m.state, "new order"), o))
	case top(Moving):
		return m.propose(m.planStartOrder(m.cancelRunningMission(newPlan(m.state, "new order while moving")), o))
	case top(Charging):
		if m.obs.Battery >= m.cfg.BatteryOk {
			return m.propose(m.planStartOrder(m.cancelRunningMission(newPlan(m.state, "new order while charging")), o))
		}
	}
	return nil
}

// OrderRemoved feeds the deletion of a warehouse order.
func (m *Machine) OrderRemoved(key OrderKey) *Step {
	m.done.Delete(key)
	if _, ok := m.subOrders.get(key); ok {
		m.subOrders.remove(key)
		if m.pending != nil {
			return nil
		}
		return m.propose(m.activeOrderUpdated())
	}
	m.orders.remove(key)
	if !m.isActive(key) || m.pending != nil {
		return nil
	}
	return m.propose(m.orderGone("order deleted", false))
}

// OrderConfirmed feeds the order manager's confirmation that an order is complete.
func (m *Machine) OrderConfirmed(key OrderKey) *Step {
	if m.pending != nil || !m.isActive(key) || m.state != moveHU(WaitingForErrorRecovery) {
		return nil
	}
	return m.propose(m.planFinish(newPlan(m.state, "order confirmed"), key, true))
}

func (m *Machine) dropOrder(o Order) *Step {
	key := o.Key()
	if o.IsSubOrder() {
		if m.subOrders.remove(key) && m.pending == nil {
			return m.propose(m.activeOrderUpdated())
		}
		return nil
	}
	m.orders.remove(key)
	if m.isActive(key) && m.pending == nil {
		return m.propose(m.orderGone("order reassigned", true))
	}
	return nil
}

func (m *Machine) orderFinishedExternally(key OrderKey) *Step {
	m.orders.remove(key)
	m.done.Insert(key)
	if !m.isActive(key) || m.pending != nil {
		return nil
	}
	return m.propose(m.orderGone("order processed", true))
}

func (m *Machine) subOrderChanged(o Order) *Step {
	key := o.Key()
	if o.Processed {
		if !m.subOrders.remove(key) {
			return nil
		}
	} else if !m.subOrders.upsert(o) {
		return nil
	}
	if m.activeOrder == nil || o.Topwhoid != m.activeOrder.Who || o.Lgnum != m.activeOrder.Lgnum || m.pending != nil {
		return nil
	}
	return m.propose(m.activeOrderUpdated())
}

// activeOrderUpdated re-evaluates states that wait on order data.
func (m *Machine) activeOrderUpdated() *plan {
	switch m.state {
	case moveHU(FindingTarget), pickPackPass(FindingTarget):
		return m.findTarget("order updated")
	case pickPackPass(WaitingAtPick), pickPackPass(WaitingAtTarget):
		return m.checkWaiting()
	}
	return nil
}

// orderGone ends the active order after it disappeared or was finished by
// the order manager. remember keeps ignoring later updates of the order.
func (m *Machine) orderGone(reason string, remember bool) *plan {
	p := newPlan(m.state, reason)
	switch {
	case m.state.Sub == RobotError:
		return p.onCommit(func(m *Machine, _ Result) {
			m.clearActiveOrder(remember)
			m.errorPrior = Initial
			m.failedStep = nil
		})
	case m.state == moveHU(WaitingForErrorRecovery):
		return m.planFinish(p, *m.activeOrder, remember)
	}
	if m.mission != nil && !m.missionTerminal() {
		p.do(CancelMission{Name: m.mission.Name, Mission: m.mission.Kind})
	} else if m.mission == nil && ownsMission(m.state) {
		klog.InfoS("cannot cancel mission, name unknown", "robot", m.robot, "state", m.state.String())
	}
	return m.planFinish(p, *m.activeOrder, remember)
}

// planStartOrder routes a new order into its process and finds the first target.
func (m *Machine) planStartOrder(p *plan, o Order) *plan {
	key := o.Key()
	process := ProcessMoveHU
	if o.Composite {
		process = ProcessPickPackPass
	}
	p.enter(top(StartedWarehouseOrder)).
		enter(State{Process: process, Sub: FindingTarget}).
		onCommit(func(m *Machine, _ Result) {
			m.activeOrder = &key
			m.activeSubOrder = nil
			m.activeTask = ""
			m.atStaging = false
			m.restoring = false
			m.errorCounts = make(map[State]int)
		})
	if process == ProcessPickPackPass {
		return m.planPickPackPassTarget(p, o)
	}
	return m.planMoveHUTarget(p, o)
}

// planFinish passes through finishedWarehouseorder and settles the robot.
func (m *Machine) planFinish(p *plan, key OrderKey, remember bool) *plan {
	p.finishing = append(p.finishing, key)
	p.enter(top(FinishedWarehouseOrder)).
		onCommit(func(m *Machine, _ Result) {
			m.clearActiveOrder(remember)
		})
	if o, ok := m.nextOrder(p.finishing...); ok {
		return m.planStartOrder(p, o)
	}
	if m.lowBattery() && len(m.cfg.Chargers) > 0 {
		return m.planCharging(p, m.chargerIndex)
	}
	return p.enter(top(Idling)).
		do(RequestWork{OnlyNewOrder: true}).
		onCommit(func(m *Machine, _ Result) {
			m.lastWorkRequest = m.now
		})
}

func (m *Machine) clearActiveOrder(remember bool) {
	if m.activeOrder == nil {
		return
	}
	key := *m.activeOrder
	m.orders.remove(key)
	if remember {
		m.done.Insert(key)
	}
	var subs []OrderKey
	m.subOrders.each(func(o Order) {
		if o.Lgnum == key.Lgnum && o.Topwhoid == key.Who {
			subs = append(subs, o.Key())
		}
	})
	for _, sub := range subs {
		m.subOrders.remove(sub)
	}
	m.activeOrder = nil
	m.activeSubOrder = nil
	m.activeTask = ""
	m.restoring = false
	m.firstConfirmed = m.firstConfirmed.Clear()
	m.secondConfirmed = m.secondConfirmed.Clear()
}

func (m *Machine) isActive(key OrderKey) bool {
	return m.activeOrder != nil && *m.activeOrder == key
}

// nextOrder returns the earliest arrived order other than the active and the excluded ones.
func (m *Machine) nextOrder(exclude ...OrderKey) (Order, bool) {
	return m.orders.first(func(o Order) bool {
		key := o.Key()
		if m.isActive(key) || m.done.Has(key) {
			return false
		}
		for _, ex := range exclude {
			if ex == key {
				return false
			}
		}
		return true
	})
}

func (m *Machine) activeOrderData() (Order, bool) {
	if m.activeOrder == nil {
		return Order{}, false
	}
	return m.orders.get(*m.activeOrder)
}

// activeTaskData returns the active task and the order holding it.
func (m *Machine) activeTaskData() (Task, Order, bool) {
	order, ok := m.activeOrderData()
	if !ok || m.activeTask == "" {
		return Task{}, Order{}, false
	}
	if m.activeSubOrder != nil && *m.activeSubOrder != *m.activeOrder {
		if order, ok = m.subOrders.get(*m.activeSubOrder); !ok {
			return Task{}, Order{}, false
		}
	}
	task, ok := order.task(m.activeTask)
	return task, order, ok
}

// activeTaskOrStub returns the active task, or a task carrying only its keys
// when the order no longer lists it.
func (m *Machine) activeTaskOrStub() Task {
	if task, _, ok := m.activeTaskData(); ok {
		return task
	}
	stub := Task{Tanum: m.activeTask}
	if m.activeOrder != nil {
		stub.Lgnum, stub.Who = m.activeOrder.Lgnum, m.activeOrder.Who
	}
	if m.activeSubOrder != nil {
		stub.Who = m.activeSubOrder.Who
	}
	return stub
}

func (m *Machine) isFirstConfirmed(t Task, o Order) bool {
	return m.firstConfirmed.Has(t.key()) || o.confirmed(t.Tanum, v1alpha1.ConfirmationFirst)
}

func (m *Machine) isSecondConfirmed(t Task, o Order) bool {
	return m.secondConfirmed.Has(t.key()) || o.confirmed(t.Tanum, v1alpha1.ConfirmationSecond)
}

// unconfirmedAtPick reports whether the source leg of t is still open.
func (m *Machine) unconfirmedAtPick(t Task, o Order) bool {
	return t.HasSource() && !m.isFirstConfirmed(t, o)
}

func setActiveTask(t Task, sub *OrderKey) func(m *Machine, _ Result) {
	return func(m *Machine, _ Result) {
		m.activeTask = t.Tanum
		m.activeSubOrder = sub
	}
}

func markFirst(t Task) func(m *Machine, _ Result) {
	return func(m *Machine, _ Result) {
		m.firstConfirmed.Insert(t.key())
	}
}

func markSecond(t Task) func(m *Machine, _ Result) {
	return func(m *Machine, _ Result) {
		m.secondConfirmed.Insert(t.key())
	}
}
