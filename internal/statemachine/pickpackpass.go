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
	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
)

// planPickPackPassTarget continues from PickPackPass_findingTarget. Tasks of
// the sub orders come first in arrival order, then the composite's own tasks.
func (m *Machine) planPickPackPassTarget(p *plan, top Order) *plan {
	task, holder, ok := m.nextPickPackPassTask(top)
	if !ok {
		return p.onCommit(func(m *Machine, _ Result) {
			m.activeTask = ""
			m.activeSubOrder = nil
		})
	}
	sub := holder.Key()
	set := setActiveTask(task, &sub)
	switch {
	case m.unconfirmedAtPick(task, holder):
		return p.enter(pickPackPass(Moving)).
			do(CreateMission{Mission: MissionMove, Target: task.SourceBin, Task: &task}).
			onCommit(set).
			onCommit(setPickLeg(true))
	case task.HasTarget():
		if !m.isFirstConfirmed(task, holder) {
			p.do(ConfirmTask{Task: task, Number: v1alpha1.ConfirmationFirst, EnforceFirst: true}).
				onCommit(markFirst(task))
		}
		return p.enter(pickPackPass(Moving)).
			do(CreateMission{Mission: MissionMove, Target: task.TargetBin, Task: &task}).
			onCommit(set).
			onCommit(setPickLeg(false))
	}
	return p.onCommit(set)
}

func (m *Machine) nextPickPackPassTask(top Order) (Task, Order, bool) {
	var holders []Order
	m.subOrders.each(func(o Order) {
		if o.Lgnum == top.Lgnum && o.Topwhoid == top.Who {
			holders = append(holders, o)
		}
	})
	holders = append(holders, top)

	var (
		first       Task
		firstHolder Order
		found       bool
	)
	for _, o := range holders {
		for _, t := range o.Tasks {
			if m.isSecondConfirmed(t, o) || (!t.HasSource() && !t.HasTarget()) {
				continue
			}
			if t.Tanum == m.activeTask {
				return t, o, true
			}
			if !found {
				first, firstHolder, found = t, o, true
			}
		}
	}
	return first, firstHolder, found
}

func (m *Machine) tickPickPackPass() *plan {
	switch m.state.Sub {
	case FindingTarget:
		return m.findTarget("looking for target")
	case Moving:
		return m.pollMission(func() *plan {
			atPick := m.pickLeg
			if m.pickLegUnknown {
				task, order, ok := m.activeTaskData()
				atPick = ok && m.unconfirmedAtPick(task, order)
			}
			next := pickPackPass(WaitingAtTarget)
			if atPick {
				next = pickPackPass(WaitingAtPick)
			}
			return newPlan(m.state, "reached "+string(next.Sub)).enter(next)
		})
	case WaitingAtPick, WaitingAtTarget:
		return m.checkWaiting()
	}
	return nil
}

// checkWaiting advances once the leg the robot waits at was confirmed externally.
func (m *Machine) checkWaiting() *plan {
	task, order, ok := m.activeTaskData()
	stub := m.activeTaskOrStub()
	switch m.state.Sub {
	case WaitingAtPick:
		if ok && task.HasSource() && !m.isFirstConfirmed(task, order) {
			return nil
		}
		return newPlan(m.state, "picked").
			enter(pickPackPass(FindingTarget)).
			onCommit(markFirst(stub)).
			then(func(m *Machine) *plan { return m.findTarget("picked") })
	case WaitingAtTarget:
		if ok && task.HasTarget() && !m.isSecondConfirmed(task, order) {
			return nil
		}
		return newPlan(m.state, "dropped").
			enter(pickPackPass(FindingTarget)).
			onCommit(markSecond(stub)).
			then(func(m *Machine) *plan { return m.findTarget("dropped") })
	}
	return nil
}

func setPickLeg(atPick bool) func(m *Machine, _ Result) {
	return func(m *Machine, _ Result) {
		m.pickLeg = atPick
		m.pickLegUnknown = false
	}
}
