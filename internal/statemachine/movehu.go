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

// findTarget evaluates findingTarget of the active order's process.
func (m *Machine) findTarget(reason string) *plan {
	return m.findTargetIn(newPlan(m.state, reason))
}

func (m *Machine) findTargetIn(p *plan) *plan {
	o, ok := m.activeOrderData()
	if !ok {
		return p
	}
	if o.Composite {
		return m.planPickPackPassTarget(p, o)
	}
	return m.planMoveHUTarget(p, o)
}

// planMoveHUTarget continues from MoveHU_findingTarget with the next task of o.
func (m *Machine) planMoveHUTarget(p *plan, o Order) *plan {
	task, ok := m.nextMoveHUTask(o)
	if !ok {
		return m.planFinish(p, o.Key(), true)
	}
	set := setActiveTask(task, nil)
	switch {
	case m.unconfirmedAtPick(task, o):
		return p.enter(moveHU(MovingToSourceBin)).
			do(CreateMission{Mission: MissionMove, Target: task.SourceBin, Task: &task}).
			onCommit(set)
	case task.HasTarget():
		return p.enter(moveHU(MovingToTargetBin)).
			do(CreateMission{Mission: MissionMove, Target: task.TargetBin, Task: &task}).
			onCommit(set)
	}
	// loaded, the target leg is not published yet
	return p.onCommit(set)
}

// nextMoveHUTask returns the active task while it is open, else the first open task.
func (m *Machine) nextMoveHUTask(o Order) (Task, bool) {
	var first *Task
	for i := range o.Tasks {
		t := o.Tasks[i]
		if m.isSecondConfirmed(t, o) || (!t.HasSource() && !t.HasTarget()) {
			continue
		}
		if t.Tanum == m.activeTask {
			return t, true
		}
		if first == nil {
			first = &t
		}
	}
	if first == nil {
		return Task{}, false
	}
	return *first, true
}

func (m *Machine) tickMoveHU() *plan {
	switch m.state.Sub {
	case FindingTarget:
		return m.findTarget("looking for target")
	case MovingToSourceBin:
		return m.pollMission(func() *plan {
			task, _, ok := m.activeTaskData()
			if !ok || !task.HasSource() {
				return m.findTargetIn(newPlan(m.state, "task changed").enter(moveHU(FindingTarget)))
			}
			kind, dock := MissionLoad, task.SourceBin
			if task.SourceHU != "" {
				kind, dock = MissionDock, task.SourceHU
			}
			return newPlan(m.state, "reached source bin").
				enter(moveHU(Loading)).
				do(CreateMission{Mission: kind, Target: dock, Task: &task})
		})
	case Loading:
		return m.pollMission(func() *plan {
			if m.obs.Trolley == TrolleyDetached {
				return m.missionFailed("trolley not attached after loading")
			}
			task := m.activeTaskOrStub()
			return newPlan(m.state, "loaded").
				do(ConfirmTask{Task: task, Number: v1alpha1.ConfirmationFirst}).
				enter(moveHU(FindingTarget)).
				onCommit(markFirst(task)).
				then(func(m *Machine) *plan { return m.findTarget("loaded") })
		})
	case MovingToTargetBin:
		return m.pollMission(func() *plan {
			task, _, ok := m.activeTaskData()
			if !ok || !task.HasTarget() {
				return m.findTargetIn(newPlan(m.state, "task changed").enter(moveHU(FindingTarget)))
			}
			return newPlan(m.state, "reached target bin").
				enter(moveHU(Unloading)).
				do(CreateMission{Mission: MissionUnload, Target: task.TargetBin, Task: &task})
		})
	case Unloading:
		return m.pollMission(func() *plan {
			if m.obs.Trolley == TrolleyAttached {
				return m.missionFailed("trolley still attached after unloading")
			}
			task := m.activeTaskOrStub()
			return newPlan(m.state, "unloaded").
				do(ConfirmTask{Task: task, Number: v1alpha1.ConfirmationSecond}).
				enter(moveHU(FindingTarget)).
				onCommit(markSecond(task)).
				then(func(m *Machine) *plan { return m.findTarget("unloaded") })
		})
	}
	return nil
}
