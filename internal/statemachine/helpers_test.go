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
	"fmt"
	"time"
)

var t0 = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		Chargers:              []string{"charger-1", "charger-2"},
		BatteryMin:            20,
		BatteryOk:             60,
		BatteryIdle:           40,
		StagingArea:           "STAGING",
		RecoverFromRobotError: true,
	}
}

// driver plays the runner: it executes steps successfully and records effects.
type driver struct {
	m        *Machine
	now      time.Time
	battery  float64
	robotOK  bool
	trolley  TrolleyState
	effects  []Effect
	steps    []*Step
	missions int
}

func newDriver(cfg Config) *driver {
	return &driver{m: New("robot1", cfg), now: t0, battery: 80, robotOK: true}
}

// run completes step and every continuation it produces.
func (d *driver) run(step *Step) {
	for step != nil {
		d.steps = append(d.steps, step)
		d.effects = append(d.effects, step.Effects...)
		var res Result
		for _, e := range step.Effects {
			if cm, ok := e.(CreateMission); ok {
				d.missions++
				res.Mission = &Mission{
					Name:   fmt.Sprintf("mission-%d", d.missions),
					Kind:   cm.Mission,
					Status: MissionAccepted,
					Target: cm.Target,
				}
			}
		}
		step = d.m.Complete(res, nil)
	}
}

func (d *driver) observe(status MissionStatus) Observation {
	obs := Observation{RobotOK: d.robotOK, Battery: d.battery, Trolley: d.trolley, Now: d.now}
	if mission := d.m.ActiveMission(); mission != nil {
		mission.Status = status
		obs.Mission = mission
	}
	return obs
}

func (d *driver) tick(status MissionStatus) {
	d.run(d.m.Tick(d.observe(status)))
}

func (d *driver) order(o Order) {
	d.run(d.m.OrderChanged(o))
}

func (d *driver) confirmations() []string {
	var out []string
	for _, e := range d.effects {
		switch c := e.(type) {
		case ConfirmTask:
			out = append(out, c.Task.Tanum+"/"+string(c.Number))
		case SendTaskError:
			out = append(out, c.Task.Tanum+"/ERROR")
		}
	}
	return out
}

func (d *driver) effectsOf(kind EffectKind) []Effect {
	var out []Effect
	for _, e := range d.effects {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

func (d *driver) lastStep() *Step {
	if len(d.steps) == 0 {
		return nil
	}
	return d.steps[len(d.steps)-1]
}

func moveOrder(who string, tasks ...Task) Order {
	for i := range tasks {
		tasks[i].Lgnum, tasks[i].Who = "WH1", who
	}
	return Order{Lgnum: "WH1", Who: who, Rsrc: "ROBOT1", Tasks: tasks}
}

func pickOrder(who string, tasks ...Task) Order {
	o := moveOrder(who, tasks...)
	o.Composite = true
	return o
}
