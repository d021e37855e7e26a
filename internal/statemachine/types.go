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
	"time"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
)

// OrderKey identifies a warehouse order.
type OrderKey struct {
	Lgnum string `json:"lgnum"`
	Who   string `json:"who"`
}

func (k OrderKey) String() string {
	return k.Lgnum + "." + k.Who
}

// Task is a warehouse task. Only the legs still pending are set: a task with
// only a source is unconfirmed at pick, one with only a target is unconfirmed at drop.
type Task struct {
	Lgnum     string
	Tanum     string
	Who       string
	SourceBin string
	SourceHU  string
	TargetBin string
	TargetHU  string
}

func (t Task) HasSource() bool {
	return t.SourceBin != ""
}

func (t Task) HasTarget() bool {
	return t.TargetBin != ""
}

func (t Task) key() taskKey {
	return taskKey{Lgnum: t.Lgnum, Tanum: t.Tanum}
}

type taskKey struct {
	Lgnum string
	Tanum string
}

// Confirmation is a task confirmation already recorded on the order.
type Confirmation struct {
	Tanum  string
	Number v1alpha1.ConfirmationNumber
	Type   v1alpha1.ConfirmationType
}

// Order is a warehouse order as seen by one robot.
type Order struct {
	Lgnum    string
	Who      string
	Rsrc     string
	Topwhoid string
	// Composite orders run the pick, pack and pass process.
	Composite     bool
	Tasks         []Task
	Confirmations []Confirmation
	// Processed is set once the order manager finished the order.
	Processed bool
}

func (o Order) Key() OrderKey {
	return OrderKey{Lgnum: o.Lgnum, Who: o.Who}
}

// IsSubOrder reports whether o belongs to a composite order.
func (o Order) IsSubOrder() bool {
	return o.Topwhoid != "" && o.Topwhoid != o.Who
}

func (o Order) confirmed(tanum string, number v1alpha1.ConfirmationNumber) bool {
	for _, c := range o.Confirmations {
		if c.Tanum == tanum && c.Number == number && c.Type == v1alpha1.ConfirmationSuccess {
			return true
		}
	}
	return false
}

func (o Order) task(tanum string) (Task, bool) {
	for _, t := range o.Tasks {
		if t.Tanum == tanum {
			return t, true
		}
	}
	return Task{}, false
}

// MissionKind is the type of robot mission.
type MissionKind string

const (
	MissionMove   MissionKind = "Move"
	MissionCharge MissionKind = "Charge"
	MissionDock   MissionKind = "Dock"
	MissionLoad   MissionKind = "Load"
	MissionUnload MissionKind = "Unload"
)

// MissionStatus is the polled status of a mission.
type MissionStatus string

const (
	MissionAccepted  MissionStatus = "ACCEPTED"
	MissionRunning   MissionStatus = "RUNNING"
	MissionSucceeded MissionStatus = "SUCCEEDED"
	MissionFailed    MissionStatus = "FAILED"
	MissionCanceled  MissionStatus = "CANCELED"
	MissionDeleted   MissionStatus = "DELETED"
	MissionUnknown   MissionStatus = "UNKNOWN"
)

// ActiveActionCharging is reported while the robot is docked at a charger.
const ActiveActionCharging = "CHARGING"

// Mission is a robot mission owned by the machine.
type Mission struct {
	Name         string
	Kind         MissionKind
	Status       MissionStatus
	ActiveAction string
	Target       string
}

// TrolleyState is the reading of the trolley sensor.
type TrolleyState int

const (
	TrolleyUnknown TrolleyState = iota
	TrolleyAttached
	TrolleyDetached
)

// Observation is what the runner polled before a tick.
type Observation struct {
	// Mission is the refreshed active mission, nil without one.
	Mission *Mission
	RobotOK bool
	Battery float64
	Trolley TrolleyState
	Now     time.Time
}

// Config is the per robot behaviour.
type Config struct {
	Chargers    []string
	BatteryMin  float64
	BatteryOk   float64
	BatteryIdle float64
	// MaxIdleTime without work before moving to the staging area, zero disables it.
	MaxIdleTime           time.Duration
	StagingArea           string
	RecoverFromRobotError bool
}

// Snapshot is the persisted progress of a machine.
type Snapshot struct {
	State        string      `json:"state"`
	Lgnum        string      `json:"lgnum,omitempty"`
	Who          string      `json:"who,omitempty"`
	SubWho       string      `json:"subwho,omitempty"`
	Tanum        string      `json:"tanum,omitempty"`
	Mission      string      `json:"mission,omitempty"`
	MissionKind  MissionKind `json:"missionKind,omitempty"`
	ChargerIndex int         `json:"chargerIndex,omitempty"`
	// ErrorPrior is the state a robot error interrupted, set only in RobotError.
	ErrorPrior string `json:"errorPrior,omitempty"`
}
