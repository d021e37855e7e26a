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
	"strings"
)

// ProcessKind is the warehouse process region a state belongs to.
type ProcessKind string

const (
	ProcessNone         ProcessKind = ""
	ProcessMoveHU       ProcessKind = "MoveHU"
	ProcessPickPackPass ProcessKind = "PickPackPass"
)

// SubState is a state inside a process region or a top level state.
type SubState string

const (
	NoWarehouseOrder       SubState = "noWarehouseorder"
	StartedWarehouseOrder  SubState = "startedWarehouseorder"
	FinishedWarehouseOrder SubState = "finishedWarehouseorder"
	Moving                 SubState = "moving"
	AtTarget               SubState = "atTarget"
	Idling                 SubState = "idling"
	Charging               SubState = "charging"
	RobotError             SubState = "RobotError"

	FindingTarget           SubState = "findingTarget"
	MovingToSourceBin       SubState = "movingToSourceBin"
	Loading                 SubState = "loading"
	MovingToTargetBin       SubState = "movingToTargetBin"
	Unloading               SubState = "unloading"
	WaitingForErrorRecovery SubState = "waitingForErrorRecovery"
	WaitingAtPick           SubState = "waitingAtPick"
	WaitingAtTarget         SubState = "waitingAtTarget"
)

var (
	topLevel = map[SubState]bool{
		NoWarehouseOrder: true, StartedWarehouseOrder: true, FinishedWarehouseOrder: true,
		Moving: true, AtTarget: true, Idling: true, Charging: true, RobotError: true,
	}
	moveHUStates = map[SubState]bool{
		FindingTarget: true, MovingToSourceBin: true, Loading: true, MovingToTargetBin: true,
		Unloading: true, WaitingForErrorRecovery: true,
	}
	pickPackPassStates = map[SubState]bool{
		FindingTarget: true, Moving: true, WaitingAtPick: true, WaitingAtTarget: true,
	}
)

// State is a machine state. The zero value is not valid, use Initial.
type State struct {
	Process ProcessKind
	Sub     SubState
}

// Initial is the state of a robot without work.
var Initial = State{Sub: NoWarehouseOrder}

func top(sub SubState) State {
	return State{Sub: sub}
}

func moveHU(sub SubState) State {
	return State{Process: ProcessMoveHU, Sub: sub}
}

func pickPackPass(sub SubState) State {
	return State{Process: ProcessPickPackPass, Sub: sub}
}

// String returns the composite name, e.g. "MoveHU_loading" or "noWarehouseorder".
func (s State) String() string {
	if s.Process == ProcessNone {
		return string(s.Sub)
	}
	return string(s.Process) + "_" + string(s.Sub)
}

// InOrder reports whether the state belongs to a warehouse order process.
func (s State) InOrder() bool {
	return s.Process != ProcessNone
}

// ParseState parses the composite name written by State.String.
func ParseState(name string) (State, error) {
	if process, sub, ok := strings.Cut(name, "_"); ok {
		s := State{Process: ProcessKind(process), Sub: SubState(sub)}
		switch s.Process {
		case ProcessMoveHU:
			if moveHUStates[s.Sub] {
				return s, nil
			}
		case ProcessPickPackPass:
			if pickPackPassStates[s.Sub] {
				return s, nil
			}
		}
		return State{}, fmt.Errorf("unknown state %q", name)
	}
	if topLevel[SubState(name)] {
		return top(SubState(name)), nil
	}
	return State{}, fmt.Errorf("unknown state %q", name)
}

// ownsMission reports whether a mission runs while the machine rests in s.
func ownsMission(s State) bool {
	switch s {
	case top(Moving), top(Charging),
		moveHU(MovingToSourceBin), moveHU(Loading), moveHU(MovingToTargetBin), moveHU(Unloading),
		pickPackPass(Moving):
		return true
	}
	return false
}

// errorGroup maps a state to the key its failure counter is kept under.
func errorGroup(s State) State {
	switch s {
	case moveHU(Loading):
		return moveHU(MovingToSourceBin)
	case moveHU(Unloading):
		return moveHU(MovingToTargetBin)
	}
	return s
}
