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

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
)

// EffectKind names an effect for logging and metrics.
type EffectKind string

const (
	EffectCreateMission         EffectKind = "CreateMission"
	EffectCancelMission         EffectKind = "CancelMission"
	EffectConfirmTask           EffectKind = "ConfirmTask"
	EffectSendTaskError         EffectKind = "SendTaskError"
	EffectRequestWork           EffectKind = "RequestWork"
	EffectNotifyOrderCompletion EffectKind = "NotifyOrderCompletion"
)

// Effect is a side effect the runner executes on behalf of the machine.
type Effect interface {
	Kind() EffectKind
}

// CreateMission starts a mission. Target is a named position for Move, a
// charger for Charge and a dock for Dock, Load and Unload.
type CreateMission struct {
	Mission MissionKind
	Target  string
	Task    *Task
}

// CancelMission cancels a running mission.
type CancelMission struct {
	Name    string
	Mission MissionKind
}

// ConfirmTask sends a successful task confirmation.
type ConfirmTask struct {
	Task         Task
	Number       v1alpha1.ConfirmationNumber
	EnforceFirst bool
}

// SendTaskError reports a task that cannot be completed.
type SendTaskError struct {
	Task Task
}

// RequestWork asks the order manager for work.
type RequestWork struct {
	OnlyNewOrder bool
}

// NotifyOrderCompletion asks the order manager to confirm an order is done.
type NotifyOrderCompletion struct {
	Order OrderKey
}

func (CreateMission) Kind() EffectKind         { return EffectCreateMission }
func (CancelMission) Kind() EffectKind         { return EffectCancelMission }
func (ConfirmTask) Kind() EffectKind           { return EffectConfirmTask }
func (SendTaskError) Kind() EffectKind         { return EffectSendTaskError }
func (RequestWork) Kind() EffectKind           { return EffectRequestWork }
func (NotifyOrderCompletion) Kind() EffectKind { return EffectNotifyOrderCompletion }

// Result carries what the runner learned while executing a step.
type Result struct {
	// Mission is set when the step created a mission.
	Mission *Mission
}

// Step is a transition proposed by the machine. Its effects run in order,
// the first failure aborts the rest. The machine enters To only once the
// runner completed the step successfully.
type Step struct {
	From    State
	To      State
	Path    []State
	Effects []Effect
	Reason  string

	commits []func(m *Machine, res Result)
	then    func(m *Machine) *plan
}

func (s *Step) String() string {
	names := make([]string, 0, len(s.Path))
	for _, p := range s.Path {
		names = append(names, p.String())
	}
	return fmt.Sprintf("%s -> [%s] (%s)", s.From, strings.Join(names, " -> "), s.Reason)
}

// clone returns a copy that can be proposed again.
func (s *Step) clone(from State) *Step {
	out := *s
	out.From = from
	out.Path = append([]State(nil), s.Path...)
	out.Effects = append([]Effect(nil), s.Effects...)
	return &out
}

// plan accumulates a step.
type plan struct {
	step *Step
	// finishing lists orders finished earlier in the same plan.
	finishing []OrderKey
}

func newPlan(from State, reason string) *plan {
	return &plan{step: &Step{From: from, To: from, Reason: reason}}
}

func (p *plan) enter(s State) *plan {
	p.step.Path = append(p.step.Path, s)
	p.step.To = s
	return p
}

func (p *plan) do(effects ...Effect) *plan {
	p.step.Effects = append(p.step.Effects, effects...)
	return p
}

func (p *plan) onCommit(fn func(m *Machine, res Result)) *plan {
	p.step.commits = append(p.step.commits, fn)
	return p
}

func (p *plan) then(fn func(m *Machine) *plan) *plan {
	p.step.then = fn
	return p
}

func (p *plan) done() *Step {
	return p.step
}
