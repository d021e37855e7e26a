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

// Package metrics defines the metrics sink injected into watchers and runners.
package metrics

// Sink receives the counters emitted by the controller components.
// Implementations must be safe for concurrent use.
type Sink interface {
	// WatchEvent counts an event dispatched by a resource watcher.
	WatchEvent(resource, op string)
	// CallbackFailure counts a callback that returned an error or panicked.
	CallbackFailure(resource, callback string)
	// ReprocessSkipped counts a REPROCESS dispatch skipped on a busy resource.
	ReprocessSkipped(resource string)
	// StateEntered counts state machine state entries per robot.
	StateEntered(robot, state string)
	// MissionCreated counts missions created per robot and mission kind.
	MissionCreated(robot, kind string)
	// Confirmation counts task confirmations sent per robot.
	Confirmation(robot, number, result string)
	// EffectFailed counts failed effects per robot and effect kind.
	EffectFailed(robot, effect string)
}

// Noop discards everything.
type Noop struct{}

var _ Sink = Noop{}

func (Noop) WatchEvent(string, string)           {}
func (Noop) CallbackFailure(string, string)      {}
func (Noop) ReprocessSkipped(string)             {}
func (Noop) StateEntered(string, string)         {}
func (Noop) MissionCreated(string, string)       {}
func (Noop) Confirmation(string, string, string) {}
func (Noop) EffectFailed(string, string)         {}
