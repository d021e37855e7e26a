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

// Package progress persists state machine snapshots so robots resume after a restart.
package progress

import (
	"context"
	"errors"

	"github.com/ewm-cloud-robotics/robot-controller/internal/statemachine"
)

// ErrNotFound is returned by Load when no progress was saved for a robot.
var ErrNotFound = errors.New("progress not found")

// Store saves and loads the snapshot of each robot.
type Store interface {
	Save(ctx context.Context, robot string, snapshot statemachine.Snapshot) error
	Load(ctx context.Context, robot string) (statemachine.Snapshot, error)
	Delete(ctx context.Context, robot string) error
}
