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

package progress

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
	"github.com/ewm-cloud-robotics/robot-controller/internal/statemachine"
)

// StatusClient reads and patches RobotConfiguration resources.
type StatusClient interface {
	Get(ctx context.Context, name string) (*unstructured.Unstructured, error)
	UpdateStatus(ctx context.Context, name string, status map[string]interface{}) (*unstructured.Unstructured, error)
}

type resourceStore struct {
	client StatusClient
}

// NewResourceStore keeps progress in the status of the robot's RobotConfiguration.
func NewResourceStore(client StatusClient) Store {
	return &resourceStore{client: client}
}

func (s *resourceStore) Save(ctx context.Context, robot string, snapshot statemachine.Snapshot) error {
	if _, err := s.client.UpdateStatus(ctx, robot, statusPatch(snapshot)); err != nil {
		return fmt.Errorf("failed to save progress of robot %s: %w", robot, err)
	}
	return nil
}

func (s *resourceStore) Load(ctx context.Context, robot string) (statemachine.Snapshot, error) {
	obj, err := s.client.Get(ctx, robot)
	if apierrors.IsNotFound(err) {
		return statemachine.Snapshot{}, fmt.Errorf("robot %s: %w", robot, ErrNotFound)
	}
	if err != nil {
		return statemachine.Snapshot{}, fmt.Errorf("failed to load progress of robot %s: %w", robot, err)
	}
	cfg, err := v1alpha1.Decode[v1alpha1.RobotConfiguration](obj)
	if err != nil {
		return statemachine.Snapshot{}, err
	}
	status := cfg.Status
	if status.Statemachine == "" {
		return statemachine.Snapshot{}, fmt.Errorf("robot %s: %w", robot, ErrNotFound)
	}
	return statemachine.Snapshot{
		State:        status.Statemachine,
		Lgnum:        status.Lgnum,
		Who:          status.Who,
		SubWho:       status.Subwho,
		Tanum:        status.Tanum,
		Mission:      status.Mission,
		MissionKind:  statemachine.MissionKind(status.MissionKind),
		ChargerIndex: status.ChargerIndex,
		ErrorPrior:   status.ErrorPrior,
	}, nil
}

// Delete clears the persisted progress. A missing resource is not an error.
func (s *resourceStore) Delete(ctx context.Context, robot string) error {
	_, err := s.client.UpdateStatus(ctx, robot, statusPatch(statemachine.Snapshot{}))
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to clear progress of robot %s: %w", robot, err)
	}
	return nil
}

// statusPatch writes every field so finished orders are cleared.
func statusPatch(s statemachine.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"statemachine": s.State,
		"lgnum":        s.Lgnum,
		"who":          s.Who,
		"subwho":       s.SubWho,
		"tanum":        s.Tanum,
		"mission":      s.Mission,
		"missionKind":  string(s.MissionKind),
		"chargerIndex": int64(s.ChargerIndex),
		"errorPrior":   s.ErrorPrior,
	}
}
