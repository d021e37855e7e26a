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

package ewm

import (
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
	"github.com/ewm-cloud-robotics/robot-controller/internal/watcher"
)

// SweepProcessed selects robot requests the order manager processed at least
// retention ago.
func SweepProcessed(retention time.Duration) watcher.SweepFunc {
	return func(obj *unstructured.Unstructured, now time.Time) bool {
		request, err := v1alpha1.Decode[v1alpha1.RobotRequest](obj)
		if err != nil || request.Status.Status != v1alpha1.RobotRequestStatusProcessed {
			return false
		}
		return now.Sub(obj.GetCreationTimestamp().Time) >= retention
	}
}
