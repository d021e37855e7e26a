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

package mission

import (
	"context"
	"fmt"
	"sync"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/klog/v2"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
	"github.com/ewm-cloud-robotics/robot-controller/internal/watcher"
)

// RobotGetter reads a Robot resource.
type RobotGetter interface {
	Get(ctx context.Context, name string) (*unstructured.Unstructured, error)
}

// RobotCache keeps the last seen Robot resources, fed by a watcher callback.
type RobotCache struct {
	client RobotGetter

	mu     sync.RWMutex
	robots map[string]*v1alpha1.Robot
}

func NewRobotCache(client RobotGetter) *RobotCache {
	return &RobotCache{client: client, robots: make(map[string]*v1alpha1.Robot)}
}

// Handle is the watcher callback of the Robot resource.
func (c *RobotCache) Handle(ctx context.Context, ev watcher.Event) error {
	if ev.Op == watcher.Deleted {
		c.mu.Lock()
		delete(c.robots, ev.Name)
		c.mu.Unlock()
		return nil
	}
	robot, err := v1alpha1.Decode[v1alpha1.Robot](ev.Object)
	if err != nil {
		return err
	}
	c.store(robot)
	return nil
}

// Get returns the cached robot, reading it on a cache miss.
func (c *RobotCache) Get(ctx context.Context, name string) (*v1alpha1.Robot, error) {
	c.mu.RLock()
	robot, ok := c.robots[name]
	c.mu.RUnlock()
	if ok {
		return robot, nil
	}
	obj, err := c.client.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read robot %s: %w", name, err)
	}
	if robot, err = v1alpha1.Decode[v1alpha1.Robot](obj); err != nil {
		return nil, err
	}
	klog.V(2).InfoS("robot cache miss", "robot", name, "state", robot.Status.Robot.State)
	c.store(robot)
	return robot, nil
}

func (c *RobotCache) store(robot *v1alpha1.Robot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.robots[robot.Name] = robot
}
