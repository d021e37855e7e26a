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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"k8s.io/klog/v2"

	"github.com/ewm-cloud-robotics/robot-controller/internal/statemachine"
)

const progressFile = "progress.json"

type fileStore struct {
	dataDir string
	locks   sync.Map // key: robot, value: *sync.RWMutex
}

// NewFileStore creates a store keeping one directory per robot below dataDir.
func NewFileStore(dataDir string) (Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("dataDir cannot be empty")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	probe := filepath.Join(dataDir, ".probe")
	if err := os.WriteFile(probe, []byte("probe"), 0644); err != nil {
		return nil, fmt.Errorf("data directory %s is not writable: %w", dataDir, err)
	}
	os.Remove(probe)

	klog.InfoS("initialized progress file store", "dataDir", dataDir)
	return &fileStore{dataDir: dataDir}, nil
}

func (s *fileStore) robotLock(robot string) *sync.RWMutex {
	val, _ := s.locks.LoadOrStore(robot, &sync.RWMutex{})
	return val.(*sync.RWMutex)
}

// Save writes the snapshot atomically.
func (s *fileStore) Save(ctx context.Context, robot string, snapshot statemachine.Snapshot) error {
	dir, err := s.robotDir(robot)
	if err != nil {
		return err
	}
	mu := s.robotLock(robot)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create robot directory: %w", err)
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, progressFile), data); err != nil {
		return err
	}
	klog.V(2).InfoS("saved progress", "robot", robot, "state", snapshot.State)
	return nil
}

func (s *fileStore) Load(ctx context.Context, robot string) (statemachine.Snapshot, error) {
	dir, err := s.robotDir(robot)
	if err != nil {
		return statemachine.Snapshot{}, err
	}
	mu := s.robotLock(robot)
	mu.RLock()
	defer mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(dir, progressFile))
	if os.IsNotExist(err) {
		return statemachine.Snapshot{}, fmt.Errorf("robot %s: %w", robot, ErrNotFound)
	}
	if err != nil {
		return statemachine.Snapshot{}, fmt.Errorf("failed to read progress file: %w", err)
	}
	var snapshot statemachine.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return statemachine.Snapshot{}, fmt.Errorf("failed to unmarshal progress file: %w", err)
	}
	return snapshot, nil
}

func (s *fileStore) Delete(ctx context.Context, robot string) error {
	dir, err := s.robotDir(robot)
	if err != nil {
		return err
	}
	mu := s.robotLock(robot)
	mu.Lock()
	defer mu.Unlock()

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete progress of robot %s: %w", robot, err)
	}
	klog.InfoS("deleted progress", "robot", robot)
	return nil
}

// robotDir resolves the directory of robot and rejects names escaping dataDir.
func (s *fileStore) robotDir(robot string) (string, error) {
	if robot == "" {
		return "", fmt.Errorf("robot name cannot be empty")
	}
	base, err := filepath.Abs(s.dataDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	dir := filepath.Join(base, robot)
	rel, err := filepath.Rel(base, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid robot name %q", robot)
	}
	return dir, nil
}

// writeAtomic writes data to a temp file, syncs it and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
