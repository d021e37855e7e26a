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

package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"k8s.io/klog/v2"

	"github.com/ewm-cloud-robotics/robot-controller/internal/runner"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RobotSource reports the runners of the controller.
type RobotSource interface {
	Robots() []runner.Status
	Robot(name string) (runner.Status, bool)
}

// HealthChecker reports a failed watcher loop, nil while healthy.
type HealthChecker func() error

type Handler struct {
	robots RobotSource
	health HealthChecker
}

func NewHandler(robots RobotSource, health HealthChecker) *Handler {
	if robots == nil {
		klog.Warning("RobotSource is nil, handler may not work properly")
	}
	return &Handler{
		robots: robots,
		health: health,
	}
}

func (h *Handler) ListRobots(w http.ResponseWriter, r *http.Request) {
	if h.robots == nil {
		writeError(w, http.StatusInternalServerError, "robot controller not initialized")
		return
	}
	writeJSON(w, http.StatusOK, h.robots.Robots())
}

func (h *Handler) GetRobot(w http.ResponseWriter, r *http.Request) {
	if h.robots == nil {
		writeError(w, http.StatusInternalServerError, "robot controller not initialized")
		return
	}

	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "robot name is required")
		return
	}

	status, ok := h.robots.Robot(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("robot %s not found", name))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(); err != nil {
			klog.V(1).InfoS("health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		klog.ErrorS(err, "failed to encode response")
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, ErrorResponse{
		Code:    http.StatusText(code),
		Message: message,
	})
}
