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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

const (
	ProgressStoreResource = "resource"
	ProgressStoreFile     = "file"
)

type Config struct {
	// Namespace the custom resources live in.
	Namespace string `json:"namespace" validate:"required"`
	// Robot restricts the controller to one robot, empty manages all configured robots.
	Robot      string `json:"robot,omitempty"`
	ListenAddr string `json:"listenAddr" validate:"required"`

	ReadTimeout     metav1.Duration `json:"readTimeout"`
	WriteTimeout    metav1.Duration `json:"writeTimeout"`
	ShutdownTimeout metav1.Duration `json:"shutdownTimeout"`

	TickInterval      metav1.Duration `json:"tickInterval"`
	ReprocessInterval metav1.Duration `json:"reprocessInterval"`
	WatchConcurrency  int             `json:"watchConcurrency" validate:"gte=1"`

	MissionRetention     metav1.Duration `json:"missionRetention"`
	MissionSweepInterval metav1.Duration `json:"missionSweepInterval"`

	ProgressStore string `json:"progressStore" validate:"oneof=resource file"`
	DataDir       string `json:"dataDir"`

	Log LogConfig `json:"log"`
}

type LogConfig struct {
	// File enables a rotated log file next to stderr.
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"maxSizeMB" validate:"gte=0"`
	MaxBackups int    `json:"maxBackups" validate:"gte=0"`
	MaxAgeDays int    `json:"maxAgeDays" validate:"gte=0"`
	Verbosity  int    `json:"verbosity" validate:"gte=0"`
}

func NewConfig() *Config {
	return &Config{
		Namespace:            "default",
		ListenAddr:           "0.0.0.0:8080",
		ReadTimeout:          metav1.Duration{Duration: 30 * time.Second},
		WriteTimeout:         metav1.Duration{Duration: 30 * time.Second},
		ShutdownTimeout:      metav1.Duration{Duration: 30 * time.Second},
		TickInterval:         metav1.Duration{Duration: time.Second},
		ReprocessInterval:    metav1.Duration{Duration: 10 * time.Second},
		WatchConcurrency:     5,
		MissionRetention:     metav1.Duration{Duration: time.Hour},
		MissionSweepInterval: metav1.Duration{Duration: 5 * time.Minute},
		ProgressStore:        ProgressStoreResource,
		DataDir:              "/var/lib/robot-controller",
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// LoadFromFile overlays the YAML file at path. Fields missing from the file keep their value.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("NAMESPACE"); v != "" {
		c.Namespace = v
	}
	if v := os.Getenv("ROBOT_NAME"); v != "" {
		c.Robot = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("PROGRESS_STORE"); v != "" {
		c.ProgressStore = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TICK_INTERVAL: %w", err)
		}
		c.TickInterval.Duration = d
	}
	if v := os.Getenv("WATCH_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid WATCH_CONCURRENCY: %w", err)
		}
		c.WatchConcurrency = n
	}
	return nil
}

// BindFlags registers a flag per setting, defaulting to the current values.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Namespace, "namespace", c.Namespace, "namespace of the custom resources")
	fs.StringVar(&c.Robot, "robot", c.Robot, "manage only this robot")
	fs.StringVar(&c.ListenAddr, "listen-addr", c.ListenAddr, "status server listen address")
	fs.DurationVar(&c.ReadTimeout.Duration, "read-timeout", c.ReadTimeout.Duration, "status server read timeout")
	fs.DurationVar(&c.WriteTimeout.Duration, "write-timeout", c.WriteTimeout.Duration, "status server write timeout")
	fs.DurationVar(&c.ShutdownTimeout.Duration, "shutdown-timeout", c.ShutdownTimeout.Duration, "graceful shutdown timeout")
	fs.DurationVar(&c.TickInterval.Duration, "tick-interval", c.TickInterval.Duration, "state machine tick interval")
	fs.DurationVar(&c.ReprocessInterval.Duration, "reprocess-interval", c.ReprocessInterval.Duration, "interval of the periodic reprocessing of all resources")
	fs.IntVar(&c.WatchConcurrency, "watch-concurrency", c.WatchConcurrency, "callback workers per watcher")
	fs.DurationVar(&c.MissionRetention.Duration, "mission-retention", c.MissionRetention.Duration, "age after which finished missions are deleted")
	fs.DurationVar(&c.MissionSweepInterval.Duration, "mission-sweep-interval", c.MissionSweepInterval.Duration, "interval of the finished mission sweep")
	fs.StringVar(&c.ProgressStore, "progress-store", c.ProgressStore, "where robot progress is persisted: resource or file")
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "progress directory of the file store")
	fs.StringVar(&c.Log.File, "log-file", c.Log.File, "rotated log file, empty logs to stderr only")
	fs.IntVar(&c.Log.MaxSizeMB, "log-max-size", c.Log.MaxSizeMB, "log file size in megabytes before rotation")
	fs.IntVar(&c.Log.MaxBackups, "log-max-backups", c.Log.MaxBackups, "rotated log files to keep")
	fs.IntVar(&c.Log.MaxAgeDays, "log-max-age", c.Log.MaxAgeDays, "days to keep rotated log files")
	fs.IntVarP(&c.Log.Verbosity, "verbosity", "v", c.Log.Verbosity, "log verbosity")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	durations := map[string]time.Duration{
		"tickInterval":         c.TickInterval.Duration,
		"reprocessInterval":    c.ReprocessInterval.Duration,
		"missionRetention":     c.MissionRetention.Duration,
		"missionSweepInterval": c.MissionSweepInterval.Duration,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("invalid config: %s must be positive", name)
		}
	}
	if c.ProgressStore == ProgressStoreFile && c.DataDir == "" {
		return fmt.Errorf("invalid config: dataDir is required for the file progress store")
	}
	return nil
}
