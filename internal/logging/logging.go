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

// Package logging installs a zap backed logger into klog.
package logging

import (
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"k8s.io/klog/v2"

	"github.com/ewm-cloud-robotics/robot-controller/internal/config"
)

// New builds a JSON logger writing to stderr and, when configured, to a
// rotated file. klog verbosity n maps to zap level -n.
func New(cfg config.LogConfig) (logr.Logger, func(), error) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.LogConfig, stderr io.Writer) (logr.Logger, func(), error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)
	level := zap.NewAtomicLevelAt(zapcore.Level(-cfg.Verbosity))

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.AddSync(stderr), level)}
	var rotator *lumberjack.Logger
	if cfg.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	zl := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	cleanup := func() {
		_ = zl.Sync()
		if rotator != nil {
			_ = rotator.Close()
		}
	}
	return zapr.NewLogger(zl), cleanup, nil
}

// Setup installs the logger as klog's backend. The returned function flushes it.
func Setup(cfg config.LogConfig) (func(), error) {
	logger, cleanup, err := New(cfg)
	if err != nil {
		return nil, err
	}
	klog.SetLogger(logger)
	return func() {
		klog.Flush()
		cleanup()
	}, nil
}
