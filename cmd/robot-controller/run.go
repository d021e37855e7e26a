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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/tools/record"
	"k8s.io/klog/v2"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
	"github.com/ewm-cloud-robotics/robot-controller/internal/config"
	"github.com/ewm-cloud-robotics/robot-controller/internal/controller"
	"github.com/ewm-cloud-robotics/robot-controller/internal/ewm"
	"github.com/ewm-cloud-robotics/robot-controller/internal/logging"
	"github.com/ewm-cloud-robotics/robot-controller/internal/metrics"
	"github.com/ewm-cloud-robotics/robot-controller/internal/mission"
	"github.com/ewm-cloud-robotics/robot-controller/internal/progress"
	"github.com/ewm-cloud-robotics/robot-controller/internal/server"
	"github.com/ewm-cloud-robotics/robot-controller/internal/watcher"
)

const supervisorInterval = time.Second

type watchers struct {
	configurations *watcher.ResourceWatcher
	orders         *watcher.ResourceWatcher
	requests       *watcher.ResourceWatcher
	missions       *watcher.ResourceWatcher
	robots         *watcher.ResourceWatcher
}

func (w *watchers) all() []*watcher.ResourceWatcher {
	return []*watcher.ResourceWatcher{w.robots, w.missions, w.requests, w.configurations, w.orders}
}

// failure returns the first loop failure of any watcher.
func (w *watchers) failure() error {
	for _, rw := range w.all() {
		if err := rw.Failure(); err != nil {
			return err
		}
	}
	return nil
}

func newWatchers(client dynamic.Interface, cfg *config.Config, sink metrics.Sink) *watchers {
	common := []watcher.Option{
		watcher.WithMetrics(sink),
		watcher.WithReprocessInterval(cfg.ReprocessInterval.Duration),
	}
	with := func(opts ...watcher.Option) []watcher.Option {
		return append(append([]watcher.Option{}, common...), opts...)
	}
	missionOpts := with(
		watcher.WithKind("Mission"),
		watcher.WithSweep(mission.SweepFinished(cfg.MissionRetention.Duration), cfg.MissionSweepInterval.Duration),
	)
	requestOpts := with(
		watcher.WithKind("RobotRequest"),
		watcher.WithSweep(ewm.SweepProcessed(cfg.MissionRetention.Duration), cfg.MissionSweepInterval.Duration),
	)
	if cfg.Robot != "" {
		missionOpts = append(missionOpts, watcher.WithLabelSelector(v1alpha1.LabelRobotName+"="+cfg.Robot))
	}
	return &watchers{
		configurations: watcher.New(client, v1alpha1.RobotConfigurationResource, cfg.Namespace, with(watcher.WithKind("RobotConfiguration"))...),
		orders:         watcher.New(client, v1alpha1.WarehouseOrderResource, cfg.Namespace, with(watcher.WithKind("WarehouseOrder"))...),
		requests:       watcher.New(client, v1alpha1.RobotRequestResource, cfg.Namespace, requestOpts...),
		missions:       watcher.New(client, v1alpha1.MissionResource, cfg.Namespace, missionOpts...),
		robots:         watcher.New(client, v1alpha1.RobotResource, cfg.Namespace, with(watcher.WithKind("Robot"))...),
	}
}

func newProgressStore(cfg *config.Config, w *watchers) (progress.Store, error) {
	if cfg.ProgressStore == config.ProgressStoreFile {
		return progress.NewFileStore(cfg.DataDir)
	}
	return progress.NewResourceStore(w.configurations), nil
}

func run(ctx context.Context, cfg *config.Config) error {
	flush, err := logging.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer flush()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	klog.InfoS("robot-controller starting", "namespace", cfg.Namespace, "robot", cfg.Robot,
		"progressStore", cfg.ProgressStore, "listenAddr", cfg.ListenAddr)

	restConfig, err := ctrlconfig.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to load kube config: %w", err)
	}
	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return fmt.Errorf("failed to create dynamic client: %w", err)
	}
	kubeClient, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return fmt.Errorf("failed to create clientset: %w", err)
	}

	broadcaster := record.NewBroadcaster()
	broadcaster.StartStructuredLogging(2)
	broadcaster.StartRecordingToSink(&typedcorev1.EventSinkImpl{Interface: kubeClient.CoreV1().Events(cfg.Namespace)})
	defer broadcaster.Shutdown()
	recorder := broadcaster.NewRecorder(scheme.Scheme, corev1.EventSource{Component: "robot-controller"})

	prom := metrics.NewPrometheus()
	w := newWatchers(dynamicClient, cfg, prom)
	store, err := newProgressStore(cfg, w)
	if err != nil {
		return fmt.Errorf("failed to create progress store: %w", err)
	}
	klog.InfoS("progress store initialized", "type", cfg.ProgressStore)

	robots := mission.NewRobotCache(w.robots)
	if err := w.robots.RegisterCallback("robot-cache", robots.Handle,
		watcher.Added, watcher.Modified, watcher.Deleted, watcher.Reprocess); err != nil {
		return err
	}

	factory := controller.NewRunnerFactory(controller.RunnerDeps{
		Missions:     w.missions,
		Robots:       robots,
		Orders:       w.orders,
		Requests:     w.requests,
		Store:        store,
		Recorder:     recorder,
		Metrics:      prom,
		TickInterval: cfg.TickInterval.Duration,
	})
	ctrlOpts := []controller.Option{controller.WithOrderLister(w.orders)}
	if cfg.Robot != "" {
		ctrlOpts = append(ctrlOpts, controller.WithRobot(cfg.Robot))
	}
	robotController := controller.NewRobotController(factory, store, ctrlOpts...)
	if err := robotController.Register(controller.Watchers{
		Configurations: w.configurations,
		Orders:         w.orders,
		Requests:       w.requests,
	}); err != nil {
		return fmt.Errorf("failed to register callbacks: %w", err)
	}
	robotController.Start(ctx)
	defer robotController.Stop()

	runOpts := map[*watcher.ResourceWatcher]watcher.RunOptions{
		w.robots:         {Watch: true, Reprocess: true, Concurrency: cfg.WatchConcurrency},
		w.missions:       {Concurrency: 1},
		w.requests:       {Watch: true, Concurrency: cfg.WatchConcurrency},
		w.configurations: {Watch: true, Reprocess: true, Concurrency: cfg.WatchConcurrency},
		w.orders:         {Watch: true, Reprocess: true, Concurrency: cfg.WatchConcurrency},
	}
	for _, rw := range w.all() {
		if err := rw.Start(ctx, runOpts[rw]); err != nil {
			return fmt.Errorf("failed to start %s watcher: %w", rw.Resource(), err)
		}
		defer rw.Stop()
	}

	handler := server.NewHandler(robotController, w.failure)
	svr := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.NewRouter(handler, prom.Handler()),
		ReadTimeout:  cfg.ReadTimeout.Duration,
		WriteTimeout: cfg.WriteTimeout.Duration,
	}
	serveErr := make(chan error, 1)
	go func() {
		klog.InfoS("HTTP server listening", "address", cfg.ListenAddr)
		if err := svr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	runErr := supervise(ctx, w, serveErr)

	klog.InfoS("shutting down robot-controller gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration)
	defer cancel()
	if err := svr.Shutdown(shutdownCtx); err != nil {
		klog.ErrorS(err, "HTTP server shutdown error")
	} else {
		klog.InfoS("HTTP server stopped")
	}
	return runErr
}

// supervise blocks until ctx ends, the HTTP server fails or a watcher loop fails.
func supervise(ctx context.Context, w *watchers, serveErr <-chan error) error {
	ticker := time.NewTicker(supervisorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			klog.InfoS("shutdown signal received")
			return nil
		case err := <-serveErr:
			return fmt.Errorf("HTTP server error: %w", err)
		case <-ticker.C:
			if err := w.failure(); err != nil {
				return fmt.Errorf("watcher failed: %w", err)
			}
		}
	}
}
