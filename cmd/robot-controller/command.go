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
	"flag"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ewm-cloud-robotics/robot-controller/internal/config"
)

func newCommand() *cobra.Command {
	var configFile string
	defaults := config.NewConfig()

	cmd := &cobra.Command{
		Use:   "robot-controller",
		Short: "Drives robots through EWM warehouse orders",
		Long: "robot-controller watches RobotConfiguration and WarehouseOrder resources and runs a\n" +
			"state machine per robot that turns warehouse tasks into robot missions.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "YAML config file")
	defaults.BindFlags(cmd.Flags())
	// --kubeconfig of controller-runtime
	cmd.Flags().AddGoFlagSet(flag.CommandLine)
	return cmd
}

// resolveConfig layers defaults, the config file, the environment and the
// flags set on the command line, in that order.
func resolveConfig(flags *pflag.FlagSet, file string) (*config.Config, error) {
	cfg := config.NewConfig()
	if file != "" {
		if err := cfg.LoadFromFile(file); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	resolved := pflag.NewFlagSet("resolved", pflag.ContinueOnError)
	cfg.BindFlags(resolved)
	var setErr error
	flags.Visit(func(f *pflag.Flag) {
		if resolved.Lookup(f.Name) == nil || setErr != nil {
			return
		}
		if err := resolved.Set(f.Name, f.Value.String()); err != nil {
			setErr = fmt.Errorf("invalid flag --%s: %w", f.Name, err)
		}
	})
	if setErr != nil {
		return nil, setErr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
