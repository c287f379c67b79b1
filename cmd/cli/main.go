// Copyright 2026 fanjia1024
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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"memory-animation/pkg/config"
)

const version = "0.1.0"

// newRootCmd 构建命令树
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "animgate",
		Short: "Memory-aware animation gate tooling.",
		Long: `animgate evaluates the animation gate offline, probes the host's ` +
			`device memory, and inspects or overrides sessions on a running API.`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newDecideCmd(),
		newProbeCmd(),
		newStatusCmd(),
		newOverrideCmd(),
		newConfigCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the CLI version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "animgate cli %s\n", version)
			},
		},
	)
	return root
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config [path]",
		Short: "Print the effective configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg *config.Config
				err error
			)
			if len(args) == 1 {
				cfg, err = config.LoadConfig(args[0])
			} else {
				cfg, err = config.LoadAPIConfig()
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
