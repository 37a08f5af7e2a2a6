/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/dfem/InputParameters"
	"github.com/notargets/dfem/parallel"
	"github.com/notargets/dfem/readfiles"
	"github.com/notargets/dfem/solver"
	"github.com/notargets/dfem/utils"
)

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run case.yaml",
	Short: "Assemble and solve a case on a world of ranks",
	Long: `
Loads each rank's part of the case mesh, assembles the system described by
the case file and runs its static, dynamic or modal analysis. With more than
one rank the mesh directory must hold the partition artifacts written by
"dfem partition" for the same number of parts.

dfem run plate.yaml --procs 4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cp, err := readCase(args[0])
		if err != nil {
			return err
		}
		if procs := viper.GetInt("procs"); procs > 0 {
			cp.Procs = procs
		}
		cp.Print()
		if viper.GetBool("profile") {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err = RunCase(ctx, cp, logFactory()); err != nil {
			return err
		}
		if file, _ := cmd.Flags().GetString("metrics"); file != "" {
			return prometheus.WriteToTextfile(file, prometheus.DefaultGatherer)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(RunCmd)
	RunCmd.Flags().IntP("procs", "p", 0, "number of ranks, overrides Procs of the case file")
	RunCmd.Flags().Bool("profile", false, "write a CPU profile into the working directory")
	RunCmd.Flags().String("metrics", "", "write assembly and solver metrics into this file")
	_ = viper.BindPFlag("procs", RunCmd.Flags().Lookup("procs"))
	_ = viper.BindPFlag("profile", RunCmd.Flags().Lookup("profile"))
}

func readCase(file string) (cp *InputParameters.CaseParameters, err error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return
	}
	cp = &InputParameters.CaseParameters{}
	if err = cp.Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return
}

func logFactory() parallel.LoggerFactory {
	if path := viper.GetString("log"); path != "" {
		return parallel.FileLogs(path)
	}
	return parallel.StdoutLogs
}

// RunCase runs cp on cp.Procs ranks, each loading its own part of the mesh.
func RunCase(ctx context.Context, cp *InputParameters.CaseParameters, logs parallel.LoggerFactory) error {
	if cp.Output != "" {
		if err := os.MkdirAll(cp.Output, 0o755); err != nil {
			return err
		}
	}
	return parallel.Run(ctx, cp.Procs, logs, func(ctx context.Context, c *parallel.Comm) error {
		log := c.Logger()
		m, err := readfiles.ReadMesh(cp.Mesh, c.Rank(), c.Size())
		if err != nil {
			return err
		}
		m.Info(log)
		r, _, err := solver.Setup(ctx, c, m, cp)
		if err != nil {
			return err
		}
		start := time.Now()
		if err = solver.Execute(ctx, r); err != nil {
			return err
		}
		log.RootInfof("%s analysis of %q done in %s, %s", cp.Analysis, cp.Title, time.Since(start), utils.GetMemUsage())
		return nil
	})
}
