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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/notargets/dfem/partition"
	"github.com/notargets/dfem/readfiles"
)

// PartitionCmd represents the partition command
var PartitionCmd = &cobra.Command{
	Use:   "partition",
	Short: "Split a native mesh into parts for a parallel run",
	Long: `
Reads the serial mesh in a native mesh directory, partitions its cells and
nodes and writes the CellPartition and NodePartition artifacts next to it.

dfem partition --mesh plate --parts 4 --method metis`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("mesh")
		nParts, _ := cmd.Flags().GetInt("parts")
		method, _ := cmd.Flags().GetString("method")
		return PartitionMesh(dir, nParts, method)
	},
}

func init() {
	rootCmd.AddCommand(PartitionCmd)
	PartitionCmd.Flags().String("mesh", "", "native mesh directory")
	PartitionCmd.Flags().Int("parts", 2, "number of parts")
	PartitionCmd.Flags().String("method", "metis", "graph partitioner: metis or block")
	_ = PartitionCmd.MarkFlagRequired("mesh")
}

func PartitionMesh(dir string, nParts int, method string) error {
	log, err := logFactory()(0, 1)
	if err != nil {
		return err
	}
	defer log.Close()
	var oracle partition.GraphPartitioner
	switch method {
	case "metis":
		oracle = partition.NewMetisPartitioner(partition.DefaultPartitionConfig(int32(nParts)))
	case "block":
		oracle = partition.BlockPartitioner{}
	default:
		return fmt.Errorf("unknown partition method %q", method)
	}
	m, err := readfiles.ReadMesh(dir, 0, 1)
	if err != nil {
		return err
	}
	m.Info(log)
	mp, err := partition.NewMeshPartitioner(m, nParts, oracle, log)
	if err != nil {
		return err
	}
	start := time.Now()
	if err = mp.Partition(); err != nil {
		return fmt.Errorf("partition %s: %w", dir, err)
	}
	log.Infof("%d parts in %s", nParts, time.Since(start))
	return mp.Write(dir)
}
