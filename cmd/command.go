// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/petra-storage/petra/pkg/utils"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "petra",
	Short: "Petra - an S3-compatible object storage gateway",
	Long: `Petra is an S3-compatible object storage gateway.
It authenticates signed requests, evaluates bucket and object ACLs, and
serves the S3 REST API over a local metadata/object store.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&utils.ConfigurationFileDirectory, "config_dir", ".", "Directory for configuration files")
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
