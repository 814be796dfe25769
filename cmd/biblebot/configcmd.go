// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matrix-biblebot/biblebot/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write an example config to the --config path",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := config.Generate(configPath); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", configPath)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and validate the config file",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		fmt.Printf("%s is valid (%d rooms, default translation %s)\n",
			configPath, len(cfg.Matrix.RoomIDs), cfg.Bot.DefaultTranslation)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configGenerateCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
