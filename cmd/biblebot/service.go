// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
)

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=Matrix scripture bot
After=network-online.target

[Service]
ExecStart={{.Executable}} run --config {{.ConfigPath}}
Restart=on-failure
RestartSec=10

[Install]
WantedBy=default.target
`))

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the systemd user service",
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Write a systemd user unit for the bot",
	RunE: func(_ *cobra.Command, _ []string) error {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locating executable: %w", err)
		}
		cfgAbs, err := filepath.Abs(configPath)
		if err != nil {
			return fmt.Errorf("resolving config path: %w", err)
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("locating home dir: %w", err)
		}
		dir := filepath.Join(home, ".config", "systemd", "user")
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating unit dir: %w", err)
		}

		unitPath := filepath.Join(dir, "biblebot.service")
		f, err := os.OpenFile(unitPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("creating unit file: %w", err)
		}
		defer f.Close()
		err = unitTemplate.Execute(f, map[string]string{
			"Executable": exe,
			"ConfigPath": cfgAbs,
		})
		if err != nil {
			return fmt.Errorf("writing unit file: %w", err)
		}

		fmt.Printf("Wrote %s\n", unitPath)
		fmt.Println("Enable with: systemctl --user enable --now biblebot.service")
		return nil
	},
}

func init() {
	serviceCmd.AddCommand(serviceInstallCmd)
	rootCmd.AddCommand(serviceCmd)
}
