// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"maunium.net/go/mautrix/id"

	"github.com/matrix-biblebot/biblebot/pkg/auth"
	"github.com/matrix-biblebot/biblebot/pkg/bot"
	"github.com/matrix-biblebot/biblebot/pkg/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Matrix and answer scripture references",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}

		creds := store.Load()
		if creds == nil {
			if token := config.LegacyAccessToken(); token != "" {
				log.Warn().Msg("Using the deprecated MATRIX_ACCESS_TOKEN mode; run `biblebot auth login` instead")
				creds = &auth.Credentials{
					Homeserver:  cfg.Matrix.Homeserver,
					UserID:      id.UserID(cfg.Matrix.User),
					AccessToken: token,
				}
				if creds.Homeserver == "" || creds.UserID == "" {
					return fmt.Errorf("legacy token mode needs matrix.homeserver and matrix.user in the config")
				}
			} else {
				return fmt.Errorf("no saved session; run `biblebot auth login` first")
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b := bot.New(cfg, log)
		err = b.Run(ctx, creds, store.CryptoDBPath())
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Shutting down")
			return nil
		}
		return err
	},
}

func openStore() (*auth.Store, error) {
	dir, err := auth.DefaultDir()
	if err != nil {
		return nil, err
	}
	return auth.NewStore(dir, log), nil
}

func init() {
	rootCmd.AddCommand(runCmd)
}
