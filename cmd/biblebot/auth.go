// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matrix-biblebot/biblebot/pkg/auth"
)

var (
	loginHomeserver string
	loginUser       string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the saved Matrix session",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with a password and save the session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		in := bufio.NewReader(os.Stdin)

		homeserver := loginHomeserver
		if homeserver == "" {
			if homeserver, err = prompt(in, "Homeserver (e.g. example.org): "); err != nil {
				return err
			}
		}
		user := loginUser
		if user == "" {
			if user, err = prompt(in, "Username: "); err != nil {
				return err
			}
		}
		password, err := prompt(in, "Password: ")
		if err != nil {
			return err
		}

		creds, err := auth.Login(cmd.Context(), store, auth.LoginRequest{
			Homeserver: homeserver,
			User:       user,
			Password:   password,
		}, log)
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s (device %s)\n", creds.UserID, creds.DeviceID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Invalidate the session and remove local credentials and keys",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err = auth.Logout(cmd.Context(), store, log); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved session, if any",
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		creds := store.Load()
		if creds == nil {
			fmt.Println("No saved session")
			return nil
		}
		fmt.Printf("Logged in as %s on %s (device %s)\n", creds.UserID, creds.Homeserver, creds.DeviceID)
		return nil
	},
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := in.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func init() {
	loginCmd.Flags().StringVar(&loginHomeserver, "homeserver", "", "Homeserver name or URL")
	loginCmd.Flags().StringVar(&loginUser, "user", "", "Matrix user ID or localpart")
	authCmd.AddCommand(loginCmd, logoutCmd, statusCmd)
	rootCmd.AddCommand(authCmd)
}
