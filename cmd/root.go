// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

// Package cmd implements the hybridcryptctl command-line front end over
// the core library: key and certificate generation, CSR issuance,
// multi-recipient encrypt/decrypt, streaming sign/verify, trust checks
// and the persisted certificate store.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"hermannm.dev/devlog"

	internaldb "github.com/kgiusti/go-hybridcrypt/internal/db"
)

var (
	debug    bool
	dbType   string
	dbDSN    string
	logLevel slog.LevelVar
)

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "hybridcryptctl",
	Short: "Hybrid end-to-end encryption toolkit",
	Long: `hybridcryptctl drives the hybrid multi-recipient encryption core:
	key and certificate generation, CSR issuance, multi-recipient
	encrypt/decrypt, streaming sign/verify, trust validation and a
	key-identifier-indexed certificate store.
`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &logLevel,
	})))

	rootCmd.PersistentFlags().Bool("debug", false, "Print debug output")
	rootCmd.PersistentFlags().String("db-type", "sqlite", "Certificate store database type (sqlite or postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "Certificate store database DSN (required by store-build and store-list)")
	rootCmd.PersistentFlags().String("config", "", "Pathname of a policy configuration file (YAML/JSON/TOML)")
}

// rootCmdLoadConfig binds persistent flags into viper, optionally loads a
// config file, and resolves the shared debug/db flags. Subcommands call
// this first.
func rootCmdLoadConfig(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return err
	}

	if configFilePath := viper.GetString("config"); configFilePath != "" {
		slog.Debug("loading configuration file", "path", configFilePath)
		viper.SetConfigFile(configFilePath)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("configuration file read failed: %w", err)
		}
	}

	debug = viper.GetBool("debug")
	if debug {
		logLevel.Set(slog.LevelDebug)
	}
	dbType = viper.GetString("db-type")
	dbDSN = viper.GetString("dsn")
	return nil
}

// openDB opens the certificate-store database named by --db-type/--dsn and
// ensures its schema is migrated.
func openDB() (*internaldb.DB, error) {
	if dbDSN == "" {
		return nil, fmt.Errorf("--dsn is required")
	}
	d, err := internaldb.Open(dbType, dbDSN)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(); err != nil {
		return nil, err
	}
	return d, nil
}
