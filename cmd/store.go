// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kgiusti/go-hybridcrypt/certstore"
	"github.com/kgiusti/go-hybridcrypt/trust"
)

var storeBuildCmd = &cobra.Command{
	Use:   "store-build",
	Short: "Admit certificates from a PEM bundle into the persisted certificate store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmdLoadConfig(cmd); err != nil {
			return err
		}
		pc, err := loadPolicyConfig()
		if err != nil {
			return err
		}

		anchorsPath := viper.GetString("anchors")
		candidatesPath := viper.GetString("in")
		if anchorsPath == "" || candidatesPath == "" {
			return fmt.Errorf("--anchors and --in are both required")
		}

		anchorsFile, err := os.Open(anchorsPath)
		if err != nil {
			return err
		}
		defer anchorsFile.Close()
		validator, err := trust.NewCACertValidatorFromPEM(anchorsFile, trust.CACertValidatorOptions{
			IgnoreValidityPeriod: pc.TrustValidator.IgnoreValidityPeriod,
		})
		if err != nil {
			return fmt.Errorf("reading trust anchors: %w", err)
		}

		candidatesFile, err := os.Open(candidatesPath)
		if err != nil {
			return err
		}
		defer candidatesFile.Close()
		store, buildErr := certstore.Build(candidatesFile, validator, nil)
		if buildErr != nil {
			return fmt.Errorf("reading candidates: %w", buildErr)
		}

		d, err := openDB()
		if err != nil {
			return err
		}
		defer d.Close()
		if err := store.Persist(d); err != nil {
			return fmt.Errorf("persisting store: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "admitted %d certificate(s)\n", store.Len())
		return nil
	},
}

var storeListCmd = &cobra.Command{
	Use:   "store-list",
	Short: "List the key identifiers currently held in the certificate store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmdLoadConfig(cmd); err != nil {
			return err
		}
		d, err := openDB()
		if err != nil {
			return err
		}
		defer d.Close()
		store, err := certstore.LoadFromDB(d)
		if err != nil {
			return err
		}
		keys, err := store.EnumerateKeys()
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Fprintln(cmd.OutOrStdout(), k.ID.ToText())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(storeBuildCmd)
	storeBuildCmd.Flags().String("anchors", "", "PEM bundle of trusted CA certificates")
	storeBuildCmd.Flags().String("in", "", "PEM bundle of candidate certificates to admit")

	rootCmd.AddCommand(storeListCmd)
}
