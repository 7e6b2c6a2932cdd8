// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kgiusti/go-hybridcrypt/trust"
)

var trustCheckCmd = &cobra.Command{
	Use:   "trust-check",
	Short: "Check a certificate against a set of trusted CA certificates",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmdLoadConfig(cmd); err != nil {
			return err
		}
		pc, err := loadPolicyConfig()
		if err != nil {
			return err
		}

		anchorsPath := viper.GetString("anchors")
		certPath := viper.GetString("cert")
		if anchorsPath == "" || certPath == "" {
			return fmt.Errorf("--anchors and --cert are both required")
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

		cert, err := readCertificateFile(certPath)
		if err != nil {
			return err
		}

		if validator.Check(cert) {
			fmt.Fprintln(cmd.OutOrStdout(), "trusted")
			return nil
		}
		return fmt.Errorf("not trusted")
	},
}

func init() {
	rootCmd.AddCommand(trustCheckCmd)
	trustCheckCmd.Flags().String("anchors", "", "PEM bundle of trusted CA certificates")
	trustCheckCmd.Flags().String("cert", "", "Certificate PEM path to check")
}
