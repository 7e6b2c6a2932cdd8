// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kgiusti/go-hybridcrypt/keys"
	pemio "github.com/kgiusti/go-hybridcrypt/pem"
)

var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate an RSA or EC key pair and write it as PEM",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmdLoadConfig(cmd); err != nil {
			return err
		}
		keyType := viper.GetString("type")
		out := viper.GetString("out")
		if out == "" {
			return fmt.Errorf("--out is required")
		}

		var kp keys.KeyPair
		var err error
		switch keyType {
		case "rsa":
			bits := viper.GetInt("bits")
			if bits == 0 {
				bits = 2048
			}
			kp, err = keys.GenerateRSA(nil, bits)
		case "ec":
			curve, cerr := curveByName(viper.GetString("curve"))
			if cerr != nil {
				return cerr
			}
			kp, err = keys.GenerateEC(nil, curve)
		default:
			return fmt.Errorf("--type must be \"rsa\" or \"ec\", got %q", keyType)
		}
		if err != nil {
			return fmt.Errorf("generating key: %w", err)
		}

		var opts pemio.WriteOptions
		if pass := viper.GetString("passphrase"); pass != "" {
			opts.Passphrase = pemio.StaticPassphrase([]byte(pass))
		}
		if err := writePEMFile(out, pemio.FromKeyPair(kp), opts); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(genkeyCmd)
	genkeyCmd.Flags().String("type", "rsa", "Key type: rsa or ec")
	genkeyCmd.Flags().Int("bits", 2048, "RSA modulus size in bits (1024, 2048, 4096)")
	genkeyCmd.Flags().String("curve", "secp256r1", "EC curve name (secp256r1, secp384r1, secp521r1)")
	genkeyCmd.Flags().String("out", "", "Output PEM file path")
	genkeyCmd.Flags().String("passphrase", "", "Encrypt the private key block with this passphrase")
}
