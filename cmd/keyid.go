// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kgiusti/go-hybridcrypt/keyid"
	"github.com/kgiusti/go-hybridcrypt/keys"
	pemio "github.com/kgiusti/go-hybridcrypt/pem"
)

var keyidCmd = &cobra.Command{
	Use:   "keyid",
	Short: "Print the canonical key identifier of a public key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmdLoadConfig(cmd); err != nil {
			return err
		}
		in := viper.GetString("in")
		if in == "" {
			return fmt.Errorf("--in is required")
		}
		objs, err := readPEMFile(in)
		if err != nil {
			return fmt.Errorf("reading %s: %w", in, err)
		}
		for _, obj := range objs {
			pub, ok, err := publicKeyOf(obj)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			id, err := keyid.Compute(pub)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id.ToText())
		}
		return nil
	},
}

// publicKeyOf extracts the public key carried by a PEM object, deriving
// it from a private key when the object is a bare key pair.
func publicKeyOf(obj pemio.Object) (keys.PublicKey, bool, error) {
	switch obj.Kind {
	case pemio.KindPublicKey:
		return obj.PublicKey, true, nil
	case pemio.KindPrivateKey:
		pub, err := keys.DerivePublic(obj.PrivateKey)
		return pub, true, err
	case pemio.KindCertificate:
		pub, err := obj.Certificate.PublicKey()
		return pub, true, err
	case pemio.KindCertificateRequest:
		pub, err := obj.CSR.SubjectPublicKey()
		return pub, true, err
	default:
		return keys.PublicKey{}, false, nil
	}
}

func init() {
	rootCmd.AddCommand(keyidCmd)
	keyidCmd.Flags().String("in", "", "Input PEM file (public key, private key, certificate, or CSR)")
}
