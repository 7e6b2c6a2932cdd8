// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kgiusti/go-hybridcrypt/keys"
	"github.com/kgiusti/go-hybridcrypt/sig"
)

var digestNames = map[string]sig.Digest{
	"sha256": sig.SHA256,
	"sha384": sig.SHA384,
	"sha512": sig.SHA512,
}

func digestByName(name string) (sig.Digest, error) {
	d, ok := digestNames[name]
	if !ok {
		return 0, fmt.Errorf("cmd: unknown digest %q (supported: sha256, sha384, sha512)", name)
	}
	return d, nil
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a file with RSA or ECDSA",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmdLoadConfig(cmd); err != nil {
			return err
		}
		keyPath := viper.GetString("key")
		inPath := viper.GetString("in")
		outPath := viper.GetString("out")
		if keyPath == "" || inPath == "" || outPath == "" {
			return fmt.Errorf("--key, --in and --out are all required")
		}
		digest, err := digestByName(viper.GetString("digest"))
		if err != nil {
			return err
		}
		priv, err := readPrivateKeyFile(keyPath, nil)
		if err != nil {
			return err
		}
		gen, err := sig.NewGenerator(priv, digest, nil)
		if err != nil {
			return err
		}
		f, err := os.Open(inPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := gen.ConsumeBytesAsync(f); err != nil {
			return err
		}
		signature, err := gen.Sign()
		if err != nil {
			return fmt.Errorf("signing: %w", err)
		}
		return os.WriteFile(outPath, []byte(base64.StdEncoding.EncodeToString(signature)), 0o600)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a file's signature with RSA or ECDSA",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmdLoadConfig(cmd); err != nil {
			return err
		}
		keyPath := viper.GetString("key")
		inPath := viper.GetString("in")
		sigPath := viper.GetString("signature")
		if keyPath == "" || inPath == "" || sigPath == "" {
			return fmt.Errorf("--key, --in and --signature are all required")
		}
		digest, err := digestByName(viper.GetString("digest"))
		if err != nil {
			return err
		}

		objs, err := readPEMFile(keyPath)
		if err != nil {
			return err
		}
		var pub keys.PublicKey
		found := false
		for _, obj := range objs {
			if p, ok, err := publicKeyOf(obj); err == nil && ok {
				pub, found = p, true
				break
			}
		}
		if !found {
			return fmt.Errorf("no public key found in %s", keyPath)
		}

		verifier, err := sig.NewVerifier(pub, digest)
		if err != nil {
			return err
		}
		f, err := os.Open(inPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := verifier.ConsumeBytesAsync(f); err != nil {
			return err
		}

		sigB64, err := os.ReadFile(sigPath)
		if err != nil {
			return err
		}
		signature, err := base64.StdEncoding.DecodeString(string(sigB64))
		if err != nil {
			return fmt.Errorf("decoding signature: %w", err)
		}
		if err := verifier.CheckSignature(signature); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "OK")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().String("key", "", "Signer private key PEM path")
	signCmd.Flags().String("in", "", "File to sign")
	signCmd.Flags().String("out", "", "Output path for the base64-encoded signature")
	signCmd.Flags().String("digest", "sha256", "Digest algorithm: sha256, sha384, sha512")

	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().String("key", "", "Signer public key, certificate or CSR PEM path")
	verifyCmd.Flags().String("in", "", "File whose signature is checked")
	verifyCmd.Flags().String("signature", "", "Path to the base64-encoded signature")
	verifyCmd.Flags().String("digest", "sha256", "Digest algorithm: sha256, sha384, sha512")
}
