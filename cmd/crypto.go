// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kgiusti/go-hybridcrypt/dataenc"
	"github.com/kgiusti/go-hybridcrypt/envelope"
	"github.com/kgiusti/go-hybridcrypt/keyenc"
	"github.com/kgiusti/go-hybridcrypt/keyid"
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt a single-stream plaintext for one or more recipients",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmdLoadConfig(cmd); err != nil {
			return err
		}
		recipientsPath := viper.GetString("recipients")
		inPath := viper.GetString("in")
		outPath := viper.GetString("out")
		infoPath := viper.GetString("info")
		if recipientsPath == "" || inPath == "" || outPath == "" || infoPath == "" {
			return fmt.Errorf("--recipients, --in, --out and --info are all required")
		}

		recipients, err := recipientsFromPEM(recipientsPath)
		if err != nil {
			return err
		}

		keyEnc, err := keyenc.NewKeyEncryptor(recipients, keyenc.Options{
			AllowSharedSenderKeyPair: viper.GetBool("allow-shared-ec"),
		})
		if err != nil {
			return err
		}

		dataEnc, err := dataenc.NewEncryptor(dataenc.Options{})
		if err != nil {
			return err
		}

		plaintext, err := os.ReadFile(inPath)
		if err != nil {
			return err
		}
		ciphertext, err := dataEnc.EncryptData(plaintext, 0)
		if err != nil {
			return fmt.Errorf("encrypting data: %w", err)
		}
		if err := os.WriteFile(outPath, ciphertext, 0o600); err != nil {
			return err
		}

		dataKeys, sharedPub, err := keyEnc.WrapDataKey(dataEnc.DataKey())
		if err != nil {
			return fmt.Errorf("wrapping data key: %w", err)
		}
		info := envelope.EncryptionInfo{
			DataMode:               dataEnc.Mode(),
			IVs:                    dataEnc.IVs(),
			DataKeys:               dataKeys,
			SharedMessagePublicKey: sharedPub,
		}
		if err := info.Validate(1); err != nil {
			return fmt.Errorf("internal: produced an invalid EncryptionInfo: %w", err)
		}
		return writeJSONFile(infoPath, info)
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypt a single-stream ciphertext with a recipient's private key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmdLoadConfig(cmd); err != nil {
			return err
		}
		keyPath := viper.GetString("key")
		inPath := viper.GetString("in")
		outPath := viper.GetString("out")
		infoPath := viper.GetString("info")
		if keyPath == "" || inPath == "" || outPath == "" || infoPath == "" {
			return fmt.Errorf("--key, --in, --out and --info are all required")
		}

		priv, err := readPrivateKeyFile(keyPath, nil)
		if err != nil {
			return err
		}
		pub, err := derivePublicFor(priv)
		if err != nil {
			return err
		}
		id, err := keyid.Compute(pub)
		if err != nil {
			return err
		}

		var info envelope.EncryptionInfo
		if err := readJSONFile(infoPath, &info); err != nil {
			return err
		}

		keyDec := keyenc.NewKeyDecryptor(id, priv)
		dataDec, err := dataenc.FromEncryptionInfo(info, keyDec)
		if err != nil {
			return fmt.Errorf("unwrapping data key: %w", err)
		}
		if dataDec == nil {
			return fmt.Errorf("this key (%s) is not a recipient of this message", id.ToText())
		}

		ciphertext, err := os.ReadFile(inPath)
		if err != nil {
			return err
		}
		plaintext, err := dataDec.DecryptData(ciphertext, 0)
		if err != nil {
			return fmt.Errorf("decrypting data: %w", err)
		}
		return os.WriteFile(outPath, plaintext, 0o600)
	},
}

// recipientsFromPEM reads every public key or certificate in path and
// turns it into a keyenc.Recipient keyed by its computed key identifier.
func recipientsFromPEM(path string) ([]keyenc.Recipient, error) {
	objs, err := readPEMFile(path)
	if err != nil {
		return nil, err
	}
	var recipients []keyenc.Recipient
	for _, obj := range objs {
		pub, ok, err := publicKeyOf(obj)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		id, err := keyid.Compute(pub)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, keyenc.Recipient{ID: id, PublicKey: pub})
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipient public keys found in %s", path)
	}
	return recipients, nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func init() {
	rootCmd.AddCommand(encryptCmd)
	encryptCmd.Flags().String("recipients", "", "PEM bundle of recipient public keys or certificates")
	encryptCmd.Flags().String("in", "", "Plaintext input file")
	encryptCmd.Flags().String("out", "", "Ciphertext output file")
	encryptCmd.Flags().String("info", "", "Output path for the EncryptionInfo JSON metadata")
	encryptCmd.Flags().Bool("allow-shared-ec", false, "Enable the shared ephemeral EC key optimization")

	rootCmd.AddCommand(decryptCmd)
	decryptCmd.Flags().String("key", "", "Recipient private key PEM path")
	decryptCmd.Flags().String("in", "", "Ciphertext input file")
	decryptCmd.Flags().String("out", "", "Plaintext output file")
	decryptCmd.Flags().String("info", "", "EncryptionInfo JSON metadata path")
}
