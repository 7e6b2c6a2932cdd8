// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"crypto/x509"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kgiusti/go-hybridcrypt/certs"
	"github.com/kgiusti/go-hybridcrypt/keys"
	pemio "github.com/kgiusti/go-hybridcrypt/pem"
)

var gencertCmd = &cobra.Command{
	Use:   "gencert",
	Short: "Generate a self-signed certificate for a subject key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmdLoadConfig(cmd); err != nil {
			return err
		}
		subjectDN, err := parseDN(viper.GetString("subject"))
		if err != nil {
			return err
		}
		subjectKeyPath := viper.GetString("key")
		if subjectKeyPath == "" {
			return fmt.Errorf("--key is required")
		}
		priv, err := readPrivateKeyFile(subjectKeyPath, nil)
		if err != nil {
			return err
		}
		pub, err := derivePublicFor(priv)
		if err != nil {
			return err
		}

		params := certs.GenerateParams{
			IssuerDN:             subjectDN,
			SignerPrivateKey:     priv,
			SubjectDN:            subjectDN,
			SubjectPublicKey:     pub,
			Validity:             certs.Validity{Duration: daysToDuration(validityDaysOrDefault(viper.GetInt("validity-days")))},
			Serial:               big.NewInt(viper.GetInt64("serial")),
			GenerateSubjectKeyId: viper.GetBool("generate-skid"),
		}
		if viper.GetBool("ca") {
			params.KeyUsages = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
			params.CAConstraint = &certs.CAConstraint{IsCA: true}
		}
		cert, err := certs.Generate(params)
		if err != nil {
			return fmt.Errorf("generating certificate: %w", err)
		}
		out := viper.GetString("out")
		if out == "" {
			return fmt.Errorf("--out is required")
		}
		return writePEMFile(out, []pemio.Object{{Kind: pemio.KindCertificate, Certificate: cert}}, pemio.WriteOptions{})
	},
}

var gencsrCmd = &cobra.Command{
	Use:   "gencsr",
	Short: "Generate a self-signed certificate signing request",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmdLoadConfig(cmd); err != nil {
			return err
		}
		subjectDN, err := parseDN(viper.GetString("subject"))
		if err != nil {
			return err
		}
		subjectKeyPath := viper.GetString("key")
		if subjectKeyPath == "" {
			return fmt.Errorf("--key is required")
		}
		priv, err := readPrivateKeyFile(subjectKeyPath, nil)
		if err != nil {
			return err
		}
		pub, err := derivePublicFor(priv)
		if err != nil {
			return err
		}

		csr, err := certs.GenerateCSR(certs.CSRGenerateParams{
			SubjectDN:             subjectDN,
			SubjectKeyPair:        keys.KeyPair{Public: pub, Private: priv},
			RequestSubjectKeyId:   viper.GetBool("request-skid"),
			RequestAuthorityKeyId: viper.GetBool("request-akid"),
		})
		if err != nil {
			return fmt.Errorf("generating CSR: %w", err)
		}
		out := viper.GetString("out")
		if out == "" {
			return fmt.Errorf("--out is required")
		}
		return writePEMFile(out, []pemio.Object{{Kind: pemio.KindCertificateRequest, CSR: csr}}, pemio.WriteOptions{})
	},
}

var signcsrCmd = &cobra.Command{
	Use:   "signcsr",
	Short: "Issue a certificate for a CSR under an issuer certificate",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmdLoadConfig(cmd); err != nil {
			return err
		}
		pc, err := loadPolicyConfig()
		if err != nil {
			return err
		}
		policy, err := pc.CsrSigningPolicy.toCsrSigningPolicy()
		if err != nil {
			return err
		}

		csrPath := viper.GetString("csr")
		issuerCertPath := viper.GetString("issuer-cert")
		issuerKeyPath := viper.GetString("issuer-key")
		out := viper.GetString("out")
		if csrPath == "" || issuerCertPath == "" || issuerKeyPath == "" || out == "" {
			return fmt.Errorf("--csr, --issuer-cert, --issuer-key and --out are all required")
		}

		objs, err := readPEMFile(csrPath)
		if err != nil {
			return err
		}
		var csr *certs.CSR
		for _, obj := range objs {
			if obj.Kind == pemio.KindCertificateRequest {
				c := obj.CSR
				csr = &c
				break
			}
		}
		if csr == nil {
			return fmt.Errorf("no CSR found in %s", csrPath)
		}

		issuerCert, err := readCertificateFile(issuerCertPath)
		if err != nil {
			return err
		}
		issuerKey, err := readPrivateKeyFile(issuerKeyPath, nil)
		if err != nil {
			return err
		}

		cert, err := csr.GenerateCertificate(issuerCert, issuerKey, policy)
		if err != nil {
			return fmt.Errorf("issuing certificate: %w", err)
		}
		return writePEMFile(out, []pemio.Object{{Kind: pemio.KindCertificate, Certificate: cert}}, pemio.WriteOptions{})
	},
}

func validityDaysOrDefault(days int) int {
	if days <= 0 {
		return 365
	}
	return days
}

func init() {
	rootCmd.AddCommand(gencertCmd)
	gencertCmd.Flags().String("subject", "", "Subject (and issuer) DN, e.g. \"cn=leaf,o=Example\"")
	gencertCmd.Flags().String("key", "", "Subject private key PEM path")
	gencertCmd.Flags().Int("validity-days", 365, "Validity window length in days")
	gencertCmd.Flags().Int64("serial", 1, "Certificate serial number")
	gencertCmd.Flags().Bool("generate-skid", false, "Include a computed subject-key-identifier extension")
	gencertCmd.Flags().Bool("ca", false, "Mark the certificate as a CA with KeyCertSign usage")
	gencertCmd.Flags().String("out", "", "Output PEM file path")

	rootCmd.AddCommand(gencsrCmd)
	gencsrCmd.Flags().String("subject", "", "Subject DN, e.g. \"cn=leaf,o=Example\"")
	gencsrCmd.Flags().String("key", "", "Subject private key PEM path")
	gencsrCmd.Flags().Bool("request-skid", false, "Request the issuer generate a subject-key-identifier")
	gencsrCmd.Flags().Bool("request-akid", false, "Request the issuer carry its SKID as authority-key-identifier")
	gencsrCmd.Flags().String("out", "", "Output PEM file path")

	rootCmd.AddCommand(signcsrCmd)
	signcsrCmd.Flags().String("csr", "", "CSR PEM path")
	signcsrCmd.Flags().String("issuer-cert", "", "Issuer certificate PEM path")
	signcsrCmd.Flags().String("issuer-key", "", "Issuer private key PEM path")
	signcsrCmd.Flags().String("out", "", "Output PEM file path")
}
