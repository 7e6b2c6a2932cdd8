// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"crypto/x509"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/kgiusti/go-hybridcrypt/certs"
)

// CsrSigningPolicyConfig mirrors certs.CsrSigningPolicy as a config-file
// section: viper unmarshals the raw file into a map, mapstructure then
// decodes the type-keyed section into its concrete struct.
type CsrSigningPolicyConfig struct {
	SerialBits              int      `mapstructure:"serial_bits"`
	ValidityDays            int      `mapstructure:"validity_days"`
	AllowedKeyUsage         []string `mapstructure:"allowed_key_usage"`
	CopyRequestedExtensions bool     `mapstructure:"copy_requested_extensions"`
}

// TrustValidatorConfig mirrors trust.CACertValidatorOptions as a
// config-file section.
type TrustValidatorConfig struct {
	IgnoreValidityPeriod bool `mapstructure:"ignore_validity_period"`
}

// PolicyConfig is the top-level decoded shape of a --config file: the
// policy sections an operator sets once and every subcommand invocation
// reuses, instead of repeating a dozen flags.
type PolicyConfig struct {
	CsrSigningPolicy CsrSigningPolicyConfig `mapstructure:"csr_signing_policy"`
	TrustValidator   TrustValidatorConfig   `mapstructure:"trust_validator"`
}

// loadPolicyConfig decodes the sections viper already read from
// --config (if any) into a typed PolicyConfig. A missing config file
// yields the zero value, which resolves to certs/trust package defaults.
func loadPolicyConfig() (PolicyConfig, error) {
	var pc PolicyConfig
	if err := mapstructure.Decode(viper.AllSettings(), &pc); err != nil {
		return PolicyConfig{}, fmt.Errorf("cmd: decoding policy configuration: %w", err)
	}
	return pc, nil
}

var keyUsageNames = map[string]x509.KeyUsage{
	"digital_signature": x509.KeyUsageDigitalSignature,
	"key_encipherment":  x509.KeyUsageKeyEncipherment,
	"key_agreement":     x509.KeyUsageKeyAgreement,
	"cert_sign":         x509.KeyUsageCertSign,
	"crl_sign":          x509.KeyUsageCRLSign,
}

// keyUsageMask ORs together the named key-usage bits, rejecting anything
// unrecognized so a typo in a config file fails loudly rather than
// silently issuing an under-scoped certificate.
func keyUsageMask(names []string) (x509.KeyUsage, error) {
	var mask x509.KeyUsage
	for _, n := range names {
		bit, ok := keyUsageNames[n]
		if !ok {
			return 0, fmt.Errorf("cmd: unknown key usage %q", n)
		}
		mask |= bit
	}
	return mask, nil
}

// toCsrSigningPolicy resolves a decoded config section into the
// certs.CsrSigningPolicy the certs package actually consumes. SerialBits
// is passed through unchanged (CSR.GenerateCertificate treats zero as
// 128); a missing validity_days resolves to 365 days, since a zero
// certs.Validity would yield an empty validity window.
func (c CsrSigningPolicyConfig) toCsrSigningPolicy() (certs.CsrSigningPolicy, error) {
	mask, err := keyUsageMask(c.AllowedKeyUsage)
	if err != nil {
		return certs.CsrSigningPolicy{}, err
	}
	policy := certs.CsrSigningPolicy{
		SerialBits:              c.SerialBits,
		AllowedKeyUsageMask:     mask,
		CopyRequestedExtensions: c.CopyRequestedExtensions,
	}
	policy.Validity = certs.Validity{Duration: daysToDuration(validityDaysOrDefault(c.ValidityDays))}
	return policy, nil
}
