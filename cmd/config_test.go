// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

// resetViper clears viper's global state between test cases: viper is a
// package-level singleton, so tests that load configuration must not
// leak state.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func writeYAMLConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadPolicyConfig_FromYAML(t *testing.T) {
	resetViper(t)

	path := writeYAMLConfig(t, `
csr_signing_policy:
  serial_bits: 128
  validity_days: 30
  allowed_key_usage:
    - digital_signature
    - key_encipherment
  copy_requested_extensions: true
trust_validator:
  ignore_validity_period: true
`)

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}

	pc, err := loadPolicyConfig()
	if err != nil {
		t.Fatalf("loadPolicyConfig: %v", err)
	}
	if pc.CsrSigningPolicy.SerialBits != 128 {
		t.Errorf("SerialBits = %d, want 128", pc.CsrSigningPolicy.SerialBits)
	}
	if pc.CsrSigningPolicy.ValidityDays != 30 {
		t.Errorf("ValidityDays = %d, want 30", pc.CsrSigningPolicy.ValidityDays)
	}
	if !pc.CsrSigningPolicy.CopyRequestedExtensions {
		t.Error("CopyRequestedExtensions = false, want true")
	}
	if !pc.TrustValidator.IgnoreValidityPeriod {
		t.Error("IgnoreValidityPeriod = false, want true")
	}

	policy, err := pc.CsrSigningPolicy.toCsrSigningPolicy()
	if err != nil {
		t.Fatalf("toCsrSigningPolicy: %v", err)
	}
	if policy.SerialBits != 128 {
		t.Errorf("policy.SerialBits = %d, want 128", policy.SerialBits)
	}
	if policy.Validity.Duration != daysToDuration(30) {
		t.Errorf("policy.Validity.Duration = %v, want %v", policy.Validity.Duration, daysToDuration(30))
	}
}

func TestLoadPolicyConfig_EmptyYieldsDefaultValidity(t *testing.T) {
	resetViper(t)

	pc, err := loadPolicyConfig()
	if err != nil {
		t.Fatalf("loadPolicyConfig: %v", err)
	}
	policy, err := pc.CsrSigningPolicy.toCsrSigningPolicy()
	if err != nil {
		t.Fatalf("toCsrSigningPolicy: %v", err)
	}
	// A config-less run must still resolve to a usable, non-zero validity
	// window rather than an immediately-expired certs.Validity{}.
	if policy.Validity.Duration != daysToDuration(365) {
		t.Errorf("default policy.Validity.Duration = %v, want %v", policy.Validity.Duration, daysToDuration(365))
	}
}

func TestKeyUsageMask(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		wantErr bool
	}{
		{"empty", nil, false},
		{"single known", []string{"digital_signature"}, false},
		{"multiple known", []string{"cert_sign", "crl_sign"}, false},
		{"unknown rejected", []string{"digital_signature", "bogus"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := keyUsageMask(tt.in)
			if tt.wantErr && err == nil {
				t.Fatalf("keyUsageMask(%v): expected error, got none", tt.in)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("keyUsageMask(%v): unexpected error: %v", tt.in, err)
			}
		})
	}
}

func TestToCsrSigningPolicy_RejectsUnknownKeyUsage(t *testing.T) {
	c := CsrSigningPolicyConfig{AllowedKeyUsage: []string{"not_a_real_usage"}}
	if _, err := c.toCsrSigningPolicy(); err == nil {
		t.Fatal("toCsrSigningPolicy: expected error for unknown key usage, got none")
	}
}
