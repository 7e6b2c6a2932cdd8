// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"crypto/elliptic"
	"testing"
	"time"
)

func TestDaysToDuration(t *testing.T) {
	if got, want := daysToDuration(1), 24*time.Hour; got != want {
		t.Fatalf("daysToDuration(1) = %v, want %v", got, want)
	}
	if got, want := daysToDuration(365), 365*24*time.Hour; got != want {
		t.Fatalf("daysToDuration(365) = %v, want %v", got, want)
	}
}

func TestValidityDaysOrDefault(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero falls back to default", 0, 365},
		{"negative falls back to default", -5, 365},
		{"positive passes through", 90, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validityDaysOrDefault(tt.in); got != tt.want {
				t.Errorf("validityDaysOrDefault(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestCurveByName(t *testing.T) {
	tests := []struct {
		name    string
		want    elliptic.Curve
		wantErr bool
	}{
		{"secp256r1", elliptic.P256(), false},
		{"P256", elliptic.P256(), false},
		{"p-384", elliptic.P384(), false},
		{"secp521r1", elliptic.P521(), false},
		{"secp192r1", nil, true},
		{"bogus", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := curveByName(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("curveByName(%q): expected error, got none", tt.name)
				}
				return
			}
			if err != nil {
				t.Fatalf("curveByName(%q): unexpected error: %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("curveByName(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestParseDN(t *testing.T) {
	dn, err := parseDN("cn=leaf, o=Example , ou=Engineering,c=US")
	if err != nil {
		t.Fatalf("parseDN: unexpected error: %v", err)
	}
	wantValues := []string{"leaf", "Example", "Engineering", "US"}
	if len(dn) != len(wantValues) {
		t.Fatalf("parseDN: got %d attributes, want %d", len(dn), len(wantValues))
	}
	for i, want := range wantValues {
		got, ok := dn[i].Value.(string)
		if !ok || got != want {
			t.Errorf("parseDN: attribute %d = %v, want %q", i, dn[i].Value, want)
		}
	}
}

func TestParseDN_Empty(t *testing.T) {
	dn, err := parseDN("")
	if err != nil {
		t.Fatalf("parseDN(\"\"): unexpected error: %v", err)
	}
	if len(dn) != 0 {
		t.Errorf("parseDN(\"\") = %v, want empty", dn)
	}
}

func TestParseDN_MalformedAttribute(t *testing.T) {
	if _, err := parseDN("cn"); err == nil {
		t.Fatal("parseDN(\"cn\"): expected error for missing '=', got none")
	}
}

func TestParseDN_UnsupportedAttribute(t *testing.T) {
	if _, err := parseDN("dc=example"); err == nil {
		t.Fatal("parseDN(\"dc=example\"): expected error for unsupported attribute, got none")
	}
}
