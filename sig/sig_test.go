// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package sig

import (
	"bytes"
	"crypto/elliptic"
	"strings"
	"testing"

	"github.com/kgiusti/go-hybridcrypt/keys"
)

func TestRSASignAndVerifyRoundTrip(t *testing.T) {
	kp, err := keys.GenerateRSA(nil, 2048)
	if err != nil {
		t.Fatalf("GenerateRSA: %v", err)
	}
	g, err := NewGenerator(kp.Private, SHA256, nil)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	g.ProcessBytes([]byte("hello "))
	g.ProcessBytes([]byte("world"))
	signature, err := g.Sign()
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	v, err := NewVerifier(kp.Public, SHA256)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if err := v.ConsumeBytesAsync(strings.NewReader("hello world")); err != nil {
		t.Fatalf("ConsumeBytesAsync: %v", err)
	}
	if !v.IsValidSignature(signature) {
		t.Fatal("expected signature to verify")
	}
}

func TestECDSASignAndVerifyRoundTripAllDigests(t *testing.T) {
	kp, err := keys.GenerateEC(nil, elliptic.P384())
	if err != nil {
		t.Fatalf("GenerateEC: %v", err)
	}
	for _, d := range []Digest{SHA256, SHA384, SHA512} {
		g, err := NewGenerator(kp.Private, d, nil)
		if err != nil {
			t.Fatalf("NewGenerator(%d): %v", d, err)
		}
		g.ProcessBytes([]byte("ecdsa message"))
		signature, err := g.Sign()
		if err != nil {
			t.Fatalf("Sign(%d): %v", d, err)
		}

		v, err := NewVerifier(kp.Public, d)
		if err != nil {
			t.Fatalf("NewVerifier(%d): %v", d, err)
		}
		v.ProcessBytes([]byte("ecdsa message"))
		if err := v.CheckSignature(signature); err != nil {
			t.Fatalf("CheckSignature(%d): %v", d, err)
		}
	}
}

func TestCheckSignatureRejectsTamperedMessage(t *testing.T) {
	kp, err := keys.GenerateRSA(nil, 2048)
	if err != nil {
		t.Fatalf("GenerateRSA: %v", err)
	}
	g, _ := NewGenerator(kp.Private, SHA256, nil)
	g.ProcessBytes([]byte("original"))
	signature, err := g.Sign()
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	v, _ := NewVerifier(kp.Public, SHA256)
	v.ProcessBytes([]byte("tampered"))
	if err := v.CheckSignature(signature); err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if v.IsValidSignature(signature) {
		t.Fatal("expected IsValidSignature to report false for a tampered message")
	}
}

func TestCheckSignatureRejectsWrongKey(t *testing.T) {
	kp, err := keys.GenerateEC(nil, elliptic.P256())
	if err != nil {
		t.Fatalf("GenerateEC: %v", err)
	}
	other, err := keys.GenerateEC(nil, elliptic.P256())
	if err != nil {
		t.Fatalf("GenerateEC: %v", err)
	}
	g, _ := NewGenerator(kp.Private, SHA256, nil)
	g.ProcessBytes([]byte("signed by kp"))
	signature, err := g.Sign()
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	v, _ := NewVerifier(other.Public, SHA256)
	v.ProcessBytes([]byte("signed by kp"))
	if v.IsValidSignature(signature) {
		t.Fatal("expected verification with the wrong public key to fail")
	}
}

func TestConsumeBytesAsyncMatchesProcessBytes(t *testing.T) {
	kp, err := keys.GenerateRSA(nil, 2048)
	if err != nil {
		t.Fatalf("GenerateRSA: %v", err)
	}
	data := bytes.Repeat([]byte("chunked-stream-"), 1000)

	g1, _ := NewGenerator(kp.Private, SHA256, nil)
	g1.ProcessBytes(data)
	sig1, err := g1.Sign()
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	g2, _ := NewGenerator(kp.Private, SHA256, nil)
	if err := g2.ConsumeBytesAsync(bytes.NewReader(data)); err != nil {
		t.Fatalf("ConsumeBytesAsync: %v", err)
	}
	sig2, err := g2.Sign()
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	v, _ := NewVerifier(kp.Public, SHA256)
	v.ProcessBytes(data)
	if !v.IsValidSignature(sig1) {
		t.Fatal("expected ProcessBytes-produced signature to verify")
	}
	v2, _ := NewVerifier(kp.Public, SHA256)
	v2.ProcessBytes(data)
	if !v2.IsValidSignature(sig2) {
		t.Fatal("expected ConsumeBytesAsync-produced signature to verify")
	}
}
