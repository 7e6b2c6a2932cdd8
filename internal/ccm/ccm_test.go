// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package ccm

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func randBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := randBytes(32)
	nonce := randBytes(NonceSize)
	c, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	plaintext := []byte("the quick brown fox jumps over the lazy dog, repeated a bit")
	sealed, err := c.Seal(nonce, plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if len(sealed) != len(plaintext)+TagSize {
		t.Fatalf("expected len %d, got %d", len(plaintext)+TagSize, len(sealed))
	}
	opened, err := c.Open(nonce, sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatal("round-trip mismatch")
	}
}

func TestEmptyAndBlockAlignedSizes(t *testing.T) {
	key := randBytes(32)
	c, _ := New(key)
	for _, size := range []int{0, 1, 15, 16, 17, 32, 65535} {
		nonce := randBytes(NonceSize)
		plaintext := randBytes(size)
		sealed, err := c.Seal(nonce, plaintext)
		if err != nil {
			t.Fatalf("Seal(size=%d): %v", size, err)
		}
		opened, err := c.Open(nonce, sealed)
		if err != nil {
			t.Fatalf("Open(size=%d): %v", size, err)
		}
		if !bytes.Equal(opened, plaintext) {
			t.Fatalf("mismatch at size %d", size)
		}
	}
}

func TestTamperedCiphertextFailsAuthentication(t *testing.T) {
	key := randBytes(32)
	nonce := randBytes(NonceSize)
	c, _ := New(key)
	plaintext := randBytes(100)
	sealed, err := c.Seal(nonce, plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	sealed[10] ^= 0x01
	if _, err := c.Open(nonce, sealed); err != ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestWrongKeyFailsAuthentication(t *testing.T) {
	nonce := randBytes(NonceSize)
	c1, _ := New(randBytes(32))
	c2, _ := New(randBytes(32))
	sealed, err := c1.Seal(nonce, []byte("hello world"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := c2.Open(nonce, sealed); err != ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestPlaintextTooLargeRejected(t *testing.T) {
	c, _ := New(randBytes(32))
	nonce := randBytes(NonceSize)
	if _, err := c.Seal(nonce, make([]byte, MaxPlaintextLen+1)); err == nil {
		t.Fatal("expected error for over-size plaintext")
	}
}
