// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package dataenc

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/kgiusti/go-hybridcrypt/envelope"
)

type staticKeyUnwrapper struct {
	key []byte
	err error
}

func (s staticKeyUnwrapper) DecryptKey(envelope.EncryptionInfo) ([]byte, error) {
	return s.key, s.err
}

func TestEncryptDecryptRoundTripSmallMessage(t *testing.T) {
	enc, err := NewEncryptor(Options{StreamCount: 2})
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	plaintext := []byte("hello hybrid world")
	ct, err := enc.EncryptData(plaintext, 0)
	if err != nil {
		t.Fatalf("EncryptData: %v", err)
	}
	if bytes.Equal(ct, plaintext) {
		t.Fatal("expected ciphertext to differ from plaintext")
	}

	dec, err := FromEncryptionInfo(infoFor(enc), staticKeyUnwrapper{key: enc.DataKey()})
	if err != nil {
		t.Fatalf("FromEncryptionInfo: %v", err)
	}
	if dec == nil {
		t.Fatal("expected a non-nil decryptor")
	}
	pt, err := dec.DecryptData(ct, 0)
	if err != nil {
		t.Fatalf("DecryptData: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", pt, plaintext)
	}
}

func TestEncryptDecryptRoundTripLargeMessageChunked(t *testing.T) {
	enc, err := NewEncryptor(Options{})
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	plaintext := make([]byte, 1<<20) // 1 MiB, exceeds a single CCM invocation
	if _, err := io.ReadFull(rand.Reader, plaintext); err != nil {
		t.Fatalf("rand: %v", err)
	}
	ct, err := enc.EncryptData(plaintext, 0)
	if err != nil {
		t.Fatalf("EncryptData: %v", err)
	}

	dec, err := FromEncryptionInfo(infoFor(enc), staticKeyUnwrapper{key: enc.DataKey()})
	if err != nil {
		t.Fatalf("FromEncryptionInfo: %v", err)
	}
	pt, err := dec.DecryptData(ct, 0)
	if err != nil {
		t.Fatalf("DecryptData: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatal("1 MiB round trip mismatch")
	}
}

func TestEmptyPlaintextRoundTrips(t *testing.T) {
	enc, err := NewEncryptor(Options{})
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	ct, err := enc.EncryptData(nil, 0)
	if err != nil {
		t.Fatalf("EncryptData: %v", err)
	}
	dec, err := FromEncryptionInfo(infoFor(enc), staticKeyUnwrapper{key: enc.DataKey()})
	if err != nil {
		t.Fatalf("FromEncryptionInfo: %v", err)
	}
	pt, err := dec.DecryptData(ct, 0)
	if err != nil {
		t.Fatalf("DecryptData: %v", err)
	}
	if len(pt) != 0 {
		t.Fatalf("expected empty plaintext, got %d bytes", len(pt))
	}
}

func TestWrongStreamIndexFailsAuthentication(t *testing.T) {
	enc, err := NewEncryptor(Options{StreamCount: 2})
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	plaintext := []byte("stream zero secret")
	ct, err := enc.EncryptData(plaintext, 0)
	if err != nil {
		t.Fatalf("EncryptData: %v", err)
	}
	dec, err := FromEncryptionInfo(infoFor(enc), staticKeyUnwrapper{key: enc.DataKey()})
	if err != nil {
		t.Fatalf("FromEncryptionInfo: %v", err)
	}
	if _, err := dec.DecryptData(ct, 1); err != ErrInvalidCiphertext {
		t.Fatalf("expected ErrInvalidCiphertext for wrong stream index, got %v", err)
	}
}

func TestTamperedCiphertextRejected(t *testing.T) {
	enc, err := NewEncryptor(Options{})
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	ct, err := enc.EncryptData([]byte("authenticate me"), 0)
	if err != nil {
		t.Fatalf("EncryptData: %v", err)
	}
	ct[len(ct)-1] ^= 0xFF

	dec, err := FromEncryptionInfo(infoFor(enc), staticKeyUnwrapper{key: enc.DataKey()})
	if err != nil {
		t.Fatalf("FromEncryptionInfo: %v", err)
	}
	if _, err := dec.DecryptData(ct, 0); err != ErrInvalidCiphertext {
		t.Fatalf("expected ErrInvalidCiphertext for tampered ciphertext, got %v", err)
	}
}

func TestFromEncryptionInfoReturnsNilWhenKeyUnwrapperHasNoMatch(t *testing.T) {
	enc, err := NewEncryptor(Options{})
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	dec, err := FromEncryptionInfo(infoFor(enc), staticKeyUnwrapper{key: nil})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if dec != nil {
		t.Fatal("expected a nil decryptor when the key unwrapper has no matching entry")
	}
}

func TestUnencryptedModePassesThroughUnchanged(t *testing.T) {
	enc, err := NewEncryptor(Options{Mode: envelope.Unencrypted})
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	plaintext := []byte("plainly visible")
	ct, err := enc.EncryptData(plaintext, 0)
	if err != nil {
		t.Fatalf("EncryptData: %v", err)
	}
	if !bytes.Equal(ct, plaintext) {
		t.Fatal("expected Unencrypted mode to pass data through unchanged")
	}

	dec, err := FromEncryptionInfo(infoFor(enc), staticKeyUnwrapper{})
	if err != nil {
		t.Fatalf("FromEncryptionInfo: %v", err)
	}
	pt, err := dec.DecryptData(ct, 0)
	if err != nil {
		t.Fatalf("DecryptData: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatal("Unencrypted round trip mismatch")
	}
}

func TestStreamWriteReadRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(Options{})
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	plaintext := make([]byte, 200000) // spans multiple chunks
	if _, err := io.ReadFull(rand.Reader, plaintext); err != nil {
		t.Fatalf("rand: %v", err)
	}

	var wire bytes.Buffer
	w, err := enc.OpenEncryptionWriteStream(&wire, 0, false)
	if err != nil {
		t.Fatalf("OpenEncryptionWriteStream: %v", err)
	}
	if _, err := w.Write(plaintext[:100000]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Write(plaintext[100000:]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	dec, err := FromEncryptionInfo(infoFor(enc), staticKeyUnwrapper{key: enc.DataKey()})
	if err != nil {
		t.Fatalf("FromEncryptionInfo: %v", err)
	}
	var out bytes.Buffer
	dw, err := dec.OpenDecryptionWriteStream(&out, 0, false)
	if err != nil {
		t.Fatalf("OpenDecryptionWriteStream: %v", err)
	}
	if _, err := dw.Write(wire.Bytes()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := dw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !bytes.Equal(out.Bytes(), plaintext) {
		t.Fatal("stream round trip mismatch")
	}
}

func infoFor(e *DataEncryptor) envelope.EncryptionInfo {
	return envelope.EncryptionInfo{DataMode: e.Mode(), IVs: e.IVs()}
}
