// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

// Package keyid implements the deterministic 33-byte key identifier that
// binds a recipient's public key to its wrapped data key: byte 0 is a type
// tag, bytes 1..32 are SHA-256 of a canonical encoding of the key.
package keyid

import (
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/kgiusti/go-hybridcrypt/keys"
)

// Length is the size in bytes of a KeyIdentifier.
const Length = 33

const (
	typeRSA byte = 0x01
	typeEC  byte = 0x02
)

// KeyIdentifier is the 33-byte content-addressed identifier of a public key.
type KeyIdentifier [Length]byte

// ErrInvalidFormat is returned by Parse for any malformed text form.
var ErrInvalidFormat = errors.New("keyid: invalid key identifier format")

// Compute derives the key identifier of a public key: RSA hashes the
// modulus in minimal big-endian form, EC hashes the uncompressed point
// encoding 0x04||X||Y with coordinates left-padded to the curve's field
// byte length.
func Compute(pub keys.PublicKey) (KeyIdentifier, error) {
	var id KeyIdentifier
	switch pub.Type {
	case keys.RSA:
		if pub.RSA == nil {
			return id, errors.New("keyid: nil RSA public key")
		}
		sum := sha256.Sum256(pub.RSA.N.Bytes())
		id[0] = typeRSA
		copy(id[1:], sum[:])
		return id, nil
	case keys.EC:
		if pub.EC == nil {
			return id, errors.New("keyid: nil EC public key")
		}
		enc, err := encodeUncompressedPoint(pub.EC.Curve, pub.EC.X, pub.EC.Y)
		if err != nil {
			return id, err
		}
		sum := sha256.Sum256(enc)
		id[0] = typeEC
		copy(id[1:], sum[:])
		return id, nil
	default:
		return id, errors.New("keyid: unknown key type")
	}
}

func encodeUncompressedPoint(curve elliptic.Curve, x, y *big.Int) ([]byte, error) {
	if x == nil || y == nil {
		return nil, errors.New("keyid: incomplete EC point")
	}
	byteLen := (curve.Params().BitSize + 7) / 8
	out := make([]byte, 1+2*byteLen)
	out[0] = 0x04
	x.FillBytes(out[1 : 1+byteLen])
	y.FillBytes(out[1+byteLen : 1+2*byteLen])
	return out, nil
}

// ToText renders the canonical text form: uppercase hex type byte, then
// eight colon-separated four-byte hex groups, e.g.
// "02:00112233:44556677:8899AABB:CCDDEEFF:00112233:44556677:8899AABB:CCDDEEFF".
func (id KeyIdentifier) ToText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%02X", id[0])
	for i := 0; i < 8; i++ {
		start := 1 + i*4
		b.WriteByte(':')
		b.WriteString(strings.ToUpper(hex.EncodeToString(id[start : start+4])))
	}
	return b.String()
}

func (id KeyIdentifier) String() string { return id.ToText() }

// Parse accepts the canonical text form in either case, rejecting wrong
// length, wrong colon count, non-hex characters, and unknown type prefixes.
func Parse(s string) (KeyIdentifier, error) {
	var id KeyIdentifier
	parts := strings.Split(s, ":")
	if len(parts) != 9 {
		return id, ErrInvalidFormat
	}
	typeBytes, err := hex.DecodeString(parts[0])
	if err != nil || len(typeBytes) != 1 {
		return id, ErrInvalidFormat
	}
	switch typeBytes[0] {
	case typeRSA, typeEC:
	default:
		return id, ErrInvalidFormat
	}
	id[0] = typeBytes[0]
	for i, part := range parts[1:] {
		if len(part) != 8 {
			return KeyIdentifier{}, ErrInvalidFormat
		}
		b, err := hex.DecodeString(part)
		if err != nil || len(b) != 4 {
			return KeyIdentifier{}, ErrInvalidFormat
		}
		copy(id[1+i*4:1+i*4+4], b)
	}
	return id, nil
}

// MarshalText implements encoding.TextMarshaler so a KeyIdentifier can be
// used directly as a JSON object key.
func (id KeyIdentifier) MarshalText() ([]byte, error) {
	return []byte(id.ToText()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *KeyIdentifier) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
