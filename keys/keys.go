// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

// Package keys represents the public/private key primitives the rest of
// the library builds on: a closed RSA/EC tagged union, generation,
// EC public-from-private derivation, and value equality.
package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"io"
)

// KeyType distinguishes the two supported asymmetric algorithms.
type KeyType int

const (
	Unknown KeyType = iota
	RSA
	EC
)

func (t KeyType) String() string {
	switch t {
	case RSA:
		return "RSA"
	case EC:
		return "EC"
	default:
		return "Unknown"
	}
}

// PublicKey is a tagged union of an RSA or EC public key.
type PublicKey struct {
	Type KeyType
	RSA  *rsa.PublicKey
	EC   *ecdsa.PublicKey
}

// PrivateKey is a tagged union of an RSA or EC private key.
type PrivateKey struct {
	Type KeyType
	RSA  *rsa.PrivateKey
	EC   *ecdsa.PrivateKey
}

// KeyPair is a matched public/private key of the same type.
type KeyPair struct {
	Public  PublicKey
	Private PrivateKey
}

// Crypto returns the key as a crypto.PublicKey for use with stdlib APIs.
func (p PublicKey) Crypto() crypto.PublicKey {
	switch p.Type {
	case RSA:
		return p.RSA
	case EC:
		return p.EC
	default:
		return nil
	}
}

// Crypto returns the key as a crypto.PrivateKey (crypto.Signer) for use
// with stdlib APIs.
func (p PrivateKey) Crypto() crypto.Signer {
	switch p.Type {
	case RSA:
		return p.RSA
	case EC:
		return p.EC
	default:
		return nil
	}
}

// Equal reports whether two public keys represent the same value.
func (p PublicKey) Equal(o PublicKey) bool {
	if p.Type != o.Type {
		return false
	}
	switch p.Type {
	case RSA:
		if p.RSA == nil || o.RSA == nil {
			return p.RSA == o.RSA
		}
		return p.RSA.Equal(o.RSA)
	case EC:
		if p.EC == nil || o.EC == nil {
			return p.EC == o.EC
		}
		return p.EC.Equal(o.EC)
	default:
		return false
	}
}

// Equal reports whether two private keys represent the same value.
func (p PrivateKey) Equal(o PrivateKey) bool {
	if p.Type != o.Type {
		return false
	}
	switch p.Type {
	case RSA:
		if p.RSA == nil || o.RSA == nil {
			return p.RSA == o.RSA
		}
		return p.RSA.Equal(o.RSA)
	case EC:
		if p.EC == nil || o.EC == nil {
			return p.EC == o.EC
		}
		return p.EC.Equal(o.EC)
	default:
		return false
	}
}

// PublicOf returns the public half of a key pair.
func PublicOf(sk PrivateKey) (PublicKey, error) {
	switch sk.Type {
	case RSA:
		if sk.RSA == nil {
			return PublicKey{}, errors.New("keys: nil RSA private key")
		}
		return PublicKey{Type: RSA, RSA: &sk.RSA.PublicKey}, nil
	case EC:
		if sk.EC == nil {
			return PublicKey{}, errors.New("keys: nil EC private key")
		}
		return PublicKey{Type: EC, EC: &sk.EC.PublicKey}, nil
	default:
		return PublicKey{}, errors.New("keys: unknown key type")
	}
}

// DerivePublic recomputes Q = d*G for an EC private key directly from the
// scalar, rather than trusting a possibly-absent cached public point. It is
// the operation required when a key pair must be rebuilt from a private key
// alone (e.g. a loaded SEC1 key whose public coordinates were dropped).
func DerivePublic(sk PrivateKey) (PublicKey, error) {
	switch sk.Type {
	case RSA:
		return PublicOf(sk)
	case EC:
		if sk.EC == nil {
			return PublicKey{}, errors.New("keys: nil EC private key")
		}
		curve := sk.EC.Curve
		x, y := curve.ScalarBaseMult(sk.EC.D.Bytes())
		return PublicKey{Type: EC, EC: &ecdsa.PublicKey{Curve: curve, X: x, Y: y}}, nil
	default:
		return PublicKey{}, errors.New("keys: unknown key type")
	}
}

// GenerateRSA generates a fresh RSA key pair of the given modulus bit size.
func GenerateRSA(random io.Reader, bits int) (KeyPair, error) {
	if random == nil {
		random = rand.Reader
	}
	sk, err := rsa.GenerateKey(random, bits)
	if err != nil {
		return KeyPair{}, err
	}
	priv := PrivateKey{Type: RSA, RSA: sk}
	pub, _ := PublicOf(priv)
	return KeyPair{Public: pub, Private: priv}, nil
}

// GenerateEC generates a fresh EC key pair on the given curve.
func GenerateEC(random io.Reader, curve elliptic.Curve) (KeyPair, error) {
	if random == nil {
		random = rand.Reader
	}
	sk, err := ecdsa.GenerateKey(curve, random)
	if err != nil {
		return KeyPair{}, err
	}
	priv := PrivateKey{Type: EC, EC: sk}
	pub, _ := PublicOf(priv)
	return KeyPair{Public: pub, Private: priv}, nil
}

// PublicFromAny wraps the result of x509.ParsePKIXPublicKey (or any
// crypto.PublicKey of a supported concrete type) as a tagged PublicKey.
func PublicFromAny(pub crypto.PublicKey) (PublicKey, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return PublicKey{Type: RSA, RSA: k}, nil
	case *ecdsa.PublicKey:
		return PublicKey{Type: EC, EC: k}, nil
	default:
		return PublicKey{}, errors.New("keys: unsupported public key type")
	}
}

// PrivateFromAny wraps the result of x509.ParsePKCS8PrivateKey (or any
// crypto private key of a supported concrete type) as a tagged PrivateKey.
func PrivateFromAny(priv any) (PrivateKey, error) {
	switch k := priv.(type) {
	case *rsa.PrivateKey:
		return PrivateKey{Type: RSA, RSA: k}, nil
	case *ecdsa.PrivateKey:
		return PrivateKey{Type: EC, EC: k}, nil
	default:
		return PrivateKey{}, errors.New("keys: unsupported private key type")
	}
}
