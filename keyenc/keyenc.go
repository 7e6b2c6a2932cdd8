// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

// Package keyenc implements the per-recipient key-wrapping half of the
// scheme: RSA-PKCS1 direct wrap for RSA recipients, and
// ECDH+KDF2(SHA-256)+AES-256-CCM wrap for EC recipients, with an optional
// shared-ephemeral-key-pair optimization across compatible EC recipients.
package keyenc

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/kgiusti/go-hybridcrypt/envelope"
	"github.com/kgiusti/go-hybridcrypt/internal/ccm"
	"github.com/kgiusti/go-hybridcrypt/internal/kdf2"
	"github.com/kgiusti/go-hybridcrypt/keyid"
	"github.com/kgiusti/go-hybridcrypt/keys"
)

// ErrInvalidKeyCiphertext is returned when a wrapped data key fails to
// authenticate: wrong private key, wrong ephemeral public key, or a
// tampered EncryptedKey field.
var ErrInvalidKeyCiphertext = errors.New("keyenc: invalid wrapped key (authentication failed)")

// Recipient is one intended recipient of a wrapped data key.
type Recipient struct {
	ID        keyid.KeyIdentifier
	PublicKey keys.PublicKey
}

// Options configures a KeyEncryptor.
type Options struct {
	Random io.Reader
	// AllowSharedSenderKeyPair enables the optimization where every EC
	// recipient on the most common named curve shares one ephemeral sender
	// key pair; recipients on any other curve, or with explicit curve
	// parameters, each still get their own. Off by default: the
	// conservative behavior is a fresh ephemeral key per recipient.
	AllowSharedSenderKeyPair bool
}

// KeyEncryptor wraps a single shared data key for each configured
// recipient, choosing RSA-PKCS1 or ECDH+KDF2+AES-256-CCM per recipient's
// key type.
type KeyEncryptor struct {
	random     io.Reader
	recipients []Recipient
	allowShare bool
}

// NewKeyEncryptor constructs a KeyEncryptor for the given recipients.
func NewKeyEncryptor(recipients []Recipient, opts Options) (*KeyEncryptor, error) {
	if len(recipients) == 0 {
		return nil, errors.New("keyenc: at least one recipient is required")
	}
	random := opts.Random
	if random == nil {
		random = rand.Reader
	}
	return &KeyEncryptor{random: random, recipients: recipients, allowShare: opts.AllowSharedSenderKeyPair}, nil
}

// WrapDataKey wraps dataKey for every configured recipient, returning the
// per-recipient DataKeyInfo map and the shared ephemeral EC public key (nil
// if the shared-key optimization was not used). The caller combines these
// with the DataMode and IVs produced by the data encryptor to build the
// full EncryptionInfo.
func (e *KeyEncryptor) WrapDataKey(dataKey []byte) (map[keyid.KeyIdentifier]envelope.DataKeyInfo, []byte, error) {
	out := make(map[keyid.KeyIdentifier]envelope.DataKeyInfo, len(e.recipients))

	var ecRecipients []Recipient
	for _, r := range e.recipients {
		switch r.PublicKey.Type {
		case keys.RSA:
			ct, err := rsa.EncryptPKCS1v15(e.random, r.PublicKey.RSA, dataKey)
			if err != nil {
				return nil, nil, fmt.Errorf("keyenc: wrapping for %s: %w", r.ID, err)
			}
			out[r.ID] = envelope.DataKeyInfo{Mode: envelope.RSAPKCS1, EncryptedKey: ct}
		case keys.EC:
			ecRecipients = append(ecRecipients, r)
		default:
			return nil, nil, fmt.Errorf("keyenc: recipient %s has an unsupported key type", r.ID)
		}
	}

	if len(ecRecipients) == 0 {
		return out, nil, nil
	}

	sharedGroup, individualGroup := partitionByCanonicalCurve(ecRecipients)
	var sharedPub []byte
	if e.allowShare && len(sharedGroup) > 0 {
		canonical := sharedGroup[0].PublicKey.EC.Curve
		ephemeral, err := keys.GenerateEC(e.random, canonical)
		if err != nil {
			return nil, nil, fmt.Errorf("keyenc: generating shared ephemeral key: %w", err)
		}
		sharedPub = encodeECPublicKey(ephemeral.Public.EC)
		for _, r := range sharedGroup {
			entry, err := e.wrapForECRecipient(dataKey, ephemeral.Private.EC, sharedPub, r)
			if err != nil {
				return nil, nil, err
			}
			entry.RecipientMessagePublicKey = nil // carried at the message level instead
			out[r.ID] = entry
		}
	} else {
		individualGroup = append(individualGroup, sharedGroup...)
	}

	for _, r := range individualGroup {
		ephemeral, err := keys.GenerateEC(e.random, r.PublicKey.EC.Curve)
		if err != nil {
			return nil, nil, fmt.Errorf("keyenc: generating ephemeral key for %s: %w", r.ID, err)
		}
		pub := encodeECPublicKey(ephemeral.Public.EC)
		entry, err := e.wrapForECRecipient(dataKey, ephemeral.Private.EC, pub, r)
		if err != nil {
			return nil, nil, err
		}
		entry.RecipientMessagePublicKey = pub
		out[r.ID] = entry
	}

	return out, sharedPub, nil
}

// wrapForECRecipient performs one ECDH+KDF2+AES-256-CCM wrap using the
// given ephemeral private key (shared across recipients, or fresh to this
// one) against r's public key. Both the AES key and the CCM IV are derived
// from KDF2(agreement, ephemeralPubEncoded); no separate random nonce is
// used, since the per-recipient agreement already differs even when the
// ephemeral key pair is shared, keeping ciphertexts distinct.
func (e *KeyEncryptor) wrapForECRecipient(dataKey []byte, ephemeralPriv *ecdsa.PrivateKey, ephemeralPubEncoded []byte, r Recipient) (envelope.DataKeyInfo, error) {
	z, err := ecdh(ephemeralPriv, r.PublicKey.EC)
	if err != nil {
		return envelope.DataKeyInfo{}, fmt.Errorf("keyenc: ECDH with %s: %w", r.ID, err)
	}
	keyAndIV := kdf2.Derive(z, ephemeralPubEncoded, 32+ccm.NonceSize)
	wrapKey, iv := keyAndIV[:32], keyAndIV[32:]
	c, err := ccm.New(wrapKey)
	if err != nil {
		return envelope.DataKeyInfo{}, err
	}
	sealed, err := c.Seal(iv, dataKey)
	if err != nil {
		return envelope.DataKeyInfo{}, err
	}
	return envelope.DataKeyInfo{
		Mode:         envelope.ECDHKDF2SHA256AES256CCM,
		EncryptedKey: sealed,
	}, nil
}

// partitionByCanonicalCurve splits ecRecipients into the "shared group",
// all on the most common named curve among them, and the "individual
// group", everyone else. A key carrying explicit curve parameters rather
// than a named curve (Params().Name is empty) is never eligible for the
// shared group, even when its field matches the canonical curve's.
func partitionByCanonicalCurve(ecRecipients []Recipient) (shared, individual []Recipient) {
	counts := make(map[string]int)
	for _, r := range ecRecipients {
		if k, named := curveKey(r.PublicKey.EC); named {
			counts[k]++
		}
	}
	var canonical string
	best := 0
	for _, r := range ecRecipients {
		k, named := curveKey(r.PublicKey.EC)
		if named && counts[k] > best {
			best = counts[k]
			canonical = k
		}
	}
	for _, r := range ecRecipients {
		if k, named := curveKey(r.PublicKey.EC); named && k == canonical {
			shared = append(shared, r)
		} else {
			individual = append(individual, r)
		}
	}
	return shared, individual
}

// curveKey builds the grouping key (curve name and field byte length) and
// reports whether the curve is named at all.
func curveKey(pub *ecdsa.PublicKey) (string, bool) {
	p := pub.Curve.Params()
	if p.Name == "" {
		return "", false
	}
	return fmt.Sprintf("%s/%d", p.Name, (p.BitSize+7)/8), true
}

func ecdh(priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) ([]byte, error) {
	if priv.Curve != pub.Curve {
		return nil, errors.New("keyenc: ECDH requires matching curves")
	}
	x, _ := priv.Curve.ScalarMult(pub.X, pub.Y, priv.D.Bytes())
	if x == nil || x.Sign() == 0 {
		return nil, errors.New("keyenc: ECDH produced a degenerate shared secret")
	}
	byteLen := (priv.Curve.Params().BitSize + 7) / 8
	out := make([]byte, byteLen)
	x.FillBytes(out)
	return out, nil
}

func encodeECPublicKey(pub *ecdsa.PublicKey) []byte {
	byteLen := (pub.Curve.Params().BitSize + 7) / 8
	out := make([]byte, 1+2*byteLen)
	out[0] = 0x04
	pub.X.FillBytes(out[1 : 1+byteLen])
	pub.Y.FillBytes(out[1+byteLen : 1+2*byteLen])
	return out
}

func decodeECPublicKey(curve ecdsa.PublicKey, data []byte) (*ecdsa.PublicKey, error) {
	c := curve.Curve
	byteLen := (c.Params().BitSize + 7) / 8
	if len(data) != 1+2*byteLen || data[0] != 0x04 {
		return nil, errors.New("keyenc: malformed EC public key encoding")
	}
	x := new(big.Int).SetBytes(data[1 : 1+byteLen])
	y := new(big.Int).SetBytes(data[1+byteLen : 1+2*byteLen])
	if !c.IsOnCurve(x, y) {
		return nil, errors.New("keyenc: EC point is not on the expected curve")
	}
	return &ecdsa.PublicKey{Curve: c, X: x, Y: y}, nil
}

// KeyDecryptor unwraps the data key entry addressed to a single recipient
// identity using that recipient's private key.
type KeyDecryptor struct {
	id      keyid.KeyIdentifier
	private keys.PrivateKey
}

// NewKeyDecryptor constructs a KeyDecryptor for the recipient identified by
// id, holding private.
func NewKeyDecryptor(id keyid.KeyIdentifier, private keys.PrivateKey) *KeyDecryptor {
	return &KeyDecryptor{id: id, private: private}
}

// DecryptKey looks up this recipient's entry in info and unwraps it,
// returning (nil, nil) if info has no entry for this recipient. Satisfies
// dataenc.KeyUnwrapper.
func (d *KeyDecryptor) DecryptKey(info envelope.EncryptionInfo) ([]byte, error) {
	entry, ok := info.DataKeys[d.id]
	if !ok {
		return nil, nil
	}
	return d.DecryptEntry(entry, info.SharedMessagePublicKey)
}

// DecryptEntry unwraps one DataKeyInfo entry directly, given the message's
// shared ephemeral public key (used when entry.RecipientMessagePublicKey is
// absent). Returns ErrInvalidKeyCiphertext on any authentication failure,
// never a silently-wrong result.
func (d *KeyDecryptor) DecryptEntry(entry envelope.DataKeyInfo, sharedMessagePublicKey []byte) ([]byte, error) {
	switch entry.Mode {
	case envelope.RSAPKCS1:
		if d.private.Type != keys.RSA {
			return nil, ErrInvalidKeyCiphertext
		}
		pt, err := rsa.DecryptPKCS1v15(rand.Reader, d.private.RSA, entry.EncryptedKey)
		if err != nil {
			return nil, ErrInvalidKeyCiphertext
		}
		return pt, nil
	case envelope.ECDHKDF2SHA256AES256CCM:
		if d.private.Type != keys.EC {
			return nil, ErrInvalidKeyCiphertext
		}
		ephemeralPubEncoded := entry.RecipientMessagePublicKey
		if ephemeralPubEncoded == nil {
			ephemeralPubEncoded = sharedMessagePublicKey
		}
		if ephemeralPubEncoded == nil {
			return nil, errors.New("keyenc: no ephemeral public key available to unwrap this entry")
		}
		ephemeralPub, err := decodeECPublicKey(d.private.EC.PublicKey, ephemeralPubEncoded)
		if err != nil {
			return nil, ErrInvalidKeyCiphertext
		}
		z, err := ecdh(d.private.EC, ephemeralPub)
		if err != nil {
			return nil, ErrInvalidKeyCiphertext
		}
		keyAndIV := kdf2.Derive(z, ephemeralPubEncoded, 32+ccm.NonceSize)
		wrapKey, iv := keyAndIV[:32], keyAndIV[32:]
		c, err := ccm.New(wrapKey)
		if err != nil {
			return nil, err
		}
		pt, err := c.Open(iv, entry.EncryptedKey)
		if err != nil {
			return nil, ErrInvalidKeyCiphertext
		}
		return pt, nil
	default:
		return nil, fmt.Errorf("keyenc: unknown key wrap mode %q", entry.Mode)
	}
}
