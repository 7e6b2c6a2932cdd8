// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

// Package envelope carries the value-typed metadata record that binds a
// hybrid-encrypted message together: data mode, per-stream IVs, the
// per-recipient wrapped keys, and an optional shared ephemeral EC public
// key.
package envelope

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kgiusti/go-hybridcrypt/keyid"
)

// DataMode names the stream-encryption algorithm.
type DataMode string

const (
	AES256CCM   DataMode = "AES_256_CCM"
	Unencrypted DataMode = "Unencrypted"
)

// KeyWrapMode names the key-wrapping algorithm used for one recipient.
type KeyWrapMode string

const (
	RSAPKCS1                KeyWrapMode = "RSA_PKCS1"
	ECDHKDF2SHA256AES256CCM KeyWrapMode = "ECDH_KDF2_SHA256_AES_256_CCM"
)

// IVSize is the fixed AES-256-CCM initialization-vector length in bytes.
const IVSize = 13

// DataKeyInfo is the per-recipient entry of an EncryptionInfo: how the
// shared data key was wrapped for one recipient, plus that recipient's
// own ephemeral EC public key when it could not use the message-wide
// shared ephemeral key.
type DataKeyInfo struct {
	Mode                      KeyWrapMode
	EncryptedKey              []byte
	RecipientMessagePublicKey []byte // nil unless a per-recipient ephemeral key was used
}

type dataKeyInfoJSON struct {
	Mode             KeyWrapMode `json:"Mode"`
	EncryptedKey     string      `json:"EncryptedKey"`
	MessagePublicKey string      `json:"MessagePublicKey,omitempty"`
}

// MarshalJSON encodes EncryptedKey/RecipientMessagePublicKey as Base64
// strings.
func (d DataKeyInfo) MarshalJSON() ([]byte, error) {
	j := dataKeyInfoJSON{
		Mode:         d.Mode,
		EncryptedKey: base64.StdEncoding.EncodeToString(d.EncryptedKey),
	}
	if d.RecipientMessagePublicKey != nil {
		j.MessagePublicKey = base64.StdEncoding.EncodeToString(d.RecipientMessagePublicKey)
	}
	return json.Marshal(j)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (d *DataKeyInfo) UnmarshalJSON(data []byte) error {
	var j dataKeyInfoJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	key, err := base64.StdEncoding.DecodeString(j.EncryptedKey)
	if err != nil {
		return fmt.Errorf("envelope: decoding EncryptedKey: %w", err)
	}
	d.Mode = j.Mode
	d.EncryptedKey = key
	d.RecipientMessagePublicKey = nil
	if j.MessagePublicKey != "" {
		pub, err := base64.StdEncoding.DecodeString(j.MessagePublicKey)
		if err != nil {
			return fmt.Errorf("envelope: decoding MessagePublicKey: %w", err)
		}
		d.RecipientMessagePublicKey = pub
	}
	return nil
}

// EncryptionInfo is the complete metadata record a sender produces and a
// recipient consumes to decrypt a multi-stream, multi-recipient message.
type EncryptionInfo struct {
	DataMode DataMode
	IVs      [][]byte
	DataKeys map[keyid.KeyIdentifier]DataKeyInfo
	// SharedMessagePublicKey is the one ephemeral EC public key shared by
	// every "compatible" EC recipient of this message, or nil when none
	// was used (Unencrypted mode, RSA-only recipients, or an
	// individual-group-only recipient set).
	SharedMessagePublicKey []byte
}

// encryptionInfoJSON mirrors EncryptionInfo's JSON shape. DataKeys is keyed
// by keyid.KeyIdentifier directly: encoding/json marshals map keys that
// implement encoding.TextMarshaler via their text form automatically, which
// is exactly the key identifier's canonical text form.
type encryptionInfoJSON struct {
	DataMode         DataMode                            `json:"DataMode"`
	IVs              []string                            `json:"IVs"`
	DataKeys         map[keyid.KeyIdentifier]DataKeyInfo `json:"DataKeys"`
	MessagePublicKey string                              `json:"MessagePublicKey,omitempty"`
}

// MarshalJSON encodes IVs and the shared ephemeral key as Base64 strings
// and DataKeys as an object keyed by the key identifier's text form.
func (e EncryptionInfo) MarshalJSON() ([]byte, error) {
	j := encryptionInfoJSON{
		DataMode: e.DataMode,
		IVs:      make([]string, len(e.IVs)),
		DataKeys: e.DataKeys,
	}
	for i, iv := range e.IVs {
		j.IVs[i] = base64.StdEncoding.EncodeToString(iv)
	}
	if e.SharedMessagePublicKey != nil {
		j.MessagePublicKey = base64.StdEncoding.EncodeToString(e.SharedMessagePublicKey)
	}
	return json.Marshal(j)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *EncryptionInfo) UnmarshalJSON(data []byte) error {
	var j encryptionInfoJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	ivs := make([][]byte, len(j.IVs))
	for i, s := range j.IVs {
		iv, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("envelope: decoding IVs[%d]: %w", i, err)
		}
		ivs[i] = iv
	}
	e.DataMode = j.DataMode
	e.IVs = ivs
	e.DataKeys = j.DataKeys
	e.SharedMessagePublicKey = nil
	if j.MessagePublicKey != "" {
		pub, err := base64.StdEncoding.DecodeString(j.MessagePublicKey)
		if err != nil {
			return fmt.Errorf("envelope: decoding MessagePublicKey: %w", err)
		}
		e.SharedMessagePublicKey = pub
	}
	return nil
}

// Validate checks the record's structural invariants: IV count matches
// streamCount, Unencrypted mode carries no data keys or shared ephemeral
// key, AES-256-CCM mode's IVs are all 13 bytes and pairwise distinct.
func (e EncryptionInfo) Validate(streamCount int) error {
	if len(e.IVs) != streamCount {
		return fmt.Errorf("envelope: expected %d IVs, got %d", streamCount, len(e.IVs))
	}
	switch e.DataMode {
	case Unencrypted:
		if len(e.DataKeys) != 0 {
			return errors.New("envelope: Unencrypted mode must not carry data keys")
		}
		if e.SharedMessagePublicKey != nil {
			return errors.New("envelope: Unencrypted mode must not carry a shared ephemeral key")
		}
	case AES256CCM:
		seen := make(map[string]struct{}, len(e.IVs))
		for i, iv := range e.IVs {
			if len(iv) != IVSize {
				return fmt.Errorf("envelope: IVs[%d] must be %d bytes, got %d", i, IVSize, len(iv))
			}
			k := string(iv)
			if _, dup := seen[k]; dup {
				return fmt.Errorf("envelope: IVs[%d] duplicates an earlier IV", i)
			}
			seen[k] = struct{}{}
		}
	default:
		return fmt.Errorf("envelope: unknown data mode %q", e.DataMode)
	}
	return nil
}
