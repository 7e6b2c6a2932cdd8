// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

// Package pem reads and writes heterogeneous sequences of keys,
// certificates and CSRs as RFC 7468 textual PEM, dispatching by runtime
// kind on write and preserving free-form comment lines on read.
package pem

import (
	"bytes"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"github.com/youmark/pkcs8"

	"github.com/kgiusti/go-hybridcrypt/certs"
	"github.com/kgiusti/go-hybridcrypt/keys"
)

// Labels accepted on read and emitted on write.
const (
	LabelPublicKey           = "PUBLIC KEY"
	LabelPrivateKey          = "PRIVATE KEY"
	LabelEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	LabelCertificate         = "CERTIFICATE"
	LabelCertificateRequest  = "CERTIFICATE REQUEST"
)

// ObjectKind discriminates the runtime type carried by an Object.
type ObjectKind int

const (
	KindComment ObjectKind = iota
	KindPublicKey
	KindPrivateKey
	KindCertificate
	KindCertificateRequest
)

// Object is one element of a heterogeneous PEM sequence: either a
// standalone comment line (free text found between blocks) or a decoded
// key/certificate/CSR value.
type Object struct {
	Kind ObjectKind

	Comment string

	PublicKey keys.PublicKey
	// PrivateKey is populated for both PRIVATE KEY and ENCRYPTED PRIVATE
	// KEY blocks; WasEncrypted records which label produced it.
	PrivateKey   keys.PrivateKey
	WasEncrypted bool

	Certificate certs.Certificate
	CSR         certs.CSR
}

// PassphraseSource supplies the passphrase for encrypting or decrypting a
// private key PEM block.
type PassphraseSource func() ([]byte, error)

// StaticPassphrase wraps a fixed byte slice as a PassphraseSource.
func StaticPassphrase(p []byte) PassphraseSource {
	return func() ([]byte, error) { return p, nil }
}

// ReadAll decodes every PEM block and comment line from r, in order.
// A truncated or malformed block after n good objects returns the n
// already-decoded objects alongside the error, so callers keep the
// partial prefix.
func ReadAll(r io.Reader, passphrase PassphraseSource) ([]Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var objs []Object
	rest := data
	for {
		var block *pem.Block
		var comment []byte
		var malformed bool
		block, rest, comment, malformed = decodeNext(rest)
		if len(comment) > 0 {
			for _, line := range splitNonEmptyLines(comment) {
				objs = append(objs, Object{Kind: KindComment, Comment: line})
			}
		}
		if malformed {
			return objs, errors.New("pem: truncated or malformed PEM block")
		}
		if block == nil {
			return objs, nil
		}

		if !knownLabel(block.Type) {
			continue
		}
		obj, err := objectFromBlock(block, passphrase)
		if err != nil {
			return objs, fmt.Errorf("pem: decoding %q block: %w", block.Type, err)
		}
		objs = append(objs, obj)
	}
}

// decodeNext peels the leading comment text (everything before the next
// "-----BEGIN") off buf, then decodes the block itself. malformed is true
// when a BEGIN marker was found but encoding/pem could not decode a
// complete, well-formed block from it (truncated, bad base64, mismatched
// END line).
func decodeNext(buf []byte) (block *pem.Block, rest []byte, leadingComment []byte, malformed bool) {
	idx := bytes.Index(buf, []byte("-----BEGIN"))
	if idx < 0 {
		return nil, nil, buf, false
	}
	leadingComment = buf[:idx]
	block, rest = pem.Decode(buf[idx:])
	if block == nil {
		return nil, nil, leadingComment, true
	}
	return block, rest, leadingComment, false
}

func splitNonEmptyLines(b []byte) []string {
	var out []string
	for _, line := range bytes.Split(b, []byte("\n")) {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			out = append(out, string(trimmed))
		}
	}
	return out
}

func objectFromBlock(block *pem.Block, passphrase PassphraseSource) (Object, error) {
	switch block.Type {
	case LabelPublicKey:
		any, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return Object{}, err
		}
		pub, err := keys.PublicFromAny(any)
		if err != nil {
			return Object{}, err
		}
		return Object{Kind: KindPublicKey, PublicKey: pub}, nil

	case LabelPrivateKey:
		any, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return Object{}, err
		}
		priv, err := keys.PrivateFromAny(any)
		if err != nil {
			return Object{}, err
		}
		return Object{Kind: KindPrivateKey, PrivateKey: priv}, nil

	case LabelEncryptedPrivateKey:
		if passphrase == nil {
			return Object{}, errors.New("pem: encrypted private key requires a passphrase source")
		}
		pass, err := passphrase()
		if err != nil {
			return Object{}, err
		}
		any, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, pass)
		if err != nil {
			return Object{}, err
		}
		priv, err := keys.PrivateFromAny(any)
		if err != nil {
			return Object{}, err
		}
		return Object{Kind: KindPrivateKey, PrivateKey: priv, WasEncrypted: true}, nil

	case LabelCertificate:
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return Object{}, err
		}
		return Object{Kind: KindCertificate, Certificate: certs.FromX509(cert)}, nil

	case LabelCertificateRequest:
		csr, err := x509.ParseCertificateRequest(block.Bytes)
		if err != nil {
			return Object{}, err
		}
		return Object{Kind: KindCertificateRequest, CSR: certs.CSRFromX509(csr)}, nil

	default:
		return Object{}, fmt.Errorf("pem: unrecognized block type %q", block.Type)
	}
}

// knownLabel reports whether a block label is one this package decodes.
// Blocks carrying any other label are skipped on read rather than treated
// as errors, so a bundle containing e.g. EC PARAMETERS still loads.
func knownLabel(label string) bool {
	switch label {
	case LabelPublicKey, LabelPrivateKey, LabelEncryptedPrivateKey,
		LabelCertificate, LabelCertificateRequest:
		return true
	}
	return false
}

// WriteOptions configures Write.
type WriteOptions struct {
	// Passphrase, when non-nil, causes written private keys to be
	// PBES2-encrypted (PBKDF2 + AES-256-CBC) as ENCRYPTED PRIVATE KEY
	// blocks rather than bare PRIVATE KEY blocks.
	Passphrase PassphraseSource
	Random     io.Reader
}

// Write encodes objs to w in order, dispatching each by its runtime kind.
func Write(w io.Writer, objs []Object, opts WriteOptions) error {
	random := opts.Random
	if random == nil {
		random = rand.Reader
	}
	for _, obj := range objs {
		if err := writeOne(w, obj, opts, random); err != nil {
			return err
		}
	}
	return nil
}

func writeOne(w io.Writer, obj Object, opts WriteOptions, random io.Reader) error {
	switch obj.Kind {
	case KindComment:
		_, err := fmt.Fprintf(w, "%s\n", obj.Comment)
		return err

	case KindPublicKey:
		der, err := x509.MarshalPKIXPublicKey(obj.PublicKey.Crypto())
		if err != nil {
			return err
		}
		return pem.Encode(w, &pem.Block{Type: LabelPublicKey, Bytes: der})

	case KindPrivateKey:
		der, err := x509.MarshalPKCS8PrivateKey(obj.PrivateKey.Crypto())
		if err != nil {
			return err
		}
		if opts.Passphrase == nil {
			return pem.Encode(w, &pem.Block{Type: LabelPrivateKey, Bytes: der})
		}
		pass, err := opts.Passphrase()
		if err != nil {
			return err
		}
		encDER, err := pkcs8.MarshalPrivateKey(obj.PrivateKey.Crypto(), pass, nil)
		if err != nil {
			return err
		}
		return pem.Encode(w, &pem.Block{Type: LabelEncryptedPrivateKey, Bytes: encDER})

	case KindCertificate:
		return pem.Encode(w, &pem.Block{Type: LabelCertificate, Bytes: obj.Certificate.Raw()})

	case KindCertificateRequest:
		return pem.Encode(w, &pem.Block{Type: LabelCertificateRequest, Bytes: obj.CSR.Raw()})

	default:
		return fmt.Errorf("pem: unknown object kind %d", obj.Kind)
	}
}

// FromKeyPair builds the [PublicKey, PrivateKey] pair of Objects for kp,
// in the order Write expects them (public first).
func FromKeyPair(kp keys.KeyPair) []Object {
	return []Object{
		{Kind: KindPublicKey, PublicKey: kp.Public},
		{Kind: KindPrivateKey, PrivateKey: kp.Private},
	}
}
