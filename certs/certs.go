// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

// Package certs provides value-typed wrappers around X.509 certificates
// and CSRs: issuer/subject DN, validity window, public key, serial,
// SKID/AKID, key-usage bits and CA-basic-constraints, plus generation,
// self-signing, CSR issuance and signature verification against a bare
// trusted public key.
package certs

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"io"
	"math/big"
	"time"

	"github.com/kgiusti/go-hybridcrypt/keys"
)

// CertificateCheckOutcome is the closed result of verifying a certificate's
// signature and validity window against a trusted public key.
type CertificateCheckOutcome int

const (
	OtherError CertificateCheckOutcome = iota
	Valid
	InvalidSignature
	OutOfValidityPeriod
)

func (o CertificateCheckOutcome) String() string {
	switch o {
	case Valid:
		return "Valid"
	case InvalidSignature:
		return "InvalidSignature"
	case OutOfValidityPeriod:
		return "OutOfValidityPeriod"
	default:
		return "OtherError"
	}
}

// CAConstraint mirrors the X.509 BasicConstraints extension.
type CAConstraint struct {
	IsCA    bool
	PathLen *int
}

// Validity describes a certificate's [NotBefore, NotAfter) window, either
// as an explicit pair or as a duration measured from From (defaulting to
// now when From is zero).
type Validity struct {
	From     time.Time
	Until    time.Time
	Duration time.Duration
}

func (v Validity) resolve(now time.Time) (notBefore, notAfter time.Time) {
	notBefore = v.From
	if notBefore.IsZero() {
		notBefore = now
	}
	notBefore = notBefore.UTC()
	if !v.Until.IsZero() {
		return notBefore, v.Until.UTC()
	}
	return notBefore, notBefore.Add(v.Duration).UTC()
}

// Certificate is an immutable value wrapper around a parsed X.509
// certificate.
type Certificate struct {
	x *x509.Certificate
}

// FromX509 wraps an already-parsed *x509.Certificate.
func FromX509(c *x509.Certificate) Certificate { return Certificate{x: c} }

// X509 exposes the underlying *x509.Certificate for interop with stdlib
// APIs (e.g. tls.Config, x509.CertPool).
func (c Certificate) X509() *x509.Certificate { return c.x }

// Raw returns the DER encoding of the certificate.
func (c Certificate) Raw() []byte { return c.x.Raw }

// IssuerDN returns the certificate's issuer distinguished name.
func (c Certificate) IssuerDN() DistinguishedName { return fromPkixName(c.x.Issuer) }

// SubjectDN returns the certificate's subject distinguished name.
func (c Certificate) SubjectDN() DistinguishedName { return fromPkixName(c.x.Subject) }

// SerialNumber returns the certificate's serial number.
func (c Certificate) SerialNumber() *big.Int { return c.x.SerialNumber }

// NotBefore returns the start of the validity window, in UTC.
func (c Certificate) NotBefore() time.Time { return c.x.NotBefore.UTC() }

// NotAfter returns the end of the validity window, in UTC.
func (c Certificate) NotAfter() time.Time { return c.x.NotAfter.UTC() }

// PublicKey returns the subject's public key.
func (c Certificate) PublicKey() (keys.PublicKey, error) {
	return publicKeyFromAny(c.x.PublicKey)
}

// SubjectKeyId returns the SKID extension value, or nil if absent.
func (c Certificate) SubjectKeyId() []byte { return c.x.SubjectKeyId }

// AuthorityKeyId returns the AKID extension value, or nil if absent.
func (c Certificate) AuthorityKeyId() []byte { return c.x.AuthorityKeyId }

// KeyUsage returns the key-usage bitmask.
func (c Certificate) KeyUsage() x509.KeyUsage { return c.x.KeyUsage }

// CAConstraint returns the basic-constraints value, or nil if the
// extension is absent.
func (c Certificate) CAConstraint() *CAConstraint {
	if !c.x.BasicConstraintsValid {
		return nil
	}
	cc := &CAConstraint{IsCA: c.x.IsCA}
	if c.x.MaxPathLen > 0 || c.x.MaxPathLenZero {
		pl := c.x.MaxPathLen
		cc.PathLen = &pl
	}
	return cc
}

// HasKeyUsageExtension reports whether the certificate carries an explicit
// key-usage extension at all, as distinct from a zero bitmask.
func (c Certificate) HasKeyUsageExtension() bool {
	for _, e := range c.x.Extensions {
		if e.Id.Equal(oidExtKeyUsage) {
			return true
		}
	}
	return false
}

// Equal reports byte-for-byte DER equality.
func (c Certificate) Equal(o Certificate) bool {
	return bytes.Equal(c.x.Raw, o.x.Raw)
}

// GenerateParams configures Generate.
type GenerateParams struct {
	IssuerDN             DistinguishedName
	SignerPrivateKey     keys.PrivateKey
	SubjectDN            DistinguishedName
	SubjectPublicKey     keys.PublicKey
	Validity             Validity
	Serial               *big.Int
	Random               io.Reader
	AuthorityKeyId       []byte
	GenerateSubjectKeyId bool
	KeyUsages            x509.KeyUsage
	CAConstraint         *CAConstraint
	SignatureDigest      crypto.Hash // zero value defaults to SHA-256
}

// Generate builds and signs a new certificate. When SignerPrivateKey and
// SubjectPublicKey describe the same key, the result is self-signed.
func Generate(p GenerateParams) (Certificate, error) {
	random := p.Random
	if random == nil {
		random = rand.Reader
	}
	digest := p.SignatureDigest
	if digest == 0 {
		digest = crypto.SHA256
	}
	sigAlg, err := signatureAlgorithmFor(p.SignerPrivateKey.Type, digest)
	if err != nil {
		return Certificate{}, err
	}
	serial := p.Serial
	if serial == nil {
		return Certificate{}, errors.New("certs: serial number is required")
	}

	notBefore, notAfter := p.Validity.resolve(time.Now().UTC())

	template := &x509.Certificate{
		SerialNumber:          serial,
		Issuer:                toPkixName(p.IssuerDN),
		Subject:               toPkixName(p.SubjectDN),
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		SignatureAlgorithm:    sigAlg,
		KeyUsage:              p.KeyUsages,
		BasicConstraintsValid: p.CAConstraint != nil,
	}
	if p.CAConstraint != nil {
		template.IsCA = p.CAConstraint.IsCA
		if p.CAConstraint.PathLen != nil {
			template.MaxPathLen = *p.CAConstraint.PathLen
			template.MaxPathLenZero = *p.CAConstraint.PathLen == 0
		} else {
			template.MaxPathLenZero = false
			template.MaxPathLen = -1
		}
	}
	if p.AuthorityKeyId != nil {
		template.AuthorityKeyId = p.AuthorityKeyId
	}
	if p.GenerateSubjectKeyId {
		skid, err := subjectKeyId(p.SubjectPublicKey)
		if err != nil {
			return Certificate{}, err
		}
		template.SubjectKeyId = skid
	}

	// x509.CreateCertificate takes the issuer DN from parent.Subject, not
	// template.Issuer (which the stdlib accepts but never reads). A distinct
	// parent carrying IssuerDN is required whenever the signer is not the
	// subject (CA-issued certificates).
	parent := &x509.Certificate{Subject: toPkixName(p.IssuerDN)}
	der, err := x509.CreateCertificate(random, template, parent, p.SubjectPublicKey.Crypto(), p.SignerPrivateKey.Crypto())
	if err != nil {
		return Certificate{}, err
	}
	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return Certificate{}, err
	}
	return Certificate{x: parsed}, nil
}

// Verify checks the certificate's signature against trustedPublicKey and
// its validity window against the current UTC instant.
func (c Certificate) Verify(trustedPublicKey keys.PublicKey) CertificateCheckOutcome {
	if c.x == nil {
		return OtherError
	}
	pub := trustedPublicKey.Crypto()
	if pub == nil {
		return OtherError
	}
	// A bare parent with no version, basic constraints or key usage set
	// makes CheckSignatureFrom a plain signature check under pub.
	parent := &x509.Certificate{PublicKey: pub}
	switch trustedPublicKey.Type {
	case keys.RSA:
		parent.PublicKeyAlgorithm = x509.RSA
	case keys.EC:
		parent.PublicKeyAlgorithm = x509.ECDSA
	default:
		return OtherError
	}
	if err := c.x.CheckSignatureFrom(parent); err != nil {
		return InvalidSignature
	}
	now := time.Now().UTC()
	if now.Before(c.x.NotBefore.UTC()) || !now.Before(c.x.NotAfter.UTC()) {
		return OutOfValidityPeriod
	}
	return Valid
}

func publicKeyFromAny(pub crypto.PublicKey) (keys.PublicKey, error) {
	return keys.PublicFromAny(pub)
}
