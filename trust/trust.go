// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

// Package trust implements the two certificate-acceptance policies C5
// names: a bare-public-key validator and a CA-certificate validator with
// admission filtering over its trust anchors.
package trust

import (
	"bytes"
	"crypto/x509"
	"io"

	"github.com/kgiusti/go-hybridcrypt/certs"
	"github.com/kgiusti/go-hybridcrypt/keys"
	pemio "github.com/kgiusti/go-hybridcrypt/pem"
)

// Validator is the contract both implementations satisfy: decide whether
// a certificate should be accepted.
type Validator interface {
	Check(cert certs.Certificate) bool
}

// KeyOnlyValidator accepts a certificate iff it verifies against at least
// one of a held set of trusted public keys. It deliberately does not
// require any DN match between the certificate and the trusted key:
// holding one anchored signing key is the entire trust decision, so with
// multiple anchors a certificate may claim any issuer DN a trusted key
// has signed for.
type KeyOnlyValidator struct {
	trusted []keys.PublicKey
}

// NewKeyOnlyValidator builds a validator trusting exactly the given keys.
func NewKeyOnlyValidator(trustedKeys ...keys.PublicKey) *KeyOnlyValidator {
	return &KeyOnlyValidator{trusted: append([]keys.PublicKey(nil), trustedKeys...)}
}

// Check reports whether cert verifies against any trusted key.
func (v *KeyOnlyValidator) Check(cert certs.Certificate) bool {
	for _, pk := range v.trusted {
		if cert.Verify(pk) == certs.Valid {
			return true
		}
	}
	return false
}

// CACertValidatorOptions configures CACertValidator construction.
type CACertValidatorOptions struct {
	// IgnoreValidityPeriod skips the subject certificate's validity-window
	// check. Off by default.
	IgnoreValidityPeriod bool
}

// CACertValidator holds a set of CA certificates admitted from a PEM
// source, filtered to those that qualify as CA anchors, and validates
// subject certificates against them by AKID/SKID or issuer/subject DN
// matching.
type CACertValidator struct {
	anchors []certs.Certificate
	opts    CACertValidatorOptions
}

// NewCACertValidatorFromPEM reads CA certificates from r, admitting only
// those carrying isCA=true, KeyCertSign, and an explicit key-usage
// extension; every other PEM object in r is ignored. Admission failures
// silently drop the candidate.
func NewCACertValidatorFromPEM(r io.Reader, opts CACertValidatorOptions) (*CACertValidator, error) {
	objs, err := pemio.ReadAll(r, nil)
	v := &CACertValidator{opts: opts}
	for _, obj := range objs {
		if obj.Kind != pemio.KindCertificate {
			continue
		}
		if isAdmissibleCA(obj.Certificate) {
			v.anchors = append(v.anchors, obj.Certificate)
		}
	}
	return v, err
}

// NewCACertValidator builds a validator directly from already-parsed
// certificates, applying the same admission filter.
func NewCACertValidator(candidates []certs.Certificate, opts CACertValidatorOptions) *CACertValidator {
	v := &CACertValidator{opts: opts}
	for _, c := range candidates {
		if isAdmissibleCA(c) {
			v.anchors = append(v.anchors, c)
		}
	}
	return v
}

func isAdmissibleCA(c certs.Certificate) bool {
	cc := c.CAConstraint()
	if cc == nil || !cc.IsCA {
		return false
	}
	if !c.HasKeyUsageExtension() {
		return false
	}
	return c.KeyUsage()&x509.KeyUsageCertSign != 0
}

// Anchors returns the admitted CA certificates.
func (v *CACertValidator) Anchors() []certs.Certificate {
	return append([]certs.Certificate(nil), v.anchors...)
}

// Check validates cert against this validator's trust anchors: anchor
// selection by AKID (or issuer DN when no AKID is present), then signature
// and validity-window verification. Verify only ever reports
// OutOfValidityPeriod when the signature itself checked out, so treating
// that outcome as acceptable under IgnoreValidityPeriod cannot mask a bad
// signature.
func (v *CACertValidator) Check(cert certs.Certificate) bool {
	anchor, ok := v.selectAnchor(cert)
	if !ok {
		return false
	}
	outcome := cert.Verify(anchorPublicKeyOrZero(anchor))
	if v.opts.IgnoreValidityPeriod && outcome == certs.OutOfValidityPeriod {
		return true
	}
	return outcome == certs.Valid
}

func anchorPublicKeyOrZero(c certs.Certificate) keys.PublicKey {
	pk, err := c.PublicKey()
	if err != nil {
		return keys.PublicKey{}
	}
	return pk
}

func (v *CACertValidator) selectAnchor(cert certs.Certificate) (certs.Certificate, bool) {
	if akid := cert.AuthorityKeyId(); len(akid) > 0 {
		for _, a := range v.anchors {
			if bytes.Equal(a.SubjectKeyId(), akid) {
				return a, true
			}
		}
		return certs.Certificate{}, false
	}
	for _, a := range v.anchors {
		if cert.IssuerDN().Equal(a.SubjectDN()) {
			return a, true
		}
	}
	return certs.Certificate{}, false
}
