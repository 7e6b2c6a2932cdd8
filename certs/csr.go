// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package certs

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"io"
	"math/big"

	"github.com/kgiusti/go-hybridcrypt/keys"
)

// oidRequestedExtensions is a private extension OID carrying the bundle of
// requested-but-not-yet-issued attributes a CSR asks its issuer to apply:
// SKID/AKID request flags, requested key usage, requested CA constraint.
// Standard X.509 has no single extension for this, so it is bundled under
// one arbitrary enterprise OID rather than overloading 2.5.29.14/15/19
// (which name extensions of an *issued* certificate, not a request).
var oidRequestedExtensions = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311337, 1, 1}

type requestedCAConstraint struct {
	IsCA       bool
	HasPathLen bool
	PathLen    int
}

type requestedExtensions struct {
	SKID         bool
	AKID         bool
	HasKeyUsage  bool
	KeyUsage     int
	HasCAConstr  bool
	CAConstraint requestedCAConstraint
}

// CSR is an immutable value wrapper around a parsed PKCS#10 certificate
// signing request.
type CSR struct {
	x *x509.CertificateRequest
}

// CSRFromX509 wraps an already-parsed *x509.CertificateRequest.
func CSRFromX509(c *x509.CertificateRequest) CSR { return CSR{x: c} }

// X509 exposes the underlying *x509.CertificateRequest.
func (c CSR) X509() *x509.CertificateRequest { return c.x }

// Raw returns the DER encoding of the CSR.
func (c CSR) Raw() []byte { return c.x.Raw }

// SubjectDN returns the requested subject distinguished name.
func (c CSR) SubjectDN() DistinguishedName { return fromPkixName(c.x.Subject) }

// SubjectPublicKey returns the requested subject public key.
func (c CSR) SubjectPublicKey() (keys.PublicKey, error) {
	return publicKeyFromAny(c.x.PublicKey)
}

// Equal reports byte-for-byte DER equality.
func (c CSR) Equal(o CSR) bool { return bytes.Equal(c.x.Raw, o.x.Raw) }

func (c CSR) requested() requestedExtensions {
	for _, e := range c.x.Extensions {
		if e.Id.Equal(oidRequestedExtensions) {
			var re requestedExtensions
			if _, err := asn1.Unmarshal(e.Value, &re); err == nil {
				return re
			}
		}
	}
	return requestedExtensions{}
}

// RequestsSubjectKeyId reports whether the CSR asked its issuer to
// generate a SKID for the issued certificate.
func (c CSR) RequestsSubjectKeyId() bool { return c.requested().SKID }

// RequestsAuthorityKeyId reports whether the CSR asked its issuer to carry
// the issuer's SKID as AKID in the issued certificate.
func (c CSR) RequestsAuthorityKeyId() bool { return c.requested().AKID }

// RequestedKeyUsages returns the requested key-usage bitmask and whether
// one was requested at all.
func (c CSR) RequestedKeyUsages() (x509.KeyUsage, bool) {
	re := c.requested()
	return x509.KeyUsage(re.KeyUsage), re.HasKeyUsage
}

// RequestedCAConstraint returns the requested CA basic-constraint, or nil
// if none was requested.
func (c CSR) RequestedCAConstraint() *CAConstraint {
	re := c.requested()
	if !re.HasCAConstr {
		return nil
	}
	cc := &CAConstraint{IsCA: re.CAConstraint.IsCA}
	if re.CAConstraint.HasPathLen {
		pl := re.CAConstraint.PathLen
		cc.PathLen = &pl
	}
	return cc
}

// CSRGenerateParams configures GenerateCSR.
type CSRGenerateParams struct {
	SubjectDN             DistinguishedName
	SubjectKeyPair        keys.KeyPair
	RequestSubjectKeyId   bool
	RequestAuthorityKeyId bool
	RequestKeyUsages      *x509.KeyUsage
	RequestCAConstraint   *CAConstraint
	SignatureDigest       crypto.Hash
	Random                io.Reader
}

// GenerateCSR builds and self-signs (with the subject's own private key) a
// new certificate signing request.
func GenerateCSR(p CSRGenerateParams) (CSR, error) {
	random := p.Random
	if random == nil {
		random = rand.Reader
	}
	digest := p.SignatureDigest
	if digest == 0 {
		digest = crypto.SHA256
	}
	sigAlg, err := signatureAlgorithmFor(p.SubjectKeyPair.Private.Type, digest)
	if err != nil {
		return CSR{}, err
	}

	re := requestedExtensions{
		SKID: p.RequestSubjectKeyId,
		AKID: p.RequestAuthorityKeyId,
	}
	if p.RequestKeyUsages != nil {
		re.HasKeyUsage = true
		re.KeyUsage = int(*p.RequestKeyUsages)
	}
	if p.RequestCAConstraint != nil {
		re.HasCAConstr = true
		re.CAConstraint.IsCA = p.RequestCAConstraint.IsCA
		if p.RequestCAConstraint.PathLen != nil {
			re.CAConstraint.HasPathLen = true
			re.CAConstraint.PathLen = *p.RequestCAConstraint.PathLen
		}
	}

	var extraExt []pkix.Extension
	if re.SKID || re.AKID || re.HasKeyUsage || re.HasCAConstr {
		val, err := asn1.Marshal(re)
		if err != nil {
			return CSR{}, err
		}
		extraExt = append(extraExt, pkix.Extension{Id: oidRequestedExtensions, Value: val})
	}

	template := &x509.CertificateRequest{
		Subject:            toPkixName(p.SubjectDN),
		SignatureAlgorithm: sigAlg,
		ExtraExtensions:    extraExt,
	}

	der, err := x509.CreateCertificateRequest(random, template, p.SubjectKeyPair.Private.Crypto())
	if err != nil {
		return CSR{}, err
	}
	parsed, err := x509.ParseCertificateRequest(der)
	if err != nil {
		return CSR{}, err
	}
	return CSR{x: parsed}, nil
}

// CsrSigningPolicy configures GenerateCertificate's issuance decisions.
type CsrSigningPolicy struct {
	Random                  io.Reader
	SerialBits              int // default 128
	Validity                Validity
	AllowedKeyUsageMask     x509.KeyUsage
	CopyRequestedExtensions bool
	SignatureDigest         crypto.Hash
}

// GenerateCertificate issues a certificate for this CSR under
// issuerCertificate/issuerPrivateKey, per policy. The issued certificate's
// issuer DN is the issuer certificate's subject DN; its AKID, when
// included, is the issuer certificate's SKID.
func (c CSR) GenerateCertificate(issuerCertificate Certificate, issuerPrivateKey keys.PrivateKey, policy CsrSigningPolicy) (Certificate, error) {
	random := policy.Random
	if random == nil {
		random = rand.Reader
	}
	serialBits := policy.SerialBits
	if serialBits == 0 {
		serialBits = 128
	}
	serial, err := rand.Int(random, new(big.Int).Lsh(big.NewInt(1), uint(serialBits)))
	if err != nil {
		return Certificate{}, err
	}

	subjectPub, err := c.SubjectPublicKey()
	if err != nil {
		return Certificate{}, err
	}

	params := GenerateParams{
		IssuerDN:         issuerCertificate.SubjectDN(),
		SignerPrivateKey: issuerPrivateKey,
		SubjectDN:        c.SubjectDN(),
		SubjectPublicKey: subjectPub,
		Validity:         policy.Validity,
		Serial:           serial,
		Random:           random,
		SignatureDigest:  policy.SignatureDigest,
	}

	if policy.CopyRequestedExtensions {
		if c.RequestsAuthorityKeyId() && issuerCertificate.SubjectKeyId() != nil {
			params.AuthorityKeyId = issuerCertificate.SubjectKeyId()
		}
		params.GenerateSubjectKeyId = c.RequestsSubjectKeyId()
		if ku, ok := c.RequestedKeyUsages(); ok {
			params.KeyUsages = ku & policy.AllowedKeyUsageMask
		}
		if cc := c.RequestedCAConstraint(); cc != nil {
			params.CAConstraint = cc
		}
	}

	return Generate(params)
}
