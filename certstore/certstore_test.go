// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package certstore

import (
	"bytes"
	"crypto/x509"
	"math/big"
	"testing"
	"time"

	"github.com/kgiusti/go-hybridcrypt/certs"
	"github.com/kgiusti/go-hybridcrypt/keyid"
	"github.com/kgiusti/go-hybridcrypt/keys"
	pemio "github.com/kgiusti/go-hybridcrypt/pem"
	"github.com/kgiusti/go-hybridcrypt/trust"
)

type allowValidator struct{}

func (allowValidator) Check(certs.Certificate) bool { return true }

type denyValidator struct{}

func (denyValidator) Check(certs.Certificate) bool { return false }

func selfSigned(t *testing.T, cn string, serial int64) (keys.KeyPair, certs.Certificate) {
	t.Helper()
	kp, err := keys.GenerateRSA(nil, 2048)
	if err != nil {
		t.Fatalf("GenerateRSA: %v", err)
	}
	dn := certs.NewDN().AppendCN(cn)
	cert, err := certs.Generate(certs.GenerateParams{
		IssuerDN: dn, SignerPrivateKey: kp.Private,
		SubjectDN: dn, SubjectPublicKey: kp.Public,
		Validity: certs.Validity{Duration: time.Hour}, Serial: big.NewInt(serial),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return kp, cert
}

func TestBuildIndexesOnlyAcceptedCertificates(t *testing.T) {
	_, cert := selfSigned(t, "accepted", 1)
	var buf bytes.Buffer
	if err := pemio.Write(&buf, []pemio.Object{{Kind: pemio.KindCertificate, Certificate: cert}}, pemio.WriteOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	store, err := Build(&buf, denyValidator{}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected 0 entries for a rejecting validator, got %d", store.Len())
	}
}

func TestBuildDeduplicatesFirstAcceptedWins(t *testing.T) {
	kp, cert := selfSigned(t, "dup", 1)
	var buf bytes.Buffer
	if err := pemio.Write(&buf, []pemio.Object{
		{Kind: pemio.KindCertificate, Certificate: cert},
		{Kind: pemio.KindCertificate, Certificate: cert},
	}, pemio.WriteOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	store, err := Build(&buf, allowValidator{}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 deduplicated entry, got %d", store.Len())
	}

	id, err := keyid.Compute(kp.Public)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	got, ok := store.Lookup(id)
	if !ok || !got.Equal(cert) {
		t.Fatal("expected lookup by key identifier to find the accepted certificate")
	}
}

func TestEnumerateKeysAndCertificates(t *testing.T) {
	_, cert1 := selfSigned(t, "one", 1)
	_, cert2 := selfSigned(t, "two", 2)
	var buf bytes.Buffer
	if err := pemio.Write(&buf, []pemio.Object{
		{Kind: pemio.KindCertificate, Certificate: cert1},
		{Kind: pemio.KindCertificate, Certificate: cert2},
	}, pemio.WriteOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	store, err := Build(&buf, allowValidator{}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	keysList, err := store.EnumerateKeys()
	if err != nil {
		t.Fatalf("EnumerateKeys: %v", err)
	}
	if len(keysList) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keysList))
	}
	if len(store.EnumerateCertificates()) != 2 {
		t.Fatal("expected 2 certificates")
	}
}

func TestBuildWithRealCACertValidator(t *testing.T) {
	caKP, err := keys.GenerateRSA(nil, 2048)
	if err != nil {
		t.Fatalf("GenerateRSA: %v", err)
	}
	caDN := certs.NewDN().AppendCN("real-ca")
	ca, err := certs.Generate(certs.GenerateParams{
		IssuerDN: caDN, SignerPrivateKey: caKP.Private,
		SubjectDN: caDN, SubjectPublicKey: caKP.Public,
		Validity:             certs.Validity{Duration: 24 * time.Hour},
		Serial:               big.NewInt(1),
		GenerateSubjectKeyId: true,
		KeyUsages:            x509.KeyUsageCertSign,
		CAConstraint:         &certs.CAConstraint{IsCA: true},
	})
	if err != nil {
		t.Fatalf("Generate CA: %v", err)
	}
	validator := trust.NewCACertValidator([]certs.Certificate{ca}, trust.CACertValidatorOptions{})

	leafKP, err := keys.GenerateRSA(nil, 2048)
	if err != nil {
		t.Fatalf("GenerateRSA: %v", err)
	}
	leafDN := certs.NewDN().AppendCN("real-leaf")
	leaf, err := certs.Generate(certs.GenerateParams{
		IssuerDN: ca.SubjectDN(), SignerPrivateKey: caKP.Private,
		SubjectDN: leafDN, SubjectPublicKey: leafKP.Public,
		Validity:       certs.Validity{Duration: time.Hour},
		Serial:         big.NewInt(2),
		AuthorityKeyId: ca.SubjectKeyId(),
	})
	if err != nil {
		t.Fatalf("Generate leaf: %v", err)
	}

	var buf bytes.Buffer
	if err := pemio.Write(&buf, []pemio.Object{{Kind: pemio.KindCertificate, Certificate: leaf}}, pemio.WriteOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	store, err := Build(&buf, validator, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected the CA-signed leaf to be admitted, got %d entries", store.Len())
	}
}
