// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

// Package certstore implements an indexed collection of accepted
// certificates: a KeyIdentifier-to-Certificate map built by ingesting a
// PEM source and filtering through a trust.Validator, optionally backed
// by internal/db for durability across process restarts.
package certstore

import (
	"crypto/x509"
	"io"

	"github.com/kgiusti/go-hybridcrypt/certs"
	internaldb "github.com/kgiusti/go-hybridcrypt/internal/db"
	"github.com/kgiusti/go-hybridcrypt/keyid"
	"github.com/kgiusti/go-hybridcrypt/keys"
	pemio "github.com/kgiusti/go-hybridcrypt/pem"
	"github.com/kgiusti/go-hybridcrypt/trust"
)

// Store is a deduplicated, key-identifier-indexed collection of accepted
// certificates. The zero value is not usable; construct with Build or New.
type Store struct {
	byID  map[keyid.KeyIdentifier]certs.Certificate
	order []keyid.KeyIdentifier
}

// New returns an empty store.
func New() *Store {
	return &Store{byID: make(map[keyid.KeyIdentifier]certs.Certificate)}
}

// Build ingests every certificate object from r, keeping only those
// validator.Check accepts and indexing them by key identifier.
// Rejected certificates are not indexed. Duplicate certificates for the
// same key identifier are deduplicated; the first-accepted wins.
func Build(r io.Reader, validator trust.Validator, passphrase pemio.PassphraseSource) (*Store, error) {
	objs, readErr := pemio.ReadAll(r, passphrase)
	s := New()
	for _, obj := range objs {
		if obj.Kind != pemio.KindCertificate {
			continue
		}
		if !validator.Check(obj.Certificate) {
			continue
		}
		if err := s.Add(obj.Certificate); err != nil {
			continue
		}
	}
	return s, readErr
}

// Add indexes cert under its computed key identifier, unless an entry for
// that identifier is already present (first-accepted wins).
func (s *Store) Add(cert certs.Certificate) error {
	pub, err := cert.PublicKey()
	if err != nil {
		return err
	}
	id, err := keyid.Compute(pub)
	if err != nil {
		return err
	}
	if _, exists := s.byID[id]; exists {
		return nil
	}
	s.byID[id] = cert
	s.order = append(s.order, id)
	return nil
}

// Lookup returns the certificate accepted under id, if any.
func (s *Store) Lookup(id keyid.KeyIdentifier) (certs.Certificate, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// KeyPair is one (key identifier, public key) enumeration entry.
type KeyPair struct {
	ID        keyid.KeyIdentifier
	PublicKey keys.PublicKey
}

// EnumerateKeys returns every (key identifier, public key) pair in the
// store, in insertion order.
func (s *Store) EnumerateKeys() ([]KeyPair, error) {
	out := make([]KeyPair, 0, len(s.order))
	for _, id := range s.order {
		pub, err := s.byID[id].PublicKey()
		if err != nil {
			return nil, err
		}
		out = append(out, KeyPair{ID: id, PublicKey: pub})
	}
	return out, nil
}

// EnumerateCertificates returns every accepted certificate, in insertion
// order.
func (s *Store) EnumerateCertificates() []certs.Certificate {
	out := make([]certs.Certificate, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len reports the number of distinct accepted certificates.
func (s *Store) Len() int { return len(s.order) }

// Persist writes every accepted certificate to the database as a
// CertificateRecord, upserting by key identifier.
func (s *Store) Persist(d *internaldb.DB) error {
	for _, id := range s.order {
		rec := internaldb.CertificateRecord{KeyID: id.ToText(), DER: s.byID[id].Raw()}
		if err := d.Save(&rec).Error; err != nil {
			return err
		}
	}
	return nil
}

// LoadFromDB repopulates a store from previously persisted records,
// without re-running validator admission (the records were already
// admitted at Persist time).
func LoadFromDB(d *internaldb.DB) (*Store, error) {
	var records []internaldb.CertificateRecord
	if err := d.Find(&records).Error; err != nil {
		return nil, err
	}
	s := New()
	for _, rec := range records {
		cert, err := parseCertificateDER(rec.DER)
		if err != nil {
			return nil, err
		}
		if err := s.Add(cert); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func parseCertificateDER(der []byte) (certs.Certificate, error) {
	x, err := x509.ParseCertificate(der)
	if err != nil {
		return certs.Certificate{}, err
	}
	return certs.FromX509(x), nil
}
