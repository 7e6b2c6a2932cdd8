// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package certs

import (
	"crypto"
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	"github.com/kgiusti/go-hybridcrypt/keyid"
	"github.com/kgiusti/go-hybridcrypt/keys"
)

var oidExtKeyUsage = asn1.ObjectIdentifier{2, 5, 29, 15}

// subjectKeyId computes the SKID to embed when GenerateSubjectKeyId is set:
// the same key-identifier hash used throughout this library, less its
// leading type byte (SKID is conventionally a 20-byte SHA-1 hash in RFC
// 5280, but nothing requires that; we reuse our own stable identifier so a
// certificate's SKID is always recomputable from its public key alone).
func subjectKeyId(pub keys.PublicKey) ([]byte, error) {
	id, err := keyid.Compute(pub)
	if err != nil {
		return nil, err
	}
	return id[1:], nil
}

func signatureAlgorithmFor(t keys.KeyType, digest crypto.Hash) (x509.SignatureAlgorithm, error) {
	switch t {
	case keys.RSA:
		switch digest {
		case crypto.SHA256:
			return x509.SHA256WithRSA, nil
		case crypto.SHA384:
			return x509.SHA384WithRSA, nil
		case crypto.SHA512:
			return x509.SHA512WithRSA, nil
		}
	case keys.EC:
		switch digest {
		case crypto.SHA256:
			return x509.ECDSAWithSHA256, nil
		case crypto.SHA384:
			return x509.ECDSAWithSHA384, nil
		case crypto.SHA512:
			return x509.ECDSAWithSHA512, nil
		}
	}
	return x509.UnknownSignatureAlgorithm, fmt.Errorf("certs: unsupported key type/digest combination: %s/%s", t, digest)
}
