// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"crypto/elliptic"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kgiusti/go-hybridcrypt/certs"
	"github.com/kgiusti/go-hybridcrypt/keys"
	pemio "github.com/kgiusti/go-hybridcrypt/pem"
)

func daysToDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

// derivePublicFor recovers the public half of a loaded private key, so a
// file holding only a PRIVATE KEY block still yields a usable key pair.
func derivePublicFor(priv keys.PrivateKey) (keys.PublicKey, error) {
	return keys.DerivePublic(priv)
}

// curveByName resolves a named curve from its SEC or NIST spelling.
func curveByName(name string) (elliptic.Curve, error) {
	switch strings.ToLower(name) {
	case "secp256r1", "p256", "p-256":
		return elliptic.P256(), nil
	case "secp384r1", "p384", "p-384":
		return elliptic.P384(), nil
	case "secp521r1", "p521", "p-521":
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("cmd: unsupported curve %q (supported: secp256r1, secp384r1, secp521r1)", name)
	}
}

// parseDN builds a DistinguishedName from "ou=Engineering,o=Example,cn=leaf"
// style comma-separated attribute lists, in the order given.
func parseDN(s string) (certs.DistinguishedName, error) {
	dn := certs.NewDN()
	if s == "" {
		return dn, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("cmd: malformed DN attribute %q (want key=value)", part)
		}
		key, value := strings.ToLower(strings.TrimSpace(kv[0])), strings.TrimSpace(kv[1])
		switch key {
		case "cn":
			dn = dn.AppendCN(value)
		case "o":
			dn = dn.AppendO(value)
		case "ou":
			dn = dn.AppendOU(value)
		case "c":
			dn = dn.AppendCountry(value)
		default:
			return nil, fmt.Errorf("cmd: unsupported DN attribute %q", key)
		}
	}
	return dn, nil
}

// readPEMFile reads and decodes every object in path, with no passphrase
// support (used for public-key-only inputs such as recipient lists).
func readPEMFile(path string) ([]pemio.Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return pemio.ReadAll(f, nil)
}

// readPrivateKeyFile reads exactly one key pair's worth of material from
// path: a PRIVATE KEY or ENCRYPTED PRIVATE KEY block, optionally preceded
// or followed by its PUBLIC KEY.
func readPrivateKeyFile(path string, passphrase pemio.PassphraseSource) (keys.PrivateKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return keys.PrivateKey{}, err
	}
	defer f.Close()
	objs, err := pemio.ReadAll(f, passphrase)
	if err != nil {
		return keys.PrivateKey{}, err
	}
	for _, obj := range objs {
		if obj.Kind == pemio.KindPrivateKey {
			return obj.PrivateKey, nil
		}
	}
	return keys.PrivateKey{}, fmt.Errorf("cmd: no private key found in %s", path)
}

// readCertificateFile reads exactly one certificate from path.
func readCertificateFile(path string) (certs.Certificate, error) {
	objs, err := readPEMFile(path)
	if err != nil {
		return certs.Certificate{}, err
	}
	for _, obj := range objs {
		if obj.Kind == pemio.KindCertificate {
			return obj.Certificate, nil
		}
	}
	return certs.Certificate{}, fmt.Errorf("cmd: no certificate found in %s", path)
}

// writePEMFile truncates (or creates) path and writes objs to it.
func writePEMFile(path string, objs []pemio.Object, opts pemio.WriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return pemio.Write(f, objs, opts)
}
