// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

// Package kdf2 implements the ANSI X9.44 / X9.63 key derivation function:
// a keystream built by iterating SHA-256(Z || counter || OtherInfo) over
// four-byte big-endian counters starting at 1, truncated to the requested
// length.
package kdf2

import (
	"crypto/sha256"
	"encoding/binary"
)

// Derive returns outputLen bytes of keying material from shared secret z
// and fixed context otherInfo.
func Derive(z, otherInfo []byte, outputLen int) []byte {
	out := make([]byte, 0, outputLen)
	var counter uint32 = 1
	for len(out) < outputLen {
		h := sha256.New()
		h.Write(z)
		var ctr [4]byte
		binary.BigEndian.PutUint32(ctr[:], counter)
		h.Write(ctr[:])
		h.Write(otherInfo)
		out = append(out, h.Sum(nil)...)
		counter++
	}
	return out[:outputLen]
}
