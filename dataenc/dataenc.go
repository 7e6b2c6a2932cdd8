// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

// Package dataenc implements per-stream AES-256-CCM data encryption with a
// shared data key, or an explicit pass-through Unencrypted mode. CCM's B0
// block format caps a single invocation's plaintext at
// internal/ccm.MaxPlaintextLen (65535 bytes, since this library's fixed
// 13-byte nonce forces a 2-byte length field); streams longer than that
// are internally split into length-prefixed chunks, each under a nonce
// derived from the stream's single base IV XORed with a big-endian chunk
// counter. EncryptionInfo.IVs still carries just the one base IV per
// stream; the chunk counter is a wire-level detail of this package alone.
package dataenc

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/kgiusti/go-hybridcrypt/envelope"
	"github.com/kgiusti/go-hybridcrypt/internal/ccm"
)

// DataKeySize is the length in bytes of the shared symmetric data key.
const DataKeySize = 32

const maxChunkPlaintext = ccm.MaxPlaintextLen

// ErrInvalidCiphertext is returned when CCM authentication fails on
// decryption: tampered ciphertext, wrong key, or a stream-index/IV
// mismatch.
var ErrInvalidCiphertext = errors.New("dataenc: invalid ciphertext (authentication failed)")

// Options configures a DataEncryptor.
type Options struct {
	Random      io.Reader
	StreamCount int               // default 1
	Mode        envelope.DataMode // default AES256CCM
}

// DataEncryptor draws a fresh 256-bit data key and, in AES-256-CCM mode,
// a fresh 13-byte IV per stream, then encrypts each stream under that key.
type DataEncryptor struct {
	mode    envelope.DataMode
	dataKey []byte
	ivs     [][]byte
	ccm     *ccm.CCM
}

// NewEncryptor constructs a DataEncryptor per opts.
func NewEncryptor(opts Options) (*DataEncryptor, error) {
	random := opts.Random
	if random == nil {
		random = rand.Reader
	}
	streamCount := opts.StreamCount
	if streamCount == 0 {
		streamCount = 1
	}
	mode := opts.Mode
	if mode == "" {
		mode = envelope.AES256CCM
	}

	e := &DataEncryptor{mode: mode}
	switch mode {
	case envelope.Unencrypted:
		e.ivs = make([][]byte, streamCount)
		for i := range e.ivs {
			e.ivs[i] = []byte{}
		}
		return e, nil
	case envelope.AES256CCM:
		key := make([]byte, DataKeySize)
		if _, err := io.ReadFull(random, key); err != nil {
			return nil, err
		}
		c, err := ccm.New(key)
		if err != nil {
			return nil, err
		}
		ivs := make([][]byte, streamCount)
		seen := make(map[string]struct{}, streamCount)
		for i := range ivs {
			iv := make([]byte, ccm.NonceSize)
			for {
				if _, err := io.ReadFull(random, iv); err != nil {
					return nil, err
				}
				if _, dup := seen[string(iv)]; !dup {
					break
				}
			}
			seen[string(iv)] = struct{}{}
			ivs[i] = iv
		}
		e.dataKey = key
		e.ivs = ivs
		e.ccm = c
		return e, nil
	default:
		return nil, fmt.Errorf("dataenc: unknown data mode %q", mode)
	}
}

// DataKey returns the generated 256-bit data key, or nil in Unencrypted
// mode. Callers wrap this with C8 for each recipient.
func (e *DataEncryptor) DataKey() []byte { return e.dataKey }

// IVs returns the per-stream base IVs, for inclusion in EncryptionInfo.
func (e *DataEncryptor) IVs() [][]byte { return e.ivs }

// Mode returns the configured data mode.
func (e *DataEncryptor) Mode() envelope.DataMode { return e.mode }

func (e *DataEncryptor) checkStreamIndex(streamIndex int) error {
	if streamIndex < 0 || streamIndex >= len(e.ivs) {
		return fmt.Errorf("dataenc: stream index %d out of range [0,%d)", streamIndex, len(e.ivs))
	}
	return nil
}

// EncryptData encrypts data as stream streamIndex and returns the
// (possibly chunk-framed) ciphertext. In Unencrypted mode it returns data
// unchanged.
func (e *DataEncryptor) EncryptData(data []byte, streamIndex int) ([]byte, error) {
	if err := e.checkStreamIndex(streamIndex); err != nil {
		return nil, err
	}
	if e.mode == envelope.Unencrypted {
		return append([]byte(nil), data...), nil
	}
	var out []byte
	baseIV := e.ivs[streamIndex]
	for offset, chunkIndex := 0, uint32(0); offset < len(data) || (offset == 0 && len(data) == 0); chunkIndex++ {
		end := offset + maxChunkPlaintext
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]
		nonce := chunkNonce(baseIV, chunkIndex)
		ct, err := e.ccm.Seal(nonce, chunk)
		if err != nil {
			return nil, err
		}
		var lenPrefix [4]byte
		binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(ct)))
		out = append(out, lenPrefix[:]...)
		out = append(out, ct...)
		offset = end
		if len(data) == 0 {
			break
		}
	}
	return out, nil
}

// DecryptData decrypts data previously produced by EncryptData for the
// same stream. Returns ErrInvalidCiphertext on any authentication failure
// or malformed chunk framing.
func (e *DataEncryptor) DecryptData(data []byte, streamIndex int) ([]byte, error) {
	return decryptChunked(e.ccm, e.mode, e.ivs, streamIndex, data)
}

func chunkNonce(baseIV []byte, chunkIndex uint32) []byte {
	nonce := append([]byte(nil), baseIV...)
	var ctr [4]byte
	binary.BigEndian.PutUint32(ctr[:], chunkIndex)
	n := len(nonce)
	for i := 0; i < 4; i++ {
		nonce[n-4+i] ^= ctr[i]
	}
	return nonce
}

// DataDecryptor reverses DataEncryptor given the unwrapped data key and
// the EncryptionInfo's per-stream IVs.
type DataDecryptor struct {
	mode envelope.DataMode
	ivs  [][]byte
	ccm  *ccm.CCM
}

// KeyUnwrapper is the narrow contract DataDecryptor needs from a key
// decryptor: resolve the shared data key for this message, returning
// (nil, nil) when no recipient entry matched.
type KeyUnwrapper interface {
	DecryptKey(info envelope.EncryptionInfo) ([]byte, error)
}

// FromEncryptionInfo builds a DataDecryptor for info using keyDecryptor to
// unwrap the shared data key. Returns (nil, nil) when keyDecryptor has no
// entry for the local recipient.
func FromEncryptionInfo(info envelope.EncryptionInfo, keyDecryptor KeyUnwrapper) (*DataDecryptor, error) {
	if info.DataMode == envelope.Unencrypted {
		return &DataDecryptor{mode: envelope.Unencrypted, ivs: info.IVs}, nil
	}
	key, err := keyDecryptor.DecryptKey(info)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, nil
	}
	c, err := ccm.New(key)
	if err != nil {
		return nil, err
	}
	return &DataDecryptor{mode: info.DataMode, ivs: info.IVs, ccm: c}, nil
}

// StreamCount is the number of streams this decryptor was built for.
func (d *DataDecryptor) StreamCount() int { return len(d.ivs) }

// DecryptData decrypts data for stream streamIndex.
func (d *DataDecryptor) DecryptData(data []byte, streamIndex int) ([]byte, error) {
	return decryptChunked(d.ccm, d.mode, d.ivs, streamIndex, data)
}

func decryptChunked(c *ccm.CCM, mode envelope.DataMode, ivs [][]byte, streamIndex int, data []byte) ([]byte, error) {
	if streamIndex < 0 || streamIndex >= len(ivs) {
		return nil, fmt.Errorf("dataenc: stream index %d out of range [0,%d)", streamIndex, len(ivs))
	}
	if mode == envelope.Unencrypted {
		return append([]byte(nil), data...), nil
	}
	baseIV := ivs[streamIndex]
	var out []byte
	chunkIndex := uint32(0)
	offset := 0
	if len(data) == 0 {
		return out, nil
	}
	for offset < len(data) {
		if offset+4 > len(data) {
			return nil, ErrInvalidCiphertext
		}
		chunkLen := binary.BigEndian.Uint32(data[offset : offset+4])
		offset += 4
		if uint64(offset)+uint64(chunkLen) > uint64(len(data)) {
			return nil, ErrInvalidCiphertext
		}
		ct := data[offset : offset+int(chunkLen)]
		offset += int(chunkLen)
		nonce := chunkNonce(baseIV, chunkIndex)
		pt, err := c.Open(nonce, ct)
		if err != nil {
			return nil, ErrInvalidCiphertext
		}
		out = append(out, pt...)
		chunkIndex++
	}
	return out, nil
}

// OpenEncryptionWriteStream wraps w so that plaintext written to the
// returned writer is encrypted in maxChunkPlaintext-sized, length-prefixed
// chunks and appended to w. leaveOpen controls whether w is closed (when it
// implements io.Closer) when the returned writer's Close is called.
func (e *DataEncryptor) OpenEncryptionWriteStream(w io.Writer, streamIndex int, leaveOpen bool) (io.WriteCloser, error) {
	if err := e.checkStreamIndex(streamIndex); err != nil {
		return nil, err
	}
	return &encryptWriter{enc: e, out: w, streamIndex: streamIndex, leaveOpen: leaveOpen}, nil
}

type encryptWriter struct {
	enc         *DataEncryptor
	out         io.Writer
	streamIndex int
	buf         []byte
	chunkIndex  uint32
	wroteAny    bool
	leaveOpen   bool
}

func (ew *encryptWriter) Write(p []byte) (int, error) {
	n := len(p)
	ew.buf = append(ew.buf, p...)
	for len(ew.buf) >= maxChunkPlaintext {
		if err := ew.flushChunk(ew.buf[:maxChunkPlaintext]); err != nil {
			return 0, err
		}
		ew.buf = ew.buf[maxChunkPlaintext:]
	}
	return n, nil
}

func (ew *encryptWriter) flushChunk(chunk []byte) error {
	if ew.enc.mode == envelope.Unencrypted {
		_, err := ew.out.Write(chunk)
		ew.wroteAny = true
		return err
	}
	nonce := chunkNonce(ew.enc.ivs[ew.streamIndex], ew.chunkIndex)
	ct, err := ew.enc.ccm.Seal(nonce, chunk)
	if err != nil {
		return err
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(ct)))
	if _, err := ew.out.Write(lenPrefix[:]); err != nil {
		return err
	}
	if _, err := ew.out.Write(ct); err != nil {
		return err
	}
	ew.chunkIndex++
	ew.wroteAny = true
	return nil
}

// Close flushes any buffered plaintext as a final chunk, then closes the
// underlying stream unless leaveOpen was set.
func (ew *encryptWriter) Close() error {
	if len(ew.buf) > 0 || !ew.wroteAny {
		if err := ew.flushChunk(ew.buf); err != nil {
			return err
		}
		ew.buf = nil
	}
	if !ew.leaveOpen {
		if c, ok := ew.out.(io.Closer); ok {
			return c.Close()
		}
	}
	return nil
}

// OpenEncryptionReadStream wraps plaintext source into a reader that
// yields the encrypted, chunk-framed ciphertext (the encrypt-side read
// orientation of the stream API: plaintext in, ciphertext out). leaveOpen
// controls whether plaintext is closed (when it implements io.Closer) once
// it has been fully consumed.
func (e *DataEncryptor) OpenEncryptionReadStream(plaintext io.Reader, streamIndex int, leaveOpen bool) (io.Reader, error) {
	if err := e.checkStreamIndex(streamIndex); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(plaintext)
	if err != nil {
		return nil, err
	}
	if !leaveOpen {
		if c, ok := plaintext.(io.Closer); ok {
			if err := c.Close(); err != nil {
				return nil, err
			}
		}
	}
	ct, err := e.EncryptData(data, streamIndex)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(ct), nil
}

// OpenDecryptionWriteStream returns a writer that decrypts whatever
// chunk-framed ciphertext is written to it and appends the plaintext to
// plaintextOut. leaveOpen controls whether plaintextOut is closed (when it
// implements io.Closer) when the returned writer's Close is called.
func (d *DataDecryptor) OpenDecryptionWriteStream(plaintextOut io.Writer, streamIndex int, leaveOpen bool) (io.WriteCloser, error) {
	if streamIndex < 0 || streamIndex >= len(d.ivs) {
		return nil, fmt.Errorf("dataenc: stream index %d out of range [0,%d)", streamIndex, len(d.ivs))
	}
	return &decryptWriter{dec: d, out: plaintextOut, streamIndex: streamIndex, leaveOpen: leaveOpen}, nil
}

type decryptWriter struct {
	dec         *DataDecryptor
	out         io.Writer
	streamIndex int
	buf         []byte
	leaveOpen   bool
}

func (dw *decryptWriter) Write(p []byte) (int, error) {
	dw.buf = append(dw.buf, p...)
	return len(p), nil
}

// Close decrypts the full buffered ciphertext and writes the plaintext.
// Write only buffers: every chunk is authenticated and decrypted here, and
// nothing reaches plaintextOut before Close.
func (dw *decryptWriter) Close() error {
	pt, err := decryptChunked(dw.dec.ccm, dw.dec.mode, dw.dec.ivs, dw.streamIndex, dw.buf)
	if err != nil {
		return err
	}
	if _, err := dw.out.Write(pt); err != nil {
		return err
	}
	if !dw.leaveOpen {
		if c, ok := dw.out.(io.Closer); ok {
			return c.Close()
		}
	}
	return nil
}

// OpenDecryptionReadStream reads chunk-framed ciphertext from ciphertext
// and returns a reader yielding the decrypted plaintext. leaveOpen controls
// whether ciphertext is closed (when it implements io.Closer) once it has
// been fully consumed.
func (d *DataDecryptor) OpenDecryptionReadStream(ciphertext io.Reader, streamIndex int, leaveOpen bool) (io.Reader, error) {
	if streamIndex < 0 || streamIndex >= len(d.ivs) {
		return nil, fmt.Errorf("dataenc: stream index %d out of range [0,%d)", streamIndex, len(d.ivs))
	}
	data, err := io.ReadAll(ciphertext)
	if err != nil {
		return nil, err
	}
	if !leaveOpen {
		if c, ok := ciphertext.(io.Closer); ok {
			if err := c.Close(); err != nil {
				return nil, err
			}
		}
	}
	pt, err := decryptChunked(d.ccm, d.mode, d.ivs, streamIndex, data)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(pt), nil
}

