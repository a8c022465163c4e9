// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// Package keyring implements the on-disk keyring container: a fixed
// magic/version header, a derivation salt and iteration count, and a
// flat list of items whose attributes are stored as keyed HMACs and
// whose payload is AES-256-CBC-encrypted and HMAC-tagged.
package keyring

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sage-x-project/secretd/internal/secmem"
	"github.com/sage-x-project/secretd/pkg/codec"
	"github.com/sage-x-project/secretd/pkg/cryptobackend"
	"github.com/sage-x-project/secretd/pkg/secretdctx"
)

// Magic is the fixed 16-byte file header, unchanged from the original
// gnome-keyring container format.
var Magic = []byte("GnomeKeyring\n\r\x00\n")

const (
	versionMajor = 1
	versionMinor = 0

	saltSize         = 32
	defaultIterCount = 100000
	macSize          = 32
)

// DefaultIterations is the PBKDF2 round count newKeyring uses for a
// freshly created keyring. secretservice.Default overrides it from the
// loaded SecretdConfig before opening the process-wide singleton.
var DefaultIterations = defaultIterCount

// deriveKey runs PBKDF2-SHA256 and copies the result into a secure,
// guard-bounded buffer so the master key never lingers as an ordinary,
// unlocked heap allocation.
func deriveKey(backend cryptobackend.Backend, password, salt []byte, iters int) ([]byte, error) {
	derived := backend.PBKDF2SHA256(password, salt, iters, 32)
	defer func() {
		for i := range derived {
			derived[i] = 0
		}
	}()

	key, err := secmem.Default().Alloc("keyring-master-key", len(derived), false)
	if err != nil {
		return nil, secretdctx.Wrap(secretdctx.OutOfMemory, "keyring.derive", "allocate secure key buffer", err)
	}
	copy(key, derived)
	return key, nil
}

// Item is one stored record: attribute names in the clear with their
// values as keyed HMACs, paired with the AES-CBC-encrypted, HMAC-tagged
// record written to disk.
type Item struct {
	HashedAttrs map[string][]byte // attribute name -> HMAC(key, value)
	Payload     []byte            // ciphertext || iv || mac
	Created     int64
	Modified    int64
}

// Keyring is the decoded, in-memory container. Key lives in secure
// memory for the lifetime of the keyring and must be freed by the owner
// (pkg/collection.Collection.Close does this via internal/secmem).
type Keyring struct {
	backend    cryptobackend.Backend
	Salt       []byte
	Iterations uint32
	Modified   int64
	Usage      uint64
	Items      []*Item
	Key        []byte
}

// Open loads path, deriving the record key from password. A missing
// file is not an error: a fresh keyring is returned with a new salt and
// the default iteration count, matching the "absent file" invariant.
func Open(backend cryptobackend.Backend, path string, password []byte) (*Keyring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newKeyring(backend, password, Now())
		}
		return nil, secretdctx.Wrap(secretdctx.IO, "keyring.open", "read keyring file", err)
	}
	return decode(backend, data, password)
}

func newKeyring(backend cryptobackend.Backend, password []byte, now int64) (*Keyring, error) {
	salt := make([]byte, saltSize)
	if err := backend.CSPRNG(salt); err != nil {
		return nil, secretdctx.Wrap(secretdctx.Protocol, "keyring.new", "generate salt", err)
	}
	key, err := deriveKey(backend, password, salt, DefaultIterations)
	if err != nil {
		return nil, err
	}
	return &Keyring{
		backend:    backend,
		Salt:       salt,
		Iterations: uint32(DefaultIterations),
		Modified:   now,
		Usage:      0,
		Key:        key,
	}, nil
}

// decode parses a full keyring file: 16-byte magic, 2-byte version, then
// the trailer (salt, iterations, modified, usage, items).
func decode(backend cryptobackend.Backend, data []byte, password []byte) (*Keyring, error) {
	if len(data) < len(Magic)+2 {
		return nil, secretdctx.New(secretdctx.InvalidFileFormat, "keyring.decode", "file shorter than header")
	}
	if !bytes.Equal(data[:len(Magic)], Magic) {
		return nil, secretdctx.New(secretdctx.InvalidFileFormat, "keyring.decode", "magic mismatch")
	}
	off := len(Magic)
	major, minor := data[off], data[off+1]
	if major != versionMajor || minor != versionMinor {
		return nil, secretdctx.New(secretdctx.InvalidFileFormat, "keyring.decode", "unsupported version")
	}
	off += 2

	r := bytes.NewReader(data[off:])

	saltLen, err := readU32(r)
	if err != nil {
		return nil, wrapShort(err)
	}
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(r, salt); err != nil {
		return nil, wrapShort(err)
	}

	iterations, err := readU32(r)
	if err != nil {
		return nil, wrapShort(err)
	}
	modified, err := readU64(r)
	if err != nil {
		return nil, wrapShort(err)
	}
	usage, err := readU64(r)
	if err != nil {
		return nil, wrapShort(err)
	}
	nItems, err := readU32(r)
	if err != nil {
		return nil, wrapShort(err)
	}

	items := make([]*Item, 0, nItems)
	for i := uint32(0); i < nItems; i++ {
		item, err := readItem(r)
		if err != nil {
			return nil, wrapShort(err)
		}
		items = append(items, item)
	}

	key, err := deriveKey(backend, password, salt, int(iterations))
	if err != nil {
		return nil, err
	}

	return &Keyring{
		backend:    backend,
		Salt:       salt,
		Iterations: iterations,
		Modified:   int64(modified),
		Usage:      usage,
		Items:      items,
		Key:        key,
	}, nil
}

func wrapShort(err error) error {
	return secretdctx.Wrap(secretdctx.InvalidFileFormat, "keyring.decode", "truncated trailer", err)
}

func readItem(r *bytes.Reader) (*Item, error) {
	nAttrs, err := readU32(r)
	if err != nil {
		return nil, err
	}
	attrs := make(map[string][]byte, nAttrs)
	for i := uint32(0); i < nAttrs; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		hash, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		attrs[name] = hash
	}

	created, err := readU64(r)
	if err != nil {
		return nil, err
	}
	modified, err := readU64(r)
	if err != nil {
		return nil, err
	}
	payload, err := readBytes(r)
	if err != nil {
		return nil, err
	}

	return &Item{
		HashedAttrs: attrs,
		Payload:     payload,
		Created:     int64(created),
		Modified:    int64(modified),
	}, nil
}

// Encode serializes the keyring back to its on-disk byte form.
func (k *Keyring) Encode() []byte {
	var buf bytes.Buffer
	buf.Write(Magic)
	buf.WriteByte(versionMajor)
	buf.WriteByte(versionMinor)

	writeU32(&buf, uint32(len(k.Salt)))
	buf.Write(k.Salt)
	writeU32(&buf, k.Iterations)
	writeU64(&buf, uint64(k.Modified))
	writeU64(&buf, k.Usage)
	writeU32(&buf, uint32(len(k.Items)))

	for _, item := range k.Items {
		writeU32(&buf, uint32(len(item.HashedAttrs)))
		for _, name := range sortedKeys(item.HashedAttrs) {
			writeString(&buf, name)
			writeBytes(&buf, item.HashedAttrs[name])
		}
		writeU64(&buf, uint64(item.Created))
		writeU64(&buf, uint64(item.Modified))
		writeBytes(&buf, item.Payload)
	}

	return buf.Bytes()
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// EncryptPayload builds the ciphertext||iv||mac payload for plaintext,
// per §4.6: PKCS#7-pad, AES-256-CBC with a fresh IV, HMAC over
// ciphertext||iv.
func (k *Keyring) EncryptPayload(plaintext []byte) ([]byte, error) {
	iv := make([]byte, codec.BlockSize)
	if err := k.backend.CSPRNG(iv); err != nil {
		return nil, secretdctx.Wrap(secretdctx.Protocol, "keyring.encrypt", "generate iv", err)
	}
	padded := codec.PadPKCS7(plaintext)
	ciphertext, err := k.backend.AESCBCEncrypt(k.Key, iv, padded)
	if err != nil {
		return nil, secretdctx.Wrap(secretdctx.Protocol, "keyring.encrypt", "aes-cbc", err)
	}

	mac := k.backend.HMACSHA256(k.Key, append(append([]byte{}, ciphertext...), iv...))

	payload := make([]byte, 0, len(ciphertext)+len(iv)+macSize)
	payload = append(payload, ciphertext...)
	payload = append(payload, iv...)
	payload = append(payload, mac...)
	return payload, nil
}

// DecryptPayload inverts EncryptPayload, verifying the MAC in constant
// time before touching ciphertext.
func (k *Keyring) DecryptPayload(payload []byte) ([]byte, error) {
	if len(payload) < codec.BlockSize+macSize {
		return nil, secretdctx.New(secretdctx.Protocol, "keyring.decrypt", "payload shorter than iv+mac")
	}
	ciphertext := payload[:len(payload)-codec.BlockSize-macSize]
	iv := payload[len(payload)-codec.BlockSize-macSize : len(payload)-macSize]
	mac := payload[len(payload)-macSize:]

	expected := k.backend.HMACSHA256(k.Key, append(append([]byte{}, ciphertext...), iv...))
	if !codec.ConstantTimeCompare(expected, mac) {
		return nil, secretdctx.New(secretdctx.Protocol, "keyring.decrypt", "mac mismatch")
	}

	padded, err := k.backend.AESCBCDecrypt(k.Key, iv, ciphertext)
	if err != nil {
		return nil, secretdctx.Wrap(secretdctx.Protocol, "keyring.decrypt", "aes-cbc", err)
	}
	plaintext, err := codec.UnpadPKCS7(padded)
	if err != nil {
		return nil, secretdctx.Wrap(secretdctx.Protocol, "keyring.decrypt", "unpad", err)
	}
	return plaintext, nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeBytes(buf *bytes.Buffer, v []byte) {
	writeU32(buf, uint32(len(v)))
	buf.Write(v)
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

// Now is the keyring package's clock.
func Now() int64 {
	return time.Now().Unix()
}

// WriteFile atomically replaces path with the keyring's current encoded
// form, using 0600 permissions, per §4.6's write contract.
func (k *Keyring) WriteFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return secretdctx.Wrap(secretdctx.IO, "keyring.write", "mkdir", err)
	}
	tmp, err := os.CreateTemp(dir, ".keyring-*.tmp")
	if err != nil {
		return secretdctx.Wrap(secretdctx.IO, "keyring.write", "create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(k.Encode()); err != nil {
		tmp.Close()
		return secretdctx.Wrap(secretdctx.IO, "keyring.write", "write temp file", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return secretdctx.Wrap(secretdctx.IO, "keyring.write", "chmod temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return secretdctx.Wrap(secretdctx.IO, "keyring.write", "close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return secretdctx.Wrap(secretdctx.IO, "keyring.write", "rename into place", err)
	}
	return nil
}
