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

// Package secretservice is the attribute-typed API external callers
// actually use: schema-validated store/lookup/clear/search over a
// default (persisted, JWE-wrapped) collection and an ephemeral
// session collection that never touches disk.
package secretservice

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sage-x-project/secretd/internal/secmem"
	"github.com/sage-x-project/secretd/pkg/codec"
	"github.com/sage-x-project/secretd/pkg/cryptobackend"
	"github.com/sage-x-project/secretd/pkg/jwe"
	"github.com/sage-x-project/secretd/pkg/secretdctx"
)

// CollectionKind selects between the persisted default collection and
// the process-lifetime session collection.
type CollectionKind int

const (
	DefaultCollection CollectionKind = iota
	SessionCollection
)

// SecretValue is the bag of bytes a caller stores or retrieves.
type SecretValue struct {
	Bytes       []byte
	ContentType string
}

// item is one entry in the JWE-wrapped default collection's plaintext
// array, or in the in-memory session collection.
type item struct {
	Attrs       map[string]string `json:"attributes"`
	Label       string            `json:"label"`
	ContentType string            `json:"content-type"`
	Value       string            `json:"value"` // base64url(bytes)
	created     int64
	modified    int64
}

// value decodes the item's base64url payload into a secmem-backed buffer,
// so decrypted plaintext never lives as an ordinary, unlocked heap slice.
func (it *item) value() ([]byte, error) {
	decoded := codec.DecodeBase64URL(it.Value)
	defer zeroBytes(decoded)

	buf, err := secmem.Default().Alloc("secret-value", len(decoded), false)
	if err != nil {
		return nil, secretdctx.Wrap(secretdctx.OutOfMemory, "item.value", "allocate secure buffer", err)
	}
	copy(buf, decoded)
	return buf, nil
}

func (it *item) setValue(b []byte) { it.Value = codec.EncodeBase64URL(b) }

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Retrievable is a lazy handle to a matched item: callers decide
// whether to actually decrypt the payload.
type Retrievable interface {
	Created() time.Time
	Modified() time.Time
	Label() string
	Attributes() map[string]string
	RetrieveSecret(ctx context.Context) (*SecretValue, error)
}

type retrievableItem struct {
	it *item
}

func (r *retrievableItem) Created() time.Time             { return time.Unix(r.it.created, 0) }
func (r *retrievableItem) Modified() time.Time            { return time.Unix(r.it.modified, 0) }
func (r *retrievableItem) Label() string                  { return r.it.Label }
func (r *retrievableItem) Attributes() map[string]string  { return r.it.Attrs }
func (r *retrievableItem) RetrieveSecret(_ context.Context) (*SecretValue, error) {
	b, err := r.it.value()
	if err != nil {
		return nil, err
	}
	return &SecretValue{Bytes: b, ContentType: r.it.ContentType}, nil
}

// Storage is the JWE-wrapped top layer: a default collection persisted
// to a JWE envelope file, plus a session collection held only in memory.
type Storage struct {
	mu      sync.Mutex
	backend cryptobackend.Backend
	path    string
	key     []byte

	defaultItems []*item
	sessionItems []*item
	etag         string
}

// storageKeyInfo is the HKDF context label binding the derived key to
// its single use as the top-level storage envelope key.
const storageKeyInfo = "secret storage key"

// Open derives the storage's AES-128-GCM key from password via
// HKDF-SHA-256 and loads the default collection's JWE file at path, if
// present. The derived key is held in secure memory for the lifetime of
// the Storage.
func Open(backend cryptobackend.Backend, path string, password []byte) (*Storage, error) {
	derived, err := backend.HKDF(cryptobackend.SHA256, password, nil, []byte(storageKeyInfo), 16)
	if err != nil {
		return nil, secretdctx.Wrap(secretdctx.Protocol, "storage.open", "derive storage key", err)
	}
	defer zeroBytes(derived)

	key, err := secmem.Default().Alloc("storage-key", len(derived), false)
	if err != nil {
		return nil, secretdctx.Wrap(secretdctx.OutOfMemory, "storage.open", "allocate secure key buffer", err)
	}
	copy(key, derived)

	s := &Storage{backend: backend, path: path, key: key}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, secretdctx.Wrap(secretdctx.IO, "storage.open", "read storage file", err)
	}

	env, err := jwe.Unmarshal(data)
	if err != nil {
		return nil, secretdctx.Wrap(secretdctx.InvalidFileFormat, "storage.open", "parse jwe envelope", err)
	}
	plaintext, err := jwe.SymmetricDecrypt(backend, env, key)
	if err != nil {
		return nil, secretdctx.Wrap(secretdctx.Protocol, "storage.open", "decrypt storage", err)
	}

	var items []*item
	if err := json.Unmarshal(plaintext, &items); err != nil {
		return nil, secretdctx.Wrap(secretdctx.InvalidFileFormat, "storage.open", "parse storage items", err)
	}
	s.defaultItems = items
	s.etag = hashOf(data)
	return s, nil
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Store validates attrs against schema (nil means an open schema with no
// constraints), then replaces the matching item in the chosen collection.
func (s *Storage) Store(ctx context.Context, schema *Schema, attrs map[string]string, collection CollectionKind, label string, value *SecretValue) error {
	if err := ctx.Err(); err != nil {
		return secretdctx.Wrap(secretdctx.Cancelled, "storage.store", "context cancelled", err)
	}
	if schema != nil {
		if err := schema.Validate(attrs); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	newItem := &item{Attrs: attrs, Label: label, ContentType: value.ContentType, created: now, modified: now}
	newItem.setValue(value.Bytes)

	switch collection {
	case SessionCollection:
		s.sessionItems = replaceItem(s.sessionItems, newItem)
		return nil
	default:
		s.defaultItems = replaceItem(s.defaultItems, newItem)
		return s.persist()
	}
}

func replaceItem(items []*item, newItem *item) []*item {
	for i, it := range items {
		if attrsEqual(it.Attrs, newItem.Attrs) {
			newItem.created = it.created
			items[i] = newItem
			return items
		}
	}
	return append(items, newItem)
}

func attrsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// persist re-serializes both the default items and the JWE envelope,
// writing it atomically with 0600 permissions. If the file changed on
// disk since this Storage last loaded or wrote it, the write is refused
// and the stale-etag condition is surfaced as an I/O error.
func (s *Storage) persist() error {
	if s.etag != "" {
		onDisk, err := os.ReadFile(s.path)
		if err != nil && !os.IsNotExist(err) {
			return secretdctx.Wrap(secretdctx.IO, "storage.persist", "check current file", err)
		}
		if err == nil && hashOf(onDisk) != s.etag {
			return secretdctx.New(secretdctx.IO, "storage.persist", "storage file changed since last load (stale etag)")
		}
	}

	plaintext, err := json.Marshal(s.defaultItems)
	if err != nil {
		return secretdctx.Wrap(secretdctx.Protocol, "storage.persist", "marshal items", err)
	}
	env, err := jwe.SymmetricEncrypt(s.backend, plaintext, "A128GCM", s.key)
	if err != nil {
		return secretdctx.Wrap(secretdctx.Protocol, "storage.persist", "encrypt storage", err)
	}
	data, err := env.Marshal()
	if err != nil {
		return secretdctx.Wrap(secretdctx.Protocol, "storage.persist", "marshal envelope", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return secretdctx.Wrap(secretdctx.IO, "storage.persist", "mkdir", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return secretdctx.Wrap(secretdctx.IO, "storage.persist", "write temp file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return secretdctx.Wrap(secretdctx.IO, "storage.persist", "rename into place", err)
	}
	s.etag = hashOf(data)
	return nil
}

// Lookup returns the first item whose attributes exactly match, or nil
// if none does.
func (s *Storage) Lookup(ctx context.Context, schema *Schema, attrs map[string]string) (*SecretValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, secretdctx.Wrap(secretdctx.Cancelled, "storage.lookup", "context cancelled", err)
	}
	if schema != nil {
		if err := schema.Validate(attrs); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range append(append([]*item{}, s.sessionItems...), s.defaultItems...) {
		if attrsEqual(it.Attrs, attrs) {
			b, err := it.value()
			if err != nil {
				return nil, err
			}
			return &SecretValue{Bytes: b, ContentType: it.ContentType}, nil
		}
	}
	return nil, nil
}

// Clear removes every item (in both collections) matching attrs.
func (s *Storage) Clear(ctx context.Context, schema *Schema, attrs map[string]string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, secretdctx.Wrap(secretdctx.Cancelled, "storage.clear", "context cancelled", err)
	}
	if schema != nil {
		if err := schema.Validate(attrs); err != nil {
			return false, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removedSession, keptSession := clearMatching(s.sessionItems, attrs)
	s.sessionItems = keptSession
	removedDefault, kept := clearMatching(s.defaultItems, attrs)
	s.defaultItems = kept

	if removedDefault {
		if err := s.persist(); err != nil {
			return false, err
		}
	}
	return removedSession || removedDefault, nil
}

func clearMatching(items []*item, attrs map[string]string) (bool, []*item) {
	removed := false
	kept := items[:0:0]
	for _, it := range items {
		if attrsEqual(it.Attrs, attrs) {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	return removed, kept
}

// Search returns every matching item (superset match on attrs) across
// both collections as lazy Retrievable handles.
func (s *Storage) Search(ctx context.Context, schema *Schema, attrs map[string]string) ([]Retrievable, error) {
	if err := ctx.Err(); err != nil {
		return nil, secretdctx.Wrap(secretdctx.Cancelled, "storage.search", "context cancelled", err)
	}
	if schema != nil {
		if err := schema.Validate(attrs); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Retrievable
	for _, it := range append(append([]*item{}, s.sessionItems...), s.defaultItems...) {
		if isAttrSuperset(it.Attrs, attrs) {
			out = append(out, &retrievableItem{it: it})
		}
	}
	return out, nil
}

func isAttrSuperset(itemAttrs, query map[string]string) bool {
	for k, v := range query {
		if itemAttrs[k] != v {
			return false
		}
	}
	return true
}

