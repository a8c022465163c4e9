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

// Package collection implements the file-backed secret collection: an
// attribute-hashed search index over AES-256-CBC-encrypted records, kept
// in one keyring container and written back atomically.
package collection

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sage-x-project/secretd/internal/metrics"
	"github.com/sage-x-project/secretd/internal/secmem"
	"github.com/sage-x-project/secretd/pkg/cryptobackend"
	"github.com/sage-x-project/secretd/pkg/keyring"
	"github.com/sage-x-project/secretd/pkg/secretdctx"
)

// state names the collection lifecycle per §4.6's state machine.
type state int

const (
	closed state = iota
	loaded
	dirty
)

// Item is a decrypted, fully materialized record.
type Item struct {
	Attrs    map[string]string
	Label    string
	Value    []byte
	Created  int64
	Modified int64
}

// record is the JSON shape of a decrypted item, matching the wire
// layout described in §4.6 (attrs, label, created, modified, value).
type record struct {
	Attrs    map[string]string `json:"attrs"`
	Label    string            `json:"label"`
	Created  int64             `json:"created"`
	Modified int64             `json:"modified"`
	Value    []byte            `json:"value"`
}

// Collection wraps a keyring with the replace/search/clear/write
// operations and owns the single mutex that serializes access to it.
type Collection struct {
	mu      sync.Mutex
	backend cryptobackend.Backend
	path    string
	kr      *keyring.Keyring
	state   state
	etag    string
	now     func() int64
}

// Open loads (or creates) the keyring at path under password and
// returns a ready-to-use collection in the "loaded" state.
func Open(backend cryptobackend.Backend, path string, password []byte) (*Collection, error) {
	kr, err := keyring.Open(backend, path, password)
	if err != nil {
		return nil, err
	}
	return &Collection{
		backend: backend,
		path:    path,
		kr:      kr,
		state:   loaded,
		etag:    computeEtag(kr),
		now:     func() int64 { return time.Now().Unix() },
	}, nil
}

func computeEtag(kr *keyring.Keyring) string {
	sum := sha256.Sum256(kr.Encode())
	return fmt.Sprintf("%x", sum)
}

// hashAttrs computes the deterministic HMAC-keyed attribute index for a
// clear attribute map, iterated in sorted key order.
func hashAttrs(backend cryptobackend.Backend, key []byte, attrs map[string]string) map[string][]byte {
	out := make(map[string][]byte, len(attrs))
	for _, k := range sortedAttrKeys(attrs) {
		out[k] = backend.HMACSHA256(key, []byte(attrs[k]))
	}
	return out
}

func sortedAttrKeys(attrs map[string]string) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func hashedAttrsEqual(a, b map[string][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		other, ok := b[k]
		if !ok || string(other) != string(v) {
			return false
		}
	}
	return true
}

func isSuperset(itemAttrs, query map[string][]byte) bool {
	for k, v := range query {
		other, ok := itemAttrs[k]
		if !ok || string(other) != string(v) {
			return false
		}
	}
	return true
}

// Replace inserts or updates the item matching attrs, preserving its
// created timestamp if one already exists. See §4.6.
func (c *Collection) Replace(attrs map[string]string, label string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	hashed := hashAttrs(c.backend, c.kr.Key, attrs)
	now := c.now()

	created := now
	for i, item := range c.kr.Items {
		if hashedAttrsEqual(item.HashedAttrs, hashed) {
			created = item.Created
			c.kr.Items = append(c.kr.Items[:i], c.kr.Items[i+1:]...)
			break
		}
	}

	rec := record{Attrs: attrs, Label: label, Created: created, Modified: now, Value: value}
	plaintext, err := json.Marshal(rec)
	if err != nil {
		return secretdctx.Wrap(secretdctx.Protocol, "collection.replace", "marshal record", err)
	}

	payload, err := c.kr.EncryptPayload(plaintext)
	if err != nil {
		return err
	}

	c.kr.Items = append(c.kr.Items, &keyring.Item{
		HashedAttrs: hashed,
		Payload:     payload,
		Created:     created,
		Modified:    now,
	})
	c.kr.Usage++
	c.kr.Modified = now
	c.state = dirty

	metrics.CollectionMutationsTotal.WithLabelValues("replace").Inc()
	metrics.CollectionItemsTotal.Set(float64(len(c.kr.Items)))
	return nil
}

// Search returns every item whose hashed attributes are a superset of
// the query, in collection (insertion) order.
func (c *Collection) Search(attrs map[string]string) ([]*Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	query := hashAttrs(c.backend, c.kr.Key, attrs)

	var out []*Item
	for _, ki := range c.kr.Items {
		if !isSuperset(ki.HashedAttrs, query) {
			continue
		}
		item, err := c.decryptItem(ki)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (c *Collection) decryptItem(ki *keyring.Item) (*Item, error) {
	plaintext, err := c.kr.DecryptPayload(ki.Payload)
	if err != nil {
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		return nil, secretdctx.Wrap(secretdctx.Protocol, "collection.decrypt", "parse record", err)
	}
	return &Item{
		Attrs:    rec.Attrs,
		Label:    rec.Label,
		Value:    rec.Value,
		Created:  rec.Created,
		Modified: rec.Modified,
	}, nil
}

// Clear removes every item matching attrs, reporting whether anything
// was removed.
func (c *Collection) Clear(attrs map[string]string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	query := hashAttrs(c.backend, c.kr.Key, attrs)

	removed := false
	kept := c.kr.Items[:0:0]
	for _, ki := range c.kr.Items {
		if isSuperset(ki.HashedAttrs, query) {
			removed = true
			continue
		}
		kept = append(kept, ki)
	}
	if removed {
		c.kr.Items = kept
		c.kr.Modified = c.now()
		c.state = dirty
		metrics.CollectionMutationsTotal.WithLabelValues("clear").Inc()
		metrics.CollectionItemsTotal.Set(float64(len(c.kr.Items)))
	}
	return removed, nil
}

// Write atomically persists the collection to its backing file with
// 0600 permissions, refreshing the stored etag.
func (c *Collection) Write() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	if err := c.kr.WriteFile(c.path); err != nil {
		return err
	}
	metrics.CollectionWriteDuration.Observe(time.Since(start).Seconds())

	c.etag = computeEtag(c.kr)
	c.state = loaded
	return nil
}

// Close zeroizes the derived key and marks the collection closed. Any
// further use requires a fresh Open.
func (c *Collection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = secmem.Default().Free(c.kr.Key)
	c.state = closed
}

// CheckFileUnchanged compares the on-disk file's contents against the
// collection's last-known etag, surfacing concurrent-modification as a
// plain I/O error per §4.6's "surface the underlying I/O error".
func (c *Collection) CheckFileUnchanged() error {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return secretdctx.Wrap(secretdctx.IO, "collection.check", "stat backing file", err)
	}
	sum := sha256.Sum256(data)
	if fmt.Sprintf("%x", sum) != c.etag {
		return secretdctx.New(secretdctx.IO, "collection.check", "backing file changed since last load")
	}
	return nil
}
