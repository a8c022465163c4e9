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

// Package session implements the Diffie-Hellman session handshake and
// the resulting transport codec for secret values: plain passthrough,
// or AES-128-CBC with PKCS#7 padding under a key derived from the
// shared secret via HKDF-SHA-256.
package session

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/sage-x-project/secretd/internal/metrics"
	"github.com/sage-x-project/secretd/internal/secmem"
	"github.com/sage-x-project/secretd/pkg/codec"
	"github.com/sage-x-project/secretd/pkg/cryptobackend"
	"github.com/sage-x-project/secretd/pkg/secretdctx"
)

// Algorithm names the negotiated transport mode.
type Algorithm string

const (
	AlgorithmPlain Algorithm = "plain"
	AlgorithmAES   Algorithm = "dh-ietf1024-sha256-aes128-cbc-pkcs7"
)

const sessionKeyLen = 16

// Session holds the negotiated algorithm, path, and (for AES) derived
// key. It is stateless beyond that and safe for concurrent use.
type Session struct {
	backend cryptobackend.Backend
	Path    string
	Algo    Algorithm
	Key     []byte // nil for PLAIN
}

// Handshake is one side's half of an in-progress DH exchange.
type Handshake struct {
	backend cryptobackend.Backend
	group   cryptobackend.Group
	priv    *big.Int
	Pub     *big.Int
}

// OpenHandshake begins a handshake against the named MODP group
// ("modp1024" is group 2, the only group the wire vocabulary names).
func OpenHandshake(backend cryptobackend.Backend, groupName string) (*Handshake, error) {
	group, err := backend.DHGroup(groupName)
	if err != nil {
		return nil, secretdctx.Wrap(secretdctx.Protocol, "session.handshake", "lookup dh group", err)
	}
	priv, pub, err := group.GenPair()
	if err != nil {
		return nil, secretdctx.Wrap(secretdctx.Protocol, "session.handshake", "generate dh pair", err)
	}
	return &Handshake{backend: backend, group: group, priv: priv, Pub: pub}, nil
}

// Complete derives the shared session key from the peer's public value
// and assigns path as the session's identity for codec round-tripping.
func (h *Handshake) Complete(peerPub *big.Int, path string) (*Session, error) {
	ikm := h.group.DeriveSecret(peerPub, h.priv)
	derived, err := h.backend.HKDF(cryptobackend.SHA256, ikm, nil, nil, sessionKeyLen)
	if err != nil {
		metrics.SessionHandshakesTotal.WithLabelValues(string(AlgorithmAES), "failure").Inc()
		return nil, secretdctx.Wrap(secretdctx.Protocol, "session.handshake", "derive session key", err)
	}
	defer func() {
		for i := range derived {
			derived[i] = 0
		}
	}()

	key, err := secmem.Default().Alloc("session-key", len(derived), false)
	if err != nil {
		metrics.SessionHandshakesTotal.WithLabelValues(string(AlgorithmAES), "failure").Inc()
		return nil, secretdctx.Wrap(secretdctx.OutOfMemory, "session.handshake", "allocate secure key buffer", err)
	}
	copy(key, derived)

	metrics.SessionHandshakesTotal.WithLabelValues(string(AlgorithmAES), "success").Inc()
	metrics.SessionsActive.Inc()

	if path == "" {
		path = NewObjectPath()
	}
	return &Session{backend: h.backend, Path: path, Algo: AlgorithmAES, Key: key}, nil
}

// NewPlainSession builds a session that performs no encryption, used
// when the peer rejects the DH algorithm with NOT_SUPPORTED.
func NewPlainSession(backend cryptobackend.Backend, path string) *Session {
	if path == "" {
		path = NewObjectPath()
	}
	metrics.SessionHandshakesTotal.WithLabelValues(string(AlgorithmPlain), "success").Inc()
	metrics.SessionsActive.Inc()
	return &Session{backend: backend, Path: path, Algo: AlgorithmPlain}
}

// NewObjectPath mints a fresh session object path, grounded in the same
// uuid-per-identity idiom used elsewhere in this module.
func NewObjectPath() string {
	return "/org/secretd/session/" + uuid.NewString()
}

// Close releases the session's active-session gauge slot and frees its
// secure key buffer, if any (PLAIN sessions carry none).
func (s *Session) Close() {
	if s.Key != nil {
		_ = secmem.Default().Free(s.Key)
	}
	metrics.SessionsActive.Dec()
}

// Tuple is the wire-level transport encoding of a secret value.
type Tuple struct {
	ObjectPath  string
	IV          []byte
	Ciphertext  []byte
	ContentType string
}

// Encode produces the transport tuple for value under this session's
// negotiated algorithm.
func (s *Session) Encode(value []byte, contentType string) (*Tuple, error) {
	start := time.Now()
	defer func() {
		metrics.SessionEncodeDuration.WithLabelValues("encode").Observe(time.Since(start).Seconds())
		metrics.SessionMessageSize.WithLabelValues("outbound").Observe(float64(len(value)))
	}()

	switch s.Algo {
	case AlgorithmPlain:
		return &Tuple{ObjectPath: s.Path, IV: nil, Ciphertext: value, ContentType: contentType}, nil
	case AlgorithmAES:
		iv := make([]byte, codec.BlockSize)
		if err := s.backend.CSPRNG(iv); err != nil {
			return nil, secretdctx.Wrap(secretdctx.Protocol, "session.encode", "generate iv", err)
		}
		padded := codec.PadPKCS7(value)
		ciphertext, err := s.backend.AESCBCEncrypt(s.Key, iv, padded)
		if err != nil {
			return nil, secretdctx.Wrap(secretdctx.Protocol, "session.encode", "aes-cbc", err)
		}
		return &Tuple{ObjectPath: s.Path, IV: iv, Ciphertext: ciphertext, ContentType: contentType}, nil
	default:
		return nil, secretdctx.New(secretdctx.InvalidArgument, "session.encode", "unknown algorithm")
	}
}

// Decode inverts Encode. A path mismatch returns (nil, nil): per §4.7
// this is a silent "empty" result, not an error.
func (s *Session) Decode(t *Tuple) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.SessionEncodeDuration.WithLabelValues("decode").Observe(time.Since(start).Seconds())
	}()

	if t.ObjectPath != s.Path {
		return nil, nil
	}
	metrics.SessionMessageSize.WithLabelValues("inbound").Observe(float64(len(t.Ciphertext)))

	switch s.Algo {
	case AlgorithmPlain:
		if len(t.IV) != 0 {
			return nil, secretdctx.New(secretdctx.InvalidArgument, "session.decode", "plain session carries non-empty iv")
		}
		return t.Ciphertext, nil
	case AlgorithmAES:
		if len(t.IV) != codec.BlockSize {
			return nil, secretdctx.New(secretdctx.InvalidArgument, "session.decode", "iv must be 16 bytes")
		}
		if len(t.Ciphertext) == 0 || len(t.Ciphertext)%codec.BlockSize != 0 {
			return nil, secretdctx.New(secretdctx.InvalidArgument, "session.decode", "ciphertext must be a positive multiple of 16")
		}
		padded, err := s.backend.AESCBCDecrypt(s.Key, t.IV, t.Ciphertext)
		if err != nil {
			return nil, secretdctx.Wrap(secretdctx.InvalidArgument, "session.decode", "aes-cbc", err)
		}
		plaintext, err := codec.UnpadPKCS7(padded)
		if err != nil {
			return nil, secretdctx.Wrap(secretdctx.InvalidArgument, "session.decode", "unpad", err)
		}
		return plaintext, nil
	default:
		return nil, secretdctx.New(secretdctx.InvalidArgument, "session.decode", "unknown algorithm")
	}
}
