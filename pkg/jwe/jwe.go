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

// Package jwe implements the flattened JSON Web Encryption shape used to
// wrap the master-key-encrypted JWE storage file: a single AES-GCM
// encryption in direct (no key-wrapping) mode.
package jwe

import (
	"encoding/json"
	"fmt"

	"github.com/sage-x-project/secretd/pkg/codec"
	"github.com/sage-x-project/secretd/pkg/cryptobackend"
)

// Header is the unprotected JWE header; this module only ever uses
// direct symmetric encryption, so alg is always "dir".
type Header struct {
	Alg string `json:"alg"`
}

// protectedHeader is the JSON serialized inside the protected value.
type protectedHeader struct {
	Enc string `json:"enc"`
}

// Envelope is the flattened JWE JSON object.
type Envelope struct {
	Protected    string `json:"protected"`
	EncryptedKey string `json:"encrypted_key"`
	IV           string `json:"iv"`
	Ciphertext   string `json:"ciphertext"`
	Tag          string `json:"tag"`
	Header       Header `json:"header"`
}

const (
	ivLen  = 12
	tagLen = 16
)

var encKeyLengths = map[string]int{
	"A128GCM": 16,
	"A192GCM": 24,
	"A256GCM": 32,
}

// SymmetricEncrypt encrypts plaintext with key under the named AES-GCM
// enc algorithm ("A128GCM", "A192GCM" or "A256GCM"), producing a
// flattened JWE envelope in direct mode (no key wrapping).
func SymmetricEncrypt(backend cryptobackend.Backend, plaintext []byte, enc string, key []byte) (*Envelope, error) {
	keyLen, ok := encKeyLengths[enc]
	if !ok {
		return nil, fmt.Errorf("jwe: unknown enc algorithm %q", enc)
	}
	if len(key) != keyLen {
		return nil, fmt.Errorf("jwe: key length %d does not match %s", len(key), enc)
	}

	protectedJSON, err := json.Marshal(protectedHeader{Enc: enc})
	if err != nil {
		return nil, fmt.Errorf("jwe: marshal protected header: %w", err)
	}
	protected := codec.EncodeBase64URL(protectedJSON)

	iv := make([]byte, ivLen)
	if err := backend.CSPRNG(iv); err != nil {
		return nil, fmt.Errorf("jwe: generate iv: %w", err)
	}

	sealed, err := backend.AESGCMSeal(key, iv, []byte(protected), plaintext)
	if err != nil {
		return nil, fmt.Errorf("jwe: seal: %w", err)
	}
	ciphertext := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	return &Envelope{
		Protected:    protected,
		EncryptedKey: "",
		IV:           codec.EncodeBase64URL(iv),
		Ciphertext:   codec.EncodeBase64URL(ciphertext),
		Tag:          codec.EncodeBase64URL(tag),
		Header:       Header{Alg: "dir"},
	}, nil
}

// SymmetricDecrypt inverts SymmetricEncrypt, authenticating against the
// protected header as AAD.
func SymmetricDecrypt(backend cryptobackend.Backend, env *Envelope, key []byte) ([]byte, error) {
	protectedJSON := codec.DecodeBase64URL(env.Protected)
	var hdr protectedHeader
	if err := json.Unmarshal(protectedJSON, &hdr); err != nil {
		return nil, fmt.Errorf("jwe: parse protected header: %w", err)
	}

	keyLen, ok := encKeyLengths[hdr.Enc]
	if !ok {
		return nil, fmt.Errorf("jwe: unknown enc algorithm %q", hdr.Enc)
	}
	if len(key) != keyLen {
		return nil, fmt.Errorf("jwe: key length %d does not match %s", len(key), hdr.Enc)
	}

	iv := codec.DecodeBase64URL(env.IV)
	if len(iv) > 16 {
		return nil, fmt.Errorf("jwe: iv too long")
	}
	tag := codec.DecodeBase64URL(env.Tag)
	if len(tag) != tagLen {
		return nil, fmt.Errorf("jwe: tag must be %d bytes, got %d", tagLen, len(tag))
	}
	ciphertext := codec.DecodeBase64URL(env.Ciphertext)

	sealed := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := backend.AESGCMOpen(key, iv, []byte(env.Protected), sealed)
	if err != nil {
		return nil, fmt.Errorf("jwe: open: %w", err)
	}
	return plaintext, nil
}

// Marshal serializes the envelope to its canonical JSON form.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal parses a flattened JWE JSON object.
func Unmarshal(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("jwe: parse envelope: %w", err)
	}
	return &env, nil
}
