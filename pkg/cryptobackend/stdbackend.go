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

package cryptobackend

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// stdBackend implements Backend over stdlib crypto plus
// golang.org/x/crypto's HKDF and PBKDF2 extensions.
type stdBackend struct{}

// Default returns the stdlib/x-crypto backed Backend implementation.
func Default() Backend {
	return stdBackend{}
}

func (stdBackend) HMACSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

func (stdBackend) HKDF(alg HashAlgorithm, ikm, salt, info []byte, l int) ([]byte, error) {
	var hkdfReader io.Reader
	switch alg {
	case SHA1:
		hkdfReader = hkdf.New(sha1.New, ikm, salt, info)
	case SHA256:
		hkdfReader = hkdf.New(sha256.New, ikm, salt, info)
	default:
		return nil, fmt.Errorf("cryptobackend: unknown hash algorithm %v", alg)
	}

	out := make([]byte, l)
	if _, err := io.ReadFull(hkdfReader, out); err != nil {
		return nil, fmt.Errorf("cryptobackend: hkdf expand: %w", err)
	}
	return out, nil
}

func (stdBackend) PBKDF2SHA256(password, salt []byte, iters, l int) []byte {
	return pbkdf2.Key(password, salt, iters, l, sha256.New)
}

func (stdBackend) AESCBCEncrypt(key, iv, data []byte) ([]byte, error) {
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("cryptobackend: aes-cbc input not block aligned")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptobackend: aes-cbc key: %w", err)
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func (stdBackend) AESCBCDecrypt(key, iv, data []byte) ([]byte, error) {
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("cryptobackend: aes-cbc input not block aligned")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptobackend: aes-cbc key: %w", err)
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func (stdBackend) AESGCMSeal(key, iv, aad, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptobackend: aes-gcm key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptobackend: aes-gcm: %w", err)
	}
	return gcm.Seal(nil, iv, plaintext, aad), nil
}

func (stdBackend) AESGCMOpen(key, iv, aad, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptobackend: aes-gcm key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptobackend: aes-gcm: %w", err)
	}
	return gcm.Open(nil, iv, ciphertext, aad)
}

func (stdBackend) DHGroup(name string) (Group, error) {
	return LookupGroup(name)
}

func (stdBackend) CSPRNG(buf []byte) error {
	_, err := rand.Read(buf)
	return err
}
