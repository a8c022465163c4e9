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

// Package codec implements the low-level wire encodings shared by the
// keyring file format and the JWE envelope: unpadded base64url, hex, and
// PKCS#7 padding, plus a constant-time byte comparison.
package codec

const b64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

var b64Decode [256]int8

func init() {
	for i := range b64Decode {
		b64Decode[i] = -1
	}
	for i := 0; i < len(b64Alphabet); i++ {
		b64Decode[b64Alphabet[i]] = int8(i)
	}
}

// EncodeBase64URL encodes data using the unpadded URL-safe alphabet
// (RFC 4648 §5 without the trailing '=' characters).
func EncodeBase64URL(data []byte) string {
	out := make([]byte, 0, (len(data)*4+2)/3)
	for i := 0; i < len(data); i += 3 {
		remaining := len(data) - i
		b0 := data[i]
		var b1, b2 byte
		if remaining > 1 {
			b1 = data[i+1]
		}
		if remaining > 2 {
			b2 = data[i+2]
		}

		out = append(out, b64Alphabet[b0>>2])
		out = append(out, b64Alphabet[(b0&0x03)<<4|(b1>>4)])
		if remaining > 1 {
			out = append(out, b64Alphabet[(b1&0x0f)<<2|(b2>>6)])
		}
		if remaining > 2 {
			out = append(out, b64Alphabet[b2&0x3f])
		}
	}
	return string(out)
}

// DecodeBase64URL decodes a URL-safe base64 string with no padding. Any
// byte outside the URL-safe alphabet terminates decoding without error —
// a tolerant decode matching the source format's in-place decoder, which
// treats undecodable trailing bytes as end of input rather than failing.
func DecodeBase64URL(s string) []byte {
	out := make([]byte, 0, len(s)*3/4+3)
	var buf uint32
	var bits int

	for i := 0; i < len(s); i++ {
		v := b64Decode[s[i]]
		if v < 0 {
			break
		}
		buf = buf<<6 | uint32(v)
		bits += 6
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buf>>uint(bits)))
		}
	}
	return out
}
