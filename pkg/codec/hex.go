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

package codec

import "fmt"

const hexLower = "0123456789abcdef"
const hexUpper = "0123456789ABCDEF"

// EncodeHex renders data as hex digits, inserting sep after every group
// of g bytes (g <= 0 disables grouping). upper selects the digit case.
func EncodeHex(data []byte, g int, upper bool, sep string) string {
	alphabet := hexLower
	if upper {
		alphabet = hexUpper
	}

	out := make([]byte, 0, len(data)*2+len(data)/max(g, 1)*len(sep))
	for i, b := range data {
		if g > 0 && i > 0 && i%g == 0 {
			out = append(out, sep...)
		}
		out = append(out, alphabet[b>>4], alphabet[b&0x0f])
	}
	return string(out)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// DecodeHex parses a hex string with no separators, failing on any
// non-hex nibble or odd length.
func DecodeHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("codec: odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, ok := hexNibble(s[i*2])
		if !ok {
			return nil, fmt.Errorf("codec: invalid hex nibble %q", s[i*2])
		}
		lo, ok := hexNibble(s[i*2+1])
		if !ok {
			return nil, fmt.Errorf("codec: invalid hex nibble %q", s[i*2+1])
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
