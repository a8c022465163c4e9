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
	"crypto/rand"
	"fmt"
	"math/big"
)

// Group is an IKE MODP Diffie-Hellman parameter set: a safe prime p and
// a generator g, both from RFC 3526 / RFC 2409.
type Group struct {
	Name      string
	Prime     *big.Int
	Generator *big.Int
	Bits      int
}

// ByteLen is the big-endian encoded length of the prime.
func (g Group) ByteLen() int {
	return (g.Bits + 7) / 8
}

// GenPair draws a private exponent and returns it alongside the
// corresponding public value g^x mod p. The private exponent is a
// random, non-zero value of the prime's byte length with its top bit
// cleared so it stays strictly below the prime.
func (g Group) GenPair() (priv, pub *big.Int, err error) {
	byteLen := g.ByteLen()
	buf := make([]byte, byteLen)
	for {
		if _, err := rand.Read(buf); err != nil {
			return nil, nil, fmt.Errorf("cryptobackend: dh private key: %w", err)
		}
		// Clear the top bit so the value is strictly less than p,
		// whose own top bit is always set for these safe primes.
		buf[0] &^= 0x80
		priv = new(big.Int).SetBytes(buf)
		if priv.Sign() != 0 {
			break
		}
	}
	pub = new(big.Int).Exp(g.Generator, priv, g.Prime)
	return priv, pub, nil
}

// DeriveSecret computes peerPub^myPriv mod p and left-pads the result to
// the prime's byte length, as required for HKDF input keying material.
func (g Group) DeriveSecret(peerPub, myPriv *big.Int) []byte {
	shared := new(big.Int).Exp(peerPub, myPriv, g.Prime)
	out := make([]byte, g.ByteLen())
	shared.FillBytes(out)
	return out
}

// modpGroups holds the IKE groups this implementation has the published
// RFC 3526/2409 constants for. Group 2 (1024-bit) is the one the session
// handshake (§4.7) actually negotiates; group 14 (2048-bit) is carried
// for callers that want a stronger parameter set. Groups 1, 5, 15, 16
// and 18 are named in the contract but their multi-kilobit prime
// constants are not reproduced here — see DESIGN.md.
var modpGroups = map[string]Group{}

func init() {
	two := big.NewInt(2)

	p1024, ok := new(big.Int).SetString(hexGroup2, 16)
	if !ok {
		panic("cryptobackend: invalid group2 prime constant")
	}
	modpGroups["modp1024"] = Group{Name: "modp1024", Prime: p1024, Generator: two, Bits: 1024}

	p2048, ok := new(big.Int).SetString(hexGroup14, 16)
	if !ok {
		panic("cryptobackend: invalid group14 prime constant")
	}
	modpGroups["modp2048"] = Group{Name: "modp2048", Prime: p2048, Generator: two, Bits: 2048}
}

// LookupGroup resolves an IANA/IKE group name to its parameters.
func LookupGroup(name string) (Group, error) {
	g, ok := modpGroups[name]
	if !ok {
		return Group{}, fmt.Errorf("cryptobackend: unsupported dh group %q", name)
	}
	return g, nil
}

// RFC 3526 / RFC 2409 well-known safe primes, generator 2.
const (
	hexGroup2 = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
		"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
		"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
		"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
		"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381" +
		"FFFFFFFFFFFFFFFF"

	hexGroup14 = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
		"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
		"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
		"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
		"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D" +
		"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F" +
		"83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
		"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
		"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9" +
		"DE2BCBF69558171839954974EA956AE515D2261898FA0510" +
		"15728E5A8AACAA68FFFFFFFFFFFFFFFF"
)
