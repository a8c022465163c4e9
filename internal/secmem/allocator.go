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

package secmem

import (
	"encoding/binary"
	"sync"
	"unsafe"

	"github.com/sage-x-project/secretd/internal/logger"
	"github.com/sage-x-project/secretd/internal/metrics"
	"github.com/sage-x-project/secretd/pkg/secretdctx"
)

// maxRequest refuses allocations larger than this many bytes, per the
// 2^31-byte request ceiling.
const maxRequest = 1 << 31

// FallbackFunc mirrors a reallocating allocator's contract: ptr=nil
// allocates, len=0 frees, otherwise it resizes. The caller owns the
// returned memory's lifecycle once fallback is in play.
type FallbackFunc func(ptr []byte, length int) ([]byte, error)

// Record is a debug snapshot entry for one live allocation.
type Record struct {
	Tag         string
	Requested   int
	BlockLength int
}

type cellRef struct {
	block *block
	cell  *cellState
}

// Allocator serializes every operation on one process-wide mutex, as
// the contract requires: operations are short and uninterruptible.
type Allocator struct {
	mu            sync.Mutex
	blocks        []*block
	ptrIndex      map[uintptr]cellRef
	nextID        uint64
	fallback      FallbackFunc
	useFallback   bool
	forceFallback bool
	log           logger.Logger

	mlockWarnOnce sync.Once
}

// New creates an allocator. If forceFallback is set (SECMEM_FORCE_FALLBACK),
// every allocation skips the secure heap and goes straight to fallback,
// for tests that want to exercise the non-secure path deterministically.
func New(fallback FallbackFunc, forceFallback bool) *Allocator {
	return &Allocator{
		ptrIndex:      make(map[uintptr]cellRef),
		fallback:      fallback,
		useFallback:   fallback != nil,
		forceFallback: forceFallback,
		log:           logger.GetDefaultLogger(),
	}
}

var (
	defaultMu    sync.Mutex
	defaultInst  *Allocator
	defaultForce bool
)

// Default returns the process-wide secure allocator, constructing it on
// first use. It is the allocator pkg/keyring, pkg/secretservice, and
// pkg/session use for master keys, storage keys, session keys, and
// decoded secret plaintext, so a locked-memory failure degrades to the
// ordinary Go heap rather than making those callers handle OutOfMemory
// themselves.
func Default() *Allocator {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultInst == nil {
		defaultInst = New(heapFallback, defaultForce)
	}
	return defaultInst
}

// SetForceFallback configures whether the process-wide allocator returned
// by Default skips the secure heap entirely, mirroring
// SecretdConfig.ForceFallback / SECMEM_FORCE_FALLBACK. Only takes effect
// before the first call to Default.
func SetForceFallback(v bool) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultForce = v
}

// heapFallback is the process-wide allocator's fallback: an ordinary,
// unlocked Go heap allocation, zeroed on free since the secure arena's
// poison-on-free guarantee should hold even in the degraded path.
func heapFallback(ptr []byte, length int) ([]byte, error) {
	if length == 0 {
		for i := range ptr {
			ptr[i] = 0
		}
		return nil, nil
	}
	return make([]byte, length), nil
}

func addressOf(data []byte) uintptr {
	return uintptr(unsafe.Pointer(&data[0]))
}

// Alloc returns length bytes of zeroed, guard-bounded secure memory. If
// isString is set, Free poisons the region with 0xAA instead of 0x00.
func (a *Allocator) Alloc(tag string, length int, isString bool) ([]byte, error) {
	if length <= 0 {
		return nil, secretdctx.New(secretdctx.InvalidArgument, "secmem.alloc", "length must be positive")
	}
	if length > maxRequest {
		return nil, secretdctx.New(secretdctx.InvalidArgument, "secmem.alloc", "request exceeds maximum size")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.forceFallback {
		return a.allocFallback(tag, length)
	}

	nDataWords := (length + wordSize - 1) / wordSize
	want := nDataWords + guardWords

	for _, b := range a.blocks {
		for _, c := range b.cells {
			if !c.used && c.nWords >= want {
				data := a.commitCell(b, c, tag, length, isString, nDataWords, want)
				metrics.AllocationsTotal.WithLabelValues("ok").Inc()
				metrics.BytesInUse.Add(float64(length))
				return data, nil
			}
		}
	}

	b, err := newBlock(want * wordSize)
	if err != nil {
		a.mlockWarnOnce.Do(func() {
			a.log.Warn("secmem: failed to lock secure memory block", logger.Error(err))
		})
		return a.allocFallback(tag, length)
	}
	a.blocks = append(a.blocks, b)
	metrics.BlocksTotal.Set(float64(len(a.blocks)))

	data := a.commitCell(b, b.cells[0], tag, length, isString, nDataWords, want)
	metrics.AllocationsTotal.WithLabelValues("ok").Inc()
	metrics.BytesInUse.Add(float64(length))
	return data, nil
}

func (a *Allocator) allocFallback(tag string, length int) ([]byte, error) {
	if !a.useFallback {
		metrics.AllocationsTotal.WithLabelValues("oom").Inc()
		return nil, secretdctx.New(secretdctx.OutOfMemory, "secmem.alloc", "secure memory exhausted, no fallback installed")
	}
	data, err := a.fallback(nil, length)
	if err != nil {
		metrics.AllocationsTotal.WithLabelValues("oom").Inc()
		return nil, secretdctx.Wrap(secretdctx.OutOfMemory, "secmem.alloc", "fallback allocation failed", err)
	}
	for i := range data {
		data[i] = 0
	}
	metrics.AllocationsTotal.WithLabelValues("fallback").Inc()
	return data, nil
}

// commitCell splits cell if there's enough slack, marks it used, writes
// its guard words, zeroes the data region, and indexes it by address.
func (a *Allocator) commitCell(b *block, c *cellState, tag string, length int, isString bool, nDataWords, want int) []byte {
	if c.nWords-want > wasteWords {
		remainder := &cellState{start: c.start + want, nWords: c.nWords - want}
		idx := b.indexOf(c)
		c.nWords = want
		b.spliceCells(idx+1, 0, remainder)
	}

	a.nextID++
	c.id = a.nextID
	c.tag = tag
	c.isString = isString
	c.requested = length
	c.used = true
	writeGuards(b, c)

	dataStart := (c.start + 1) * wordSize
	dataRegion := b.words[dataStart : dataStart+nDataWords*wordSize]
	for i := range dataRegion {
		dataRegion[i] = 0
	}
	data := dataRegion[:length:len(dataRegion)]

	b.nUsed++
	a.ptrIndex[addressOf(data)] = cellRef{block: b, cell: c}
	return data
}

func writeGuards(b *block, c *cellState) {
	binary.LittleEndian.PutUint64(b.words[c.start*wordSize:], c.id)
	lastGuard := c.start + c.nWords - 1
	binary.LittleEndian.PutUint64(b.words[lastGuard*wordSize:], c.id)
}

// Free zeroes and releases a buffer previously returned by Alloc or
// Realloc. A buffer that did not come from this allocator (e.g. one
// handed out through the fallback path) is passed to the fallback with
// length 0 when fallback handling is installed, and is an error
// otherwise.
func (a *Allocator) Free(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ref, ok := a.ptrIndex[addressOf(data)]
	if !ok {
		if a.useFallback {
			_, err := a.fallback(data, 0)
			return err
		}
		return secretdctx.New(secretdctx.InvalidArgument, "secmem.free", "pointer does not belong to any block")
	}

	b, c := ref.block, ref.cell
	poison := byte(0x00)
	if c.isString {
		poison = 0xAA
	}
	dataStart := (c.start + 1) * wordSize
	region := b.words[dataStart : dataStart+c.dataWords()*wordSize]
	for i := range region {
		region[i] = poison
	}

	delete(a.ptrIndex, addressOf(data))
	metrics.BytesInUse.Sub(float64(c.requested))
	c.used = false
	c.tag = ""
	c.requested = 0
	c.id = 0
	b.nUsed--

	a.coalesce(b, c)

	if b.nUsed == 0 {
		a.destroyBlock(b)
	}

	return nil
}

// coalesce merges c with its immediate physical neighbors if they are
// also free.
func (a *Allocator) coalesce(b *block, c *cellState) {
	idx := b.indexOf(c)
	if idx < 0 {
		return
	}

	if idx+1 < len(b.cells) && !b.cells[idx+1].used {
		next := b.cells[idx+1]
		c.nWords += next.nWords
		b.spliceCells(idx+1, 1)
	}
	if idx > 0 && !b.cells[idx-1].used {
		prev := b.cells[idx-1]
		prev.nWords += c.nWords
		b.spliceCells(idx, 1)
	}
}

func (a *Allocator) destroyBlock(b *block) {
	for i, other := range a.blocks {
		if other == b {
			a.blocks = append(a.blocks[:i], a.blocks[i+1:]...)
			break
		}
	}
	b.destroy()
	metrics.BlocksTotal.Set(float64(len(a.blocks)))
}

// Realloc resizes data to newLen, preserving its prior bytes. This
// implementation always allocates fresh memory and copies; shrink-in-
// place and grow-by-stealing are valid alternate strategies the
// contract permits but are not required.
func (a *Allocator) Realloc(tag string, data []byte, newLen int, isString bool) ([]byte, error) {
	if newLen == 0 {
		return nil, a.Free(data)
	}
	newData, err := a.Alloc(tag, newLen, isString)
	if err != nil {
		return nil, err
	}
	n := len(data)
	if newLen < n {
		n = newLen
	}
	copy(newData, data[:n])
	if err := a.Free(data); err != nil {
		return nil, err
	}
	return newData, nil
}

// Check reports whether data was returned by this allocator and is
// still live.
func (a *Allocator) Check(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.ptrIndex[addressOf(data)]
	return ok
}

// Validate walks every block and asserts the ring invariants, returning
// the first violation found.
func (a *Allocator) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, b := range a.blocks {
		sum := 0
		for _, c := range b.cells {
			if c.start != sum {
				return secretdctx.New(secretdctx.Protocol, "secmem.validate", "cells are not contiguous")
			}
			sum += c.nWords

			if c.used {
				if c.requested <= 0 || c.requested > c.dataWords()*wordSize {
					return secretdctx.New(secretdctx.Protocol, "secmem.validate", "requested size out of bounds")
				}
				g1 := binary.LittleEndian.Uint64(b.words[c.start*wordSize:])
				g2 := binary.LittleEndian.Uint64(b.words[(c.start+c.nWords-1)*wordSize:])
				if g1 != c.id || g2 != c.id {
					return secretdctx.New(secretdctx.Protocol, "secmem.validate", "guard word mismatch")
				}
			} else if c.requested != 0 || c.tag != "" {
				return secretdctx.New(secretdctx.Protocol, "secmem.validate", "free cell carries stale metadata")
			}
		}
		if sum != b.nWords {
			return secretdctx.New(secretdctx.Protocol, "secmem.validate", "cells do not cover the whole block")
		}
	}
	return nil
}

// Records returns a debug snapshot of every live allocation.
func (a *Allocator) Records() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []Record
	for _, b := range a.blocks {
		for _, c := range b.cells {
			if c.used {
				out = append(out, Record{Tag: c.tag, Requested: c.requested, BlockLength: b.nWords * wordSize})
			}
		}
	}
	return out
}
