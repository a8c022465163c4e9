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

// Package secmem implements a page-locked heap for secret buffers:
// guard-bounded cells, coalescing free-lists, and a debug-introspection
// interface, so plaintext key material never gets paged out to disk.
package secmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	wordSize         = 8
	guardWords       = 2
	defaultBlockSize = 16384
	wasteWords       = 4
)

// MinBlockSize is the minimum mmap'd block size newBlock rounds up to.
// SetMinBlockSize overrides it from SecretdConfig.AllocatorBlockSize.
var MinBlockSize = defaultBlockSize

// SetMinBlockSize overrides MinBlockSize, e.g. from
// SecretdConfig.AllocatorBlockSize. Only takes effect for blocks mmap'd
// after the call.
func SetMinBlockSize(n int) {
	if n > 0 {
		MinBlockSize = n
	}
}

// cellState is one allocation record. Unlike the original C
// implementation, which locates a cell from a raw pointer via a guard
// word storing &cell, this port keeps cell metadata in ordinary
// (non-locked) Go memory addressed by a stable pointer, kept in a
// word-offset-ordered slice per block; each cell records its own slice
// position (idx), so physical-neighbor lookup during coalescing is O(1) —
// the index-based arena model the design favors over literal pointer
// arithmetic.
type cellState struct {
	id        uint64
	tag       string
	isString  bool
	requested int
	start     int // word offset of the leading guard word
	nWords    int // total words, including both guard words
	used      bool
	idx       int // position in the owning block's cells slice
}

// dataWords is the number of words available to the caller, excluding
// the two guard words.
func (c *cellState) dataWords() int {
	return c.nWords - guardWords
}

// block is one mmap'd, mlock'd arena. It is destroyed once its last
// cell is freed.
type block struct {
	words   []byte
	nWords  int
	nUsed   int
	cells   []*cellState // ordered by start, contiguous over [0, nWords)
	mlocked bool
}

func pageAlign(n, pageSize int) int {
	if pageSize <= 0 {
		pageSize = 4096
	}
	return ((n + pageSize - 1) / pageSize) * pageSize
}

// newBlock mmaps and mlocks a fresh arena of at least minBytes, rounded
// up to MinBlockSize and the OS page size.
func newBlock(minBytes int) (*block, error) {
	size := minBytes
	if size < MinBlockSize {
		size = MinBlockSize
	}
	size = pageAlign(size, unix.Getpagesize())

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("secmem: mmap %d bytes: %w", size, err)
	}
	if err := unix.Mlock(data); err != nil {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("secmem: mlock %d bytes: %w", size, err)
	}

	nWords := size / wordSize
	b := &block{
		words:   data,
		nWords:  nWords,
		mlocked: true,
		cells:   []*cellState{{start: 0, nWords: nWords, idx: 0}},
	}
	return b, nil
}

func (b *block) destroy() {
	if b.mlocked {
		_ = unix.Munlock(b.words)
	}
	_ = unix.Munmap(b.words)
	b.words = nil
}

// indexOf returns c's position in b.cells in O(1), reading the cell's
// own maintained idx field rather than scanning.
func (b *block) indexOf(c *cellState) int {
	if c.idx < 0 || c.idx >= len(b.cells) || b.cells[c.idx] != c {
		return -1
	}
	return c.idx
}

// spliceCells replaces cells[at:at+removed] with inserted, preserving the
// O(1) indexOf invariant by reindexing every cell from at onward.
func (b *block) spliceCells(at, removed int, inserted ...*cellState) {
	tail := append([]*cellState{}, b.cells[at+removed:]...)
	b.cells = append(b.cells[:at], append(inserted, tail...)...)
	for i := at; i < len(b.cells); i++ {
		b.cells[i].idx = i
	}
}
