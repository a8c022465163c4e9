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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AllocationsTotal tracks secure allocator requests by outcome.
	AllocationsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "secmem",
			Name:      "allocations_total",
			Help:      "Total number of secure memory allocation requests",
		},
		[]string{"result"}, // ok, fallback, oom
	)

	// BytesInUse tracks bytes currently checked out of the secure heap.
	BytesInUse = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "secmem",
			Name:      "bytes_in_use",
			Help:      "Bytes currently allocated from secure memory blocks",
		},
	)

	// BlocksTotal tracks the number of mmap'd/mlock'd blocks backing the heap.
	BlocksTotal = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "secmem",
			Name:      "blocks_total",
			Help:      "Number of secure memory blocks currently mapped",
		},
	)

	// CryptoOperationDuration tracks primitive operation durations.
	CryptoOperationDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "operation_duration_seconds",
			Help:      "Cryptographic primitive duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 15), // 10µs to 163ms
		},
		[]string{"operation"}, // pbkdf2, hkdf, aes_cbc, aes_gcm, modp_dh
	)
)
