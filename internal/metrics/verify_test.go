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
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	if AllocationsTotal == nil {
		t.Error("AllocationsTotal metric is nil")
	}
	if BytesInUse == nil {
		t.Error("BytesInUse metric is nil")
	}
	if BlocksTotal == nil {
		t.Error("BlocksTotal metric is nil")
	}
	if CryptoOperationDuration == nil {
		t.Error("CryptoOperationDuration metric is nil")
	}

	if SessionHandshakesTotal == nil {
		t.Error("SessionHandshakesTotal metric is nil")
	}
	if SessionsActive == nil {
		t.Error("SessionsActive metric is nil")
	}
	if SessionEncodeDuration == nil {
		t.Error("SessionEncodeDuration metric is nil")
	}
	if SessionMessageSize == nil {
		t.Error("SessionMessageSize metric is nil")
	}

	if CollectionItemsTotal == nil {
		t.Error("CollectionItemsTotal metric is nil")
	}
	if CollectionMutationsTotal == nil {
		t.Error("CollectionMutationsTotal metric is nil")
	}
	if CollectionWriteDuration == nil {
		t.Error("CollectionWriteDuration metric is nil")
	}
}

func TestMetricsIncrement(t *testing.T) {
	AllocationsTotal.WithLabelValues("ok").Inc()
	AllocationsTotal.WithLabelValues("fallback").Inc()
	BytesInUse.Set(4096)
	BlocksTotal.Inc()
	CryptoOperationDuration.WithLabelValues("pbkdf2").Observe(0.05)

	SessionHandshakesTotal.WithLabelValues("modp1024", "success").Inc()
	SessionsActive.Inc()
	SessionEncodeDuration.WithLabelValues("encode").Observe(0.001)
	SessionMessageSize.WithLabelValues("outbound").Observe(256)

	CollectionItemsTotal.Set(3)
	CollectionMutationsTotal.WithLabelValues("replace").Inc()
	CollectionWriteDuration.Observe(0.002)

	if count := testutil.CollectAndCount(AllocationsTotal); count == 0 {
		t.Error("AllocationsTotal has no metrics collected")
	}
	if count := testutil.CollectAndCount(SessionHandshakesTotal); count == 0 {
		t.Error("SessionHandshakesTotal has no metrics collected")
	}
	if count := testutil.CollectAndCount(CollectionMutationsTotal); count == 0 {
		t.Error("CollectionMutationsTotal has no metrics collected")
	}
}

func TestCollectorSnapshot(t *testing.T) {
	mc := NewMetricsCollector()
	mc.RecordAllocation(false, false, 10)
	mc.RecordAllocation(true, false, 20)
	mc.RecordHandshake(true, 100)
	mc.RecordHandshake(false, 200)
	mc.RecordCollectionWrite(5)

	snap := mc.GetSnapshot()
	if snap.AllocationCount != 2 {
		t.Errorf("expected 2 allocations, got %d", snap.AllocationCount)
	}
	if snap.FallbackCount != 1 {
		t.Errorf("expected 1 fallback, got %d", snap.FallbackCount)
	}
	if snap.GetFallbackRate() != 50 {
		t.Errorf("expected 50%% fallback rate, got %v", snap.GetFallbackRate())
	}
	if snap.GetHandshakeSuccessRate() != 50 {
		t.Errorf("expected 50%% handshake success rate, got %v", snap.GetHandshakeSuccessRate())
	}

	mc.Reset()
	snap = mc.GetSnapshot()
	if snap.AllocationCount != 0 {
		t.Error("expected reset collector to have zero allocations")
	}
}
