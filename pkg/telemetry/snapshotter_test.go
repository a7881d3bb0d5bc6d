/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package telemetry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/serviceradar-admin/pkg/logger"
)

func sampleData(level uint) *Data {
	return &Data{
		ID:  "3f0c7a52-3c1e-4d55-9a55-0d6f0c1b2e11",
		App: AppInfo{Name: "serviceradar-admin", Version: "dev", UptimeSeconds: 42},
		System: &SystemInfo{
			Hostname:         "db-01.internal",
			HostID:           "a1b2c3",
			BootTime:         1700000000,
			Addresses:        []string{"10.0.0.5/24"},
			CPUCount:         8,
			MemoryTotalBytes: 1024,
		},
		Components: map[string]ComponentTelemetry{
			"storage": {
				Values: map[string]float64{"segments": 12},
				Labels: map[string]string{"path": "/var/lib/data"},
			},
		},
		Locks:        LockInfo{Write: true},
		DetailsLevel: level,
	}
}

func TestSnapshotter_SerializesCollectorAccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	collector := NewMockCollector(ctrl)

	var inFlight, maxInFlight atomic.Int32

	collector.EXPECT().
		PrepareData(gomock.Any(), uint(1)).
		DoAndReturn(func(context.Context, uint) (*Data, error) {
			n := inFlight.Add(1)

			for {
				current := maxInFlight.Load()
				if n <= current || maxInFlight.CompareAndSwap(current, n) {
					break
				}
			}

			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)

			return sampleData(1), nil
		}).
		Times(10)

	s := NewSnapshotter(collector, logger.NewTestLogger())

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := s.Snapshot(context.Background(), 1)
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestSnapshotter_AbandonedWaiterLeavesGuardUsable(t *testing.T) {
	ctrl := gomock.NewController(t)
	collector := NewMockCollector(ctrl)

	entered := make(chan struct{})
	release := make(chan struct{})

	gomock.InOrder(
		collector.EXPECT().
			PrepareData(gomock.Any(), uint(0)).
			DoAndReturn(func(context.Context, uint) (*Data, error) {
				close(entered)
				<-release

				return sampleData(0), nil
			}),
		collector.EXPECT().PrepareData(gomock.Any(), uint(0)).Return(sampleData(0), nil),
	)

	s := NewSnapshotter(collector, logger.NewTestLogger())

	done := make(chan error, 1)

	go func() {
		_, err := s.Snapshot(context.Background(), 0)
		done <- err
	}()

	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Snapshot(ctx, 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)

	_, err = s.Snapshot(context.Background(), 0)
	require.NoError(t, err)
}

func TestSnapshotter_WrapsCollectorFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	collector := NewMockCollector(ctrl)

	collector.EXPECT().PrepareData(gomock.Any(), uint(2)).Return(nil, ErrCollectorClosed)

	s := NewSnapshotter(collector, logger.NewTestLogger())

	_, err := s.Telemetry(context.Background(), false, 2)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.ErrorIs(t, err, ErrCollectorClosed)
}

func TestSnapshotter_NilDataIsServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	collector := NewMockCollector(ctrl)

	collector.EXPECT().PrepareData(gomock.Any(), uint(0)).Return(nil, nil)

	_, err := NewSnapshotter(collector, logger.NewTestLogger()).Snapshot(context.Background(), 0)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
}

func TestSnapshotter_TelemetryAnonymizes(t *testing.T) {
	ctrl := gomock.NewController(t)
	collector := NewMockCollector(ctrl)

	collector.EXPECT().PrepareData(gomock.Any(), uint(1)).Return(sampleData(1), nil)

	data, err := NewSnapshotter(collector, logger.NewTestLogger()).Telemetry(context.Background(), true, 1)
	require.NoError(t, err)

	assert.True(t, data.Anonymized)
	assert.NotEqual(t, "db-01.internal", data.System.Hostname)
}

func TestSnapshotter_MetricsUsesFixedLevel(t *testing.T) {
	ctrl := gomock.NewController(t)
	collector := NewMockCollector(ctrl)

	collector.EXPECT().
		PrepareData(gomock.Any(), MetricsDetailsLevel).
		DoAndReturn(func(context.Context, uint) (*Data, error) { return sampleData(1), nil }).
		Times(2)

	s := NewSnapshotter(collector, logger.NewTestLogger())

	first, err := s.Metrics(context.Background(), true)
	require.NoError(t, err)

	second, err := s.Metrics(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "serviceradar_locks_write 1\n")
}

func TestServiceError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &ServiceError{Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}
