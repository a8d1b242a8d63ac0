package distributor

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryLog_AppendAssignsTopicOffsets(t *testing.T) {
	log := NewDeliveryLog(10)
	defer log.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := log.Append(ctx, Delivery{Topic: "a", Callback: "http://cb", StatusCode: http.StatusOK})
		require.NoError(t, err)
		assert.Equal(t, int64(i), d.Offset)
	}

	d, err := log.Append(ctx, Delivery{Topic: "b", Callback: "http://cb", StatusCode: http.StatusOK})
	require.NoError(t, err)
	assert.Equal(t, int64(0), d.Offset, "topics have independent sequences")

	assert.Equal(t, int64(3), log.EndOffset("a"))
	assert.Equal(t, int64(1), log.EndOffset("b"))
	assert.Equal(t, int64(0), log.EndOffset("c"))
}

func TestDeliveryLog_EvictsOldest(t *testing.T) {
	log := NewDeliveryLog(3)
	defer log.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := log.Append(ctx, Delivery{Topic: "a", StatusCode: http.StatusOK})
		require.NoError(t, err)
	}

	entries, err := log.Read(ctx, "a", 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(2), entries[0].Offset)
	assert.Equal(t, int64(4), entries[2].Offset)

	assert.Equal(t, Counts{Delivered: 5}, log.Counts(), "counts include evicted entries")
}

func TestDeliveryLog_Read(t *testing.T) {
	log := NewDeliveryLog(10)
	defer log.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := log.Append(ctx, Delivery{Topic: "a", StatusCode: http.StatusOK})
		require.NoError(t, err)
	}

	tests := []struct {
		name     string
		start    int64
		max      int
		expected []int64
		err      error
	}{
		{"from start", 0, 10, []int64{0, 1, 2, 3, 4}, nil},
		{"from offset", 3, 10, []int64{3, 4}, nil},
		{"limited", 1, 2, []int64{1, 2}, nil},
		{"zero max", 0, 0, []int64{}, nil},
		{"past end", 9, 10, []int64{}, nil},
		{"negative offset", -1, 10, nil, ErrNegativeOffset},
		{"negative max", 0, -1, nil, ErrNegativeMaxCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := log.Read(ctx, "a", tt.start, tt.max)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			offsets := make([]int64, 0, len(entries))
			for _, e := range entries {
				offsets = append(offsets, e.Offset)
			}
			assert.Equal(t, tt.expected, offsets)
		})
	}
}

func TestDeliveryLog_RecentNewestFirst(t *testing.T) {
	log := NewDeliveryLog(10)
	defer log.Close()
	ctx := context.Background()

	base := time.Now()
	_, _ = log.Append(ctx, Delivery{Topic: "a", Callback: "1", At: base})
	_, _ = log.Append(ctx, Delivery{Topic: "b", Callback: "2", At: base.Add(time.Second)})
	_, _ = log.Append(ctx, Delivery{Topic: "a", Callback: "3", At: base.Add(2 * time.Second)})

	entries, err := log.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "3", entries[0].Callback)
	assert.Equal(t, "2", entries[1].Callback)
}

func TestDeliveryLog_FailedCounts(t *testing.T) {
	log := NewDeliveryLog(10)
	defer log.Close()
	ctx := context.Background()

	_, _ = log.Append(ctx, Delivery{Topic: "a", StatusCode: http.StatusOK})
	_, _ = log.Append(ctx, Delivery{Topic: "a", StatusCode: http.StatusUnauthorized})
	_, _ = log.Append(ctx, Delivery{Topic: "a", Error: "timeout"})

	assert.Equal(t, Counts{Delivered: 1, Failed: 2}, log.Counts())
}

func TestDeliveryLog_Closed(t *testing.T) {
	log := NewDeliveryLog(10)
	require.NoError(t, log.Close())
	require.NoError(t, log.Close())

	_, err := log.Append(context.Background(), Delivery{Topic: "a"})
	assert.ErrorIs(t, err, ErrLogClosed)

	_, err = log.Read(context.Background(), "a", 0, 1)
	assert.ErrorIs(t, err, ErrLogClosed)

	_, err = log.Recent(context.Background(), 1)
	assert.ErrorIs(t, err, ErrLogClosed)
}

func TestDeliveryLog_CancelledContext(t *testing.T) {
	log := NewDeliveryLog(10)
	defer log.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := log.Append(ctx, Delivery{Topic: "a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeliveryLog_ConcurrentAppends(t *testing.T) {
	log := NewDeliveryLog(1000)
	defer log.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = log.Append(ctx, Delivery{Topic: "a", StatusCode: http.StatusOK})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(500), log.EndOffset("a"))
	entries, err := log.Read(ctx, "a", 0, 1000)
	require.NoError(t, err)
	assert.Len(t, entries, 500)
}
