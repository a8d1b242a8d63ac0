package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/websubhub/internal/store/mock_store"
)

func TestReaper_Reap(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock_store.NewMockStore(ctrl)
	logger, _ := test.NewNullLogger()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewReaper(store, time.Minute, logger)
	r.now = func() time.Time { return now }

	store.EXPECT().DeleteExpired(gomock.Any(), now).Return(3, nil)
	n, err := r.Reap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	boom := errors.New("boom")
	store.EXPECT().DeleteExpired(gomock.Any(), now).Return(0, boom)
	_, err = r.Reap(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestReaper_RunUntilCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock_store.NewMockStore(ctrl)
	logger, _ := test.NewNullLogger()

	reaped := make(chan struct{}, 10)
	store.EXPECT().DeleteExpired(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, now time.Time) (int, error) {
		select {
		case reaped <- struct{}{}:
		default:
		}
		return 0, nil
	}).MinTimes(2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewReaper(store, 10*time.Millisecond, logger).Run(ctx)
	}()

	<-reaped
	<-reaped
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
