package hub

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/websubhub/pkg/subscription"
)

var pendingKey = subscription.Key{Topic: "http://t.example/feed", Callback: "http://s.example/cb"}

func TestPending_SingleRequest(t *testing.T) {
	p := NewPending(time.Minute)

	seq := p.Track(pendingKey)
	assert.Equal(t, 1, p.Count())

	calls := 0
	applied, err := p.Settle(pendingKey, seq, true, func() error { calls++; return nil })
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, p.Count(), "settled entries are not outstanding")
}

func TestPending_UnconfirmedNotApplied(t *testing.T) {
	p := NewPending(time.Minute)

	seq := p.Track(pendingKey)
	applied, err := p.Settle(pendingKey, seq, false, func() error {
		t.Fatal("apply called for unconfirmed request")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 0, p.Count())
}

func TestPending_LaterRequestWins(t *testing.T) {
	p := NewPending(time.Minute)

	first := p.Track(pendingKey)
	second := p.Track(pendingKey)
	assert.Less(t, first, second)

	var order []uint64
	apply := func(seq uint64) func() error {
		return func() error { order = append(order, seq); return nil }
	}

	// the later request settles first; the earlier outcome is stale
	applied, err := p.Settle(pendingKey, second, true, apply(second))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 1, p.Count(), "first request still outstanding")

	applied, err = p.Settle(pendingKey, first, true, apply(first))
	require.NoError(t, err)
	assert.False(t, applied)

	assert.Equal(t, []uint64{second}, order)
	assert.Equal(t, 0, p.Count())
}

func TestPending_InOrderBothApplied(t *testing.T) {
	p := NewPending(time.Minute)

	first := p.Track(pendingKey)
	second := p.Track(pendingKey)

	var order []uint64
	for _, seq := range []uint64{first, second} {
		applied, err := p.Settle(pendingKey, seq, true, func() error { order = append(order, seq); return nil })
		require.NoError(t, err)
		assert.True(t, applied)
	}
	assert.Equal(t, []uint64{first, second}, order)
}

func TestPending_EarlierAppliesWhenLaterFails(t *testing.T) {
	p := NewPending(time.Minute)

	first := p.Track(pendingKey)
	second := p.Track(pendingKey)

	applied, err := p.Settle(pendingKey, second, false, nil)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = p.Settle(pendingKey, first, true, func() error { return nil })
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestPending_ApplyError(t *testing.T) {
	p := NewPending(time.Minute)
	boom := errors.New("boom")

	seq := p.Track(pendingKey)
	applied, err := p.Settle(pendingKey, seq, true, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, applied)
	assert.Equal(t, 0, p.Count())
}

func TestPending_ConfirmedAfterExpiryApplied(t *testing.T) {
	p := NewPending(20 * time.Millisecond)

	seq := p.Track(pendingKey)
	time.Sleep(50 * time.Millisecond)

	applied, err := p.Settle(pendingKey, seq, true, func() error { return nil })
	require.NoError(t, err)
	assert.True(t, applied, "expiry alone never drops a confirmed outcome")
	assert.Equal(t, 0, p.Count())
}

func TestPending_BeginRestartsExpiry(t *testing.T) {
	p := NewPending(100 * time.Millisecond)

	first := p.Track(pendingKey)
	second := p.Track(pendingKey)
	time.Sleep(70 * time.Millisecond)

	// the entry would expire while second is still verifying
	p.Begin(pendingKey, second)
	time.Sleep(70 * time.Millisecond)

	applied, err := p.Settle(pendingKey, second, true, func() error { return nil })
	require.NoError(t, err)
	assert.True(t, applied)

	// the applied watermark survived, so the older outcome is still superseded
	applied, err = p.Settle(pendingKey, first, true, func() error {
		t.Fatal("apply called for superseded request")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestPending_StaleOutcomeAfterExpiry(t *testing.T) {
	p := NewPending(20 * time.Millisecond)

	stale := p.Track(pendingKey)
	time.Sleep(50 * time.Millisecond)

	// a request accepted after expiry is tracked afresh
	fresh := p.Track(pendingKey)
	assert.Equal(t, 1, p.Count())

	applied, err := p.Settle(pendingKey, fresh, true, func() error { return nil })
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 0, p.Count())

	// the expired request verifies last; the later request was already applied
	applied, err = p.Settle(pendingKey, stale, true, func() error {
		t.Fatal("apply called for superseded request")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 0, p.Count())
}

func TestPending_KeysIndependent(t *testing.T) {
	p := NewPending(time.Minute)
	other := subscription.Key{Topic: pendingKey.Topic, Callback: "http://other.example/cb"}

	a := p.Track(pendingKey)
	b := p.Track(other)
	assert.Equal(t, 2, p.Count())

	// applying b does not supersede a
	applied, err := p.Settle(other, b, true, func() error { return nil })
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = p.Settle(pendingKey, a, true, func() error { return nil })
	require.NoError(t, err)
	assert.True(t, applied)
}
