package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/venuelink/internal/config"
	"github.com/assist-by/venuelink/internal/logger"
	"github.com/assist-by/venuelink/internal/venue"
)

func TestSplitSymbols(t *testing.T) {
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, splitSymbols(" btcusdt, ,ETHUSDT,"))
	assert.Nil(t, splitSymbols(""))
}

func TestPickVenue(t *testing.T) {
	specs := []venue.VenueSpec{
		{Name: "binance", Kind: config.KindBinance},
		{Name: "mt", Kind: config.KindTerminal},
	}

	picked, err := pickVenue(specs, "mt")
	require.NoError(t, err)
	require.Len(t, picked, 1)
	assert.Equal(t, config.KindTerminal, picked[0].Kind)

	_, err = pickVenue(specs, "kraken")
	assert.Error(t, err)
}

type stubAdapter struct {
	venue.Adapter
	name string
}

func (s stubAdapter) Name() string { return s.name }

type waitingAdapter struct {
	stubAdapter
	ready chan struct{}
	err   error
	calls atomic.Int32
}

func (w *waitingAdapter) WaitConnected(ctx context.Context) error {
	w.calls.Add(1)
	select {
	case <-w.ready:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestWaitConnected(t *testing.T) {
	ready := make(chan struct{})
	mt := &waitingAdapter{stubAdapter: stubAdapter{name: "mt"}, ready: ready}
	adapters := map[string]venue.Adapter{
		"binance": stubAdapter{name: "binance"},
		"mt":      mt,
	}

	errc := make(chan error, 1)
	go func() { errc <- waitConnected(context.Background(), logger.Discard(), adapters, time.Second) }()

	select {
	case err := <-errc:
		t.Fatalf("로그인 전에 반환됨: %v", err)
	case <-time.After(30 * time.Millisecond):
	}
	close(ready)

	require.NoError(t, <-errc)
	assert.Equal(t, int32(1), mt.calls.Load())
}

func TestWaitConnected_Errors(t *testing.T) {
	failed := &waitingAdapter{stubAdapter: stubAdapter{name: "mt"}, ready: make(chan struct{}), err: venue.ErrConnection}
	close(failed.ready)
	err := waitConnected(context.Background(), logger.Discard(), map[string]venue.Adapter{"mt": failed}, time.Second)
	assert.ErrorIs(t, err, venue.ErrConnection)

	stuck := &waitingAdapter{stubAdapter: stubAdapter{name: "mt"}, ready: make(chan struct{})}
	err = waitConnected(context.Background(), logger.Discard(), map[string]venue.Adapter{"mt": stuck}, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
