package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/createathon/client-go/credstore"
	"github.com/createathon/client-go/domain"
	"github.com/createathon/client-go/transport"
)

func TestPollerStopsOnCancel(t *testing.T) {
	ticks := make(chan struct{}, 16)
	poller := NewPoller(5*time.Millisecond, func(ctx context.Context) error {
		ticks <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	// Wait for two ticks, then tear down.
	for i := 0; i < 2; i++ {
		select {
		case <-ticks:
		case <-time.After(2 * time.Second):
			t.Fatal("poller did not tick")
		}
	}
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}

func TestPollerKeepsGoingAfterError(t *testing.T) {
	var calls atomic.Int32
	ticks := make(chan struct{}, 16)
	poller := NewPoller(5*time.Millisecond, func(ctx context.Context) error {
		ticks <- struct{}{}
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	for i := 0; i < 3; i++ {
		select {
		case <-ticks:
		case <-time.After(2 * time.Second):
			t.Fatal("poller stopped after an error")
		}
	}
}

func TestWatchDiscussionsDeliversSnapshots(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/challenges/challenges/9/discussions/", r.URL.Path)
		n := fetches.Add(1)
		json.NewEncoder(w).Encode([]domain.Discussion{
			{ID: int(n), Challenge: 9, Content: "comment"},
		})
	}))
	defer srv.Close()

	client := NewClient(transport.New(srv.URL, credstore.NewMemStore()))

	snapshots := make(chan []domain.Discussion, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- client.WatchDiscussions(ctx, 9, 5*time.Millisecond, func(d []domain.Discussion) {
			snapshots <- d
		})
	}()

	// Immediate fetch plus at least one tick.
	for i := 0; i < 2; i++ {
		select {
		case snap := <-snapshots:
			require.Len(t, snap, 1)
		case <-time.After(2 * time.Second):
			t.Fatal("no discussion snapshot delivered")
		}
	}
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}

	assert.GreaterOrEqual(t, fetches.Load(), int32(2))
}
