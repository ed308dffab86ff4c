// SPDX-License-Identifier: MIT

package channel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go-redis keeps background connection workers alive per client.
		goleak.IgnoreTopFunction("github.com/redis/go-redis/v9/internal/pool.(*ConnPool).reaper"),
	)
}

func setupBus(t *testing.T) *Bus {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBus(client, zerolog.Nop())
}

func TestChannelNames(t *testing.T) {
	require.Equal(t, "parley:room:42", RoomChannel(42))
	require.Equal(t, "parley:user:7", UserChannel(7))
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	bus := setupBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in, err := bus.Subscribe(ctx, "parley:room:*")
	require.NoError(t, err)

	type event struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	require.NoError(t, bus.Publish(ctx, RoomChannel(1), event{Type: "chat.message", Message: "hi"}))

	select {
	case env := <-in:
		require.Equal(t, "parley:room:1", env.Channel)
		var got event
		require.NoError(t, json.Unmarshal(env.Payload, &got))
		require.Equal(t, "hi", got.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fanout message")
	}
}

func TestSubscribePatternScoping(t *testing.T) {
	bus := setupBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in, err := bus.Subscribe(ctx, "parley:user:7")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, RoomChannel(1), map[string]string{"type": "noise"}))
	require.NoError(t, bus.Publish(ctx, UserChannel(7), map[string]string{"type": "signal"}))

	select {
	case env := <-in:
		require.Equal(t, "parley:user:7", env.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for user channel message")
	}
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	bus := setupBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	in, err := bus.Subscribe(ctx, "parley:room:*")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-in:
		require.False(t, ok, "channel should close after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not shut down")
	}
}
