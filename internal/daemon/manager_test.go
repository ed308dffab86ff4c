// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/config"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		ListenAddr:      "127.0.0.1:0",
		ReadTimeout:     2 * time.Second,
		IdleTimeout:     time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 3 * time.Second,
	}
}

func noopHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewManagerValidatesDeps(t *testing.T) {
	_, err := NewManager(testServerConfig(), Deps{Logger: testLogger()})
	require.ErrorIs(t, err, ErrMissingAPIHandler)

	_, err = NewManager(testServerConfig(), Deps{
		Logger:     testLogger(),
		APIHandler: noopHandler(),
	})
	require.NoError(t, err)
}

func TestShutdownBeforeStart(t *testing.T) {
	m, err := NewManager(testServerConfig(), Deps{
		Logger:     testLogger(),
		APIHandler: noopHandler(),
	})
	require.NoError(t, err)

	err = m.Shutdown(context.Background())
	require.ErrorIs(t, err, ErrManagerNotStarted)
}

func TestStartRunsAndStopsCleanly(t *testing.T) {
	var mu sync.Mutex
	var order []string

	workerStarted := make(chan struct{})
	m, err := NewManager(testServerConfig(), Deps{
		Logger:     testLogger(),
		APIHandler: noopHandler(),
		Workers: []Worker{{
			Name: "test-worker",
			Run: func(ctx context.Context) error {
				close(workerStarted)
				<-ctx.Done()
				mu.Lock()
				order = append(order, "worker")
				mu.Unlock()
				return nil
			},
		}},
	})
	require.NoError(t, err)

	m.RegisterShutdownHook("first", func(context.Context) error {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
		return nil
	})
	m.RegisterShutdownHook("second", func(context.Context) error {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	select {
	case <-workerStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never started")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop")
	}

	// Workers stop before hooks, hooks run LIFO.
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"worker", "second", "first"}, order)
}

func TestDoubleStartRejected(t *testing.T) {
	m, err := NewManager(testServerConfig(), Deps{
		Logger:     testLogger(),
		APIHandler: noopHandler(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	err = m.Start(context.Background())
	require.Error(t, err)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop")
	}
}
