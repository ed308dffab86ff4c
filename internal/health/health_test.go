// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/store"
)

type staticChecker struct {
	name   string
	result CheckResult
}

func (c staticChecker) Name() string                      { return c.name }
func (c staticChecker) Check(context.Context) CheckResult { return c.result }

func TestReadyAggregation(t *testing.T) {
	m := NewManager("test")
	require.True(t, m.Ready(context.Background()).Ready)

	m.RegisterChecker(staticChecker{"a", CheckResult{Status: StatusHealthy}})
	m.RegisterChecker(staticChecker{"b", CheckResult{Status: StatusDegraded}})
	resp := m.Ready(context.Background())
	require.True(t, resp.Ready)
	require.Equal(t, StatusDegraded, resp.Status)

	m.RegisterChecker(staticChecker{"c", CheckResult{Status: StatusUnhealthy, Error: "down"}})
	resp = m.Ready(context.Background())
	require.False(t, resp.Ready)
	require.Equal(t, StatusUnhealthy, resp.Status)
	require.Len(t, resp.Checks, 3)
}

func TestServeHealthAlways200(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{"down", CheckResult{Status: StatusUnhealthy}})

	w := httptest.NewRecorder()
	m.ServeHealth(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, StatusHealthy, resp.Status)
	require.Equal(t, "test", resp.Version)
}

func TestServeReady503WhenUnhealthy(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{"down", CheckResult{Status: StatusUnhealthy, Error: "nope"}})

	w := httptest.NewRecorder()
	m.ServeReady(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRedisChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisChecker(client)
	require.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	mr.Close()
	require.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)
}

func TestDatabaseChecker(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "parley.sqlite"), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := NewDatabaseChecker(db)
	require.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
}

func TestDirChecker(t *testing.T) {
	dir := t.TempDir()
	c := NewDirChecker("data", dir)
	require.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	missing := NewDirChecker("data", filepath.Join(dir, "nope"))
	require.Equal(t, StatusUnhealthy, missing.Check(context.Background()).Status)
}
