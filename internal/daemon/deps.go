// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

// Deps contains everything the daemon Manager runs.
type Deps struct {
	// Logger is the structured logger for the daemon.
	Logger zerolog.Logger

	// APIHandler is the HTTP handler for the API server.
	APIHandler http.Handler

	// MetricsHandler serves Prometheus metrics on its own listener
	// (nil disables the metrics server).
	MetricsHandler http.Handler

	// MetricsAddr is the metrics listen address, e.g. ":9090".
	MetricsAddr string

	// Workers are long-running background loops (the broadcast hub, the
	// config watcher). Each runs in its own goroutine and must return
	// when its context is cancelled.
	Workers []Worker
}

// Worker is a named background loop.
type Worker struct {
	Name string
	Run  func(ctx context.Context) error
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
