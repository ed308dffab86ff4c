// SPDX-License-Identifier: MIT

package daemon

import "errors"

var (
	ErrManagerNotStarted = errors.New("daemon manager not started")
	ErrMissingAPIHandler = errors.New("missing API handler")
	ErrMissingLogger     = errors.New("missing logger")
)
