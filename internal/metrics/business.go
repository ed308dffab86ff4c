// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Messaging metrics
	messagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_messages_sent_total",
		Help: "Total number of chat messages accepted",
	})

	messageStatusTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_message_status_total",
		Help: "Message status transitions by target status",
	}, []string{"status"}) // status=sent|delivered|seen

	broadcastDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parley_broadcast_duration_seconds",
		Help:    "Time spent fanning one event out to local clients",
		Buckets: prometheus.DefBuckets,
	})

	broadcastDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_broadcast_dropped_total",
		Help: "Events dropped because a client send buffer was full",
	})

	// Connection metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parley_ws_connections_active",
		Help: "Currently connected WebSocket clients",
	})

	wsConnectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_ws_connections_total",
		Help: "WebSocket connection attempts by outcome",
	}, []string{"outcome"}) // outcome=accepted|unauthorized|not_member|no_room

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_auth_attempts_total",
		Help: "Login attempts by outcome",
	}, []string{"outcome"}) // outcome=success|bad_password|unknown_user

	otpIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_otp_issued_total",
		Help: "One-time registration codes issued",
	})

	otpVerifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_otp_verify_total",
		Help: "One-time code verifications by outcome",
	}, []string{"outcome"}) // outcome=success|mismatch|expired

	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_registrations_total",
		Help: "Completed user registrations",
	})

	// Room metrics
	roomsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_rooms_created_total",
		Help: "Rooms created by type",
	}, []string{"type"}) // type=direct|group
)

func IncMessageSent() { messagesSentTotal.Inc() }

func IncMessageStatus(status string) { messageStatusTotal.WithLabelValues(status).Inc() }

func ObserveBroadcast(seconds float64) { broadcastDurationSeconds.Observe(seconds) }

func IncBroadcastDropped() { broadcastDroppedTotal.Inc() }

func WSConnected() { wsConnectionsActive.Inc() }

func WSDisconnected() { wsConnectionsActive.Dec() }
func IncWSConnection(outcome string) {
	wsConnectionsTotal.WithLabelValues(outcome).Inc()
}

func IncAuthAttempt(outcome string) { authAttemptsTotal.WithLabelValues(outcome).Inc() }

func IncOTPIssued() { otpIssuedTotal.Inc() }

func IncOTPVerify(outcome string) { otpVerifyTotal.WithLabelValues(outcome).Inc() }

func IncRegistration() { registrationsTotal.Inc() }
func IncRoomCreated(roomType string) {
	roomsCreatedTotal.WithLabelValues(roomType).Inc()
}
