// SPDX-License-Identifier: MIT

// Package otp issues and verifies short-lived one-time codes backed by
// Redis. Codes are consumed on first successful verification.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrCodeMismatch = errors.New("otp code mismatch")
	ErrCodeExpired  = errors.New("otp code expired or never issued")
)

// Store issues and verifies one-time codes.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	digits int
	logger zerolog.Logger
}

// NewStore creates an OTP store. digits must already be validated by config.
func NewStore(client *redis.Client, ttl time.Duration, digits int, logger zerolog.Logger) *Store {
	return &Store{client: client, ttl: ttl, digits: digits, logger: logger}
}

func key(email string) string {
	return "parley:otp:" + email
}

// Issue generates a fresh code for the address and stores it with the
// configured TTL. Re-issuing replaces any earlier code.
func (s *Store) Issue(ctx context.Context, email string) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, key(email), code, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	s.logger.Debug().Str("event", "otp.issued").Str("email", email).Msg("one-time code issued")
	return code, nil
}

// Verify checks the code for the address and consumes it on success. A
// missing or expired code yields ErrCodeExpired, a wrong one
// ErrCodeMismatch and leaves the stored code in place.
func (s *Store) Verify(ctx context.Context, email, code string) error {
	stored, err := s.client.Get(ctx, key(email)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrCodeExpired
	}
	if err != nil {
		return fmt.Errorf("load otp: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrCodeMismatch
	}
	if err := s.client.Del(ctx, key(email)).Err(); err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}

func (s *Store) generate() (string, error) {
	limit := big.NewInt(10)
	buf := make([]byte, s.digits)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}
