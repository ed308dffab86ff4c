// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndVerify(t *testing.T) {
	tokens := NewTokens(testSecret, 15*time.Minute, 7*24*time.Hour)

	pair, err := tokens.Issue(42, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	claims, err := tokens.Verify(pair.Access, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, TokenAccess, claims.TokenType)
}

func TestVerifyRejectsWrongType(t *testing.T) {
	tokens := NewTokens(testSecret, 15*time.Minute, 7*24*time.Hour)
	pair, err := tokens.Issue(1, "alice")
	require.NoError(t, err)

	_, err = tokens.Verify(pair.Refresh, TokenAccess)
	require.ErrorIs(t, err, ErrWrongTokenUse)
	_, err = tokens.Verify(pair.Access, TokenRefresh)
	require.ErrorIs(t, err, ErrWrongTokenUse)
}

func TestVerifyRejectsExpired(t *testing.T) {
	tokens := NewTokens(testSecret, 15*time.Minute, time.Hour)
	pair, err := tokens.Issue(1, "alice")
	require.NoError(t, err)

	tokens.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	_, err = tokens.Verify(pair.Access, TokenAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a := NewTokens(testSecret, time.Minute, time.Hour)
	b := NewTokens("ffffffffffffffffffffffffffffffff", time.Minute, time.Hour)

	pair, err := a.Issue(1, "alice")
	require.NoError(t, err)

	_, err = b.Verify(pair.Access, TokenAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshRotatesPair(t *testing.T) {
	tokens := NewTokens(testSecret, 15*time.Minute, 7*24*time.Hour)
	pair, err := tokens.Issue(7, "bob")
	require.NoError(t, err)

	tokens.now = func() time.Time { return time.Now().Add(time.Second) }
	next, err := tokens.Refresh(pair.Refresh)
	require.NoError(t, err)

	claims, err := tokens.Verify(next.Access, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)

	// An access token is not a refresh token.
	_, err = tokens.Refresh(pair.Access)
	require.ErrorIs(t, err, ErrWrongTokenUse)
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery", 4)
	require.NoError(t, err)
	require.NoError(t, CheckPassword(hash, "correct horse battery"))
	require.ErrorIs(t, CheckPassword(hash, "wrong"), ErrWrongPassword)

	_, err = HashPassword("short", 4)
	require.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/chat/rooms", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", ExtractToken(r, false))

	r = httptest.NewRequest(http.MethodGet, "/ws/chat/1/?token=qrs456", nil)
	assert.Equal(t, "", ExtractToken(r, false))
	assert.Equal(t, "qrs456", ExtractToken(r, true))

	// Header wins over query.
	r.Header.Set("Authorization", "Bearer head")
	assert.Equal(t, "head", ExtractToken(r, true))
}

func TestRequireMiddleware(t *testing.T) {
	tokens := NewTokens(testSecret, time.Minute, time.Hour)
	pair, err := tokens.Issue(9, "carol")
	require.NoError(t, err)

	var got Principal
	handler := Require(tokens, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := FromContext(r.Context())
		require.True(t, ok)
		got = p
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
	r.Header.Set("Authorization", "Bearer "+pair.Access)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(9), got.UserID)
	assert.Equal(t, "carol", got.Username)

	// Missing token is rejected.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Garbage token is rejected.
	r = httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
	r.Header.Set("Authorization", "Bearer not.a.token")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPrincipalRoundTrip(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{UserID: 3, Username: "dee"})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(3), p.UserID)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
