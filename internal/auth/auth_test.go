package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycal/internal/store"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("MySecurePassword123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"), hash)

	hash2, err := HashPassword("MySecurePassword123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2, "salts must differ")
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("MySecurePassword123")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
		wantErr  bool
	}{
		{"correct password", "MySecurePassword123", hash, true, false},
		{"wrong password", "WrongPassword456", hash, false, false},
		{"invalid format", "x", "not-a-hash", false, true},
		{"wrong algorithm", "x", "$bcrypt$v=19$m=1,t=1,p=1$AAAA$AAAA", false, true},
		{"bad version", "x", "$argon2id$v=16$m=1,t=1,p=1$AAAA$AAAA", false, true},
		{"bad params", "x", "$argon2id$v=19$garbage$AAAA$AAAA", false, true},
		{"bad salt", "x", "$argon2id$v=19$m=1,t=1,p=1$!!!$AAAA", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyPassword(tt.password, tt.hash)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hash, err := HashPassword("secret")
	require.NoError(t, err)
	_, err = st.CreateUser(context.Background(), "alice", hash)
	require.NoError(t, err)

	return NewService(st, time.Hour), st
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "mallory", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	sess, err := svc.Login(ctx, " alice ", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	id, err := svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrNoToken)
	_, err = svc.Authenticate(ctx, "bogus")
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, svc.Logout(ctx, sess.Token))
	_, err = svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", TokenFromRequest(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", TokenFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(r))
}

func TestRequireMiddleware(t *testing.T) {
	svc, _ := newTestService(t)
	sess, err := svc.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	h := svc.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(id.Username))
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"missing", "", http.StatusUnauthorized, "No token provided"},
		{"invalid", "Bearer nope", http.StatusUnauthorized, "Invalid token"},
		{"valid", "Bearer " + sess.Token, http.StatusOK, "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/events", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, w.Body.String())
				return
			}
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body["error"])
		})
	}
}

func TestOptionalMiddleware(t *testing.T) {
	svc, _ := newTestService(t)

	var seen bool
	h := svc.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, seen = FromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer nope")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, seen)

	sess, err := svc.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: sess.Token})
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.True(t, seen)
}
