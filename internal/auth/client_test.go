package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Unit_Client_ValidateLoginCodeReturnsJWT(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/unauthenticated/validate-login-code", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "a@b.com", body["email"])
		require.Equal(t, "123456", body["code"])

		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{"jwt": "session-token"}))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	jwt, err := c.ValidateLoginCode(context.Background(), "a@b.com", "123456")
	require.NoError(t, err)
	require.Equal(t, "session-token", jwt)
}

func Test_Unit_Client_AccountSendsBearerHeader(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer my-jwt", r.Header.Get("Authorization"))
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"email": "a@b.com"}))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	account, err := c.Account(context.Background(), "my-jwt")
	require.NoError(t, err)
	require.Equal(t, "a@b.com", account["email"])
}

func Test_Unit_Client_NonTwoXXReturnsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	_, err := c.Login(context.Background(), "a@b.com", "wrong")
	require.ErrorIs(t, err, errAuthEndpointFailed)
}
