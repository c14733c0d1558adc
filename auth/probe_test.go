package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenProbe_Valid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("PHPSESSID")
		if err != nil || cookie.Value != "good-token" {
			// Expired sessions get the login form back with a 200.
			w.Write([]byte(`<html><body><form><input type="password" name="password"></form></body></html>`))
			return
		}
		w.Write([]byte(`<html><body><h1>Main</h1></body></html>`))
	}))
	defer srv.Close()

	probe := NewTokenProbe()

	valid, err := probe.Valid(context.Background(), srv.URL+"/main", "PHPSESSID", "good-token")
	require.NoError(t, err)
	require.True(t, valid)

	valid, err = probe.Valid(context.Background(), srv.URL+"/main", "PHPSESSID", "stale-token")
	require.NoError(t, err)
	require.False(t, valid, "a login form in the response means the token is dead")
}

func TestTokenProbe_NonOKStatusIsInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	}))
	defer srv.Close()

	probe := NewTokenProbe()
	probe.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	valid, err := probe.Valid(context.Background(), srv.URL+"/main", "PHPSESSID", "tok")
	require.NoError(t, err)
	require.False(t, valid)
}
