package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGitHub serves the token endpoint, /user and /user/emails the way
// GitHub does. An empty emailsBody makes /user/emails answer 404.
func fakeGitHub(t *testing.T, userStatus int, userBody, emailsBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"bad_verification_code"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer","scope":"read:user"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gho_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(userStatus)
		w.Write([]byte(userBody))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gho_test", r.Header.Get("Authorization"))
		if emailsBody == "" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(emailsBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGitHubProvider_AuthURL(t *testing.T) {
	p := NewGitHubProvider("client-id", "client-secret", "http://localhost:8080/auth/github/callback")

	u, err := url.Parse(p.AuthURL("state-123"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "http://localhost:8080/auth/github/callback", q.Get("redirect_uri"))
}

func TestGitHubProvider_Exchange(t *testing.T) {
	srv := fakeGitHub(t, http.StatusOK, `{"id":42,"login":"octocat","email":"octo@example.com"}`, "")
	p := NewGitHubProvider("id", "secret", srv.URL+"/callback").WithBaseURLs(srv.URL, srv.URL)

	user, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "octocat", user.Login)
	assert.Equal(t, "octo@example.com", user.Email)
}

func TestGitHubProvider_ExchangeErrors(t *testing.T) {
	cases := []struct {
		name   string
		code   string
		status int
		body   string
	}{
		{"bad code", "bad-code", http.StatusOK, `{"id":42}`},
		{"api failure", "good-code", http.StatusInternalServerError, `{}`},
		{"zero id", "good-code", http.StatusOK, `{"id":0,"login":"ghost"}`},
		{"malformed body", "good-code", http.StatusOK, `{`},
		{"hidden email and emails api failure", "good-code", http.StatusOK, `{"id":42,"login":"octocat"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := fakeGitHub(t, tc.status, tc.body, "")
			p := NewGitHubProvider("id", "secret", srv.URL+"/callback").WithBaseURLs(srv.URL, srv.URL)

			_, err := p.Exchange(context.Background(), tc.code)
			assert.Error(t, err)
		})
	}
}

func TestGitHubProvider_ExchangeHiddenEmail(t *testing.T) {
	cases := []struct {
		name   string
		emails string
		want   string
	}{
		{
			"primary verified address",
			`[{"email":"old@example.com","primary":false,"verified":true},{"email":"octo@example.com","primary":true,"verified":true}]`,
			"octo@example.com",
		},
		{
			"primary not verified",
			`[{"email":"octo@example.com","primary":true,"verified":false}]`,
			"",
		},
		{"no addresses", `[]`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := fakeGitHub(t, http.StatusOK, `{"id":42,"login":"octocat","email":null}`, tc.emails)
			p := NewGitHubProvider("id", "secret", srv.URL+"/callback").WithBaseURLs(srv.URL, srv.URL)

			user, err := p.Exchange(context.Background(), "good-code")
			require.NoError(t, err)
			assert.Equal(t, tc.want, user.Email)
		})
	}
}
