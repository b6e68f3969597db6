package ghauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-github/v66/github"
)

func TestAppsExchanger_Exchange(t *testing.T) {
	_, pemText := testKeyPEM(t)
	minter, err := NewMinter("12345", pemText)
	if err != nil {
		t.Fatalf("NewMinter: %v", err)
	}

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/app/installations/42/access_tokens" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(404)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(201)
		expires := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
		_, _ = w.Write([]byte(`{"token":"ghs_abc","expires_at":"` + expires + `","permissions":{"contents":"read","pull_requests":"write"}}`))
	}))
	defer srv.Close()

	x := NewAppsExchanger(minter)
	x.newClient = func(assertion string) *github.Client {
		c := github.NewClient(srv.Client()).WithAuthToken(assertion)
		base, _ := url.Parse(srv.URL + "/")
		c.BaseURL = base
		return c
	}

	grant, err := x.Exchange(context.Background(), 42)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if grant.Token != "ghs_abc" {
		t.Fatalf("token = %q", grant.Token)
	}
	if time.Until(grant.ExpiresAt) < 55*time.Minute {
		t.Fatalf("expiry not taken from response: %v", grant.ExpiresAt)
	}
	if grant.Permissions["contents"] != "read" || grant.Permissions["pull_requests"] != "write" {
		t.Fatalf("permissions = %v", grant.Permissions)
	}
	if !strings.HasPrefix(gotAuth, "Bearer ") || strings.Count(gotAuth, ".") != 2 {
		t.Fatalf("expected a bearer assertion on the exchange call, got %q", gotAuth)
	}
}

func TestAppsExchanger_ExchangeFailure(t *testing.T) {
	_, pemText := testKeyPEM(t)
	minter, err := NewMinter("12345", pemText)
	if err != nil {
		t.Fatalf("NewMinter: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	x := NewAppsExchanger(minter)
	x.newClient = func(assertion string) *github.Client {
		c := github.NewClient(srv.Client()).WithAuthToken(assertion)
		base, _ := url.Parse(srv.URL + "/")
		c.BaseURL = base
		return c
	}

	if _, err := x.Exchange(context.Background(), 42); err == nil {
		t.Fatalf("expected error from failed exchange")
	}
}
