package zoom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

// staticTokens hands out tokens from a fixed sequence, advancing on Refresh.
type staticTokens struct {
	tokens    []string
	idx       int
	refreshes int
}

func (s *staticTokens) Token(ctx context.Context) (string, error) {
	return s.tokens[s.idx], nil
}

func (s *staticTokens) Refresh(ctx context.Context) (string, error) {
	s.refreshes++
	if s.idx < len(s.tokens)-1 {
		s.idx++
	}
	return s.tokens[s.idx], nil
}

func newTestClient(baseURL string, retries int, tokens TokenSource) *Client {
	c := NewClient(ClientConfig{
		BaseURL: baseURL,
		Retries: retries,
	}, tokens, nil)
	c.sleep = func(ctx context.Context, d time.Duration) {}
	return c
}

func TestGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("page_size"); got != "300" {
			t.Errorf("page_size = %q", got)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3, &staticTokens{tokens: []string{"tok-1"}})
	body, err := c.Get(context.Background(), "/users", url.Values{"page_size": {"300"}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %s", body)
	}
}

func TestGetRefreshesTokenOn401(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("Authorization") != "Bearer tok-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tokens := &staticTokens{tokens: []string{"tok-1", "tok-2"}}
	c := newTestClient(srv.URL, 3, tokens)

	body, err := c.Get(context.Background(), "/users", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if body == nil {
		t.Fatal("Get returned nil body")
	}
	if tokens.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", tokens.refreshes)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
}

func TestGetFinal401IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &staticTokens{tokens: []string{"tok-1"}}
	c := newTestClient(srv.URL, 2, tokens)

	if _, err := c.Get(context.Background(), "/users", nil); err == nil {
		t.Fatal("Get succeeded despite persistent 401")
	}
	if tokens.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1 (final attempt must not refresh)", tokens.refreshes)
	}
}

func TestGetRetriesAfter429(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3, &staticTokens{tokens: []string{"tok-1"}})
	body, err := c.Get(context.Background(), "/users", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if body == nil || requests != 2 {
		t.Fatalf("body = %s requests = %d, want success on second attempt", body, requests)
	}
}

func TestGetPhoneAbsenceIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3, &staticTokens{tokens: []string{"tok-1"}})

	body, err := c.Get(context.Background(), "/phone/users/a@b.c/recordings", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if body != nil {
		t.Errorf("body = %s, want nil for unlicensed phone user", body)
	}

	// The same status on a non-phone path exhausts the retry budget.
	if _, err := c.Get(context.Background(), "/users/a@b.c/recordings", nil); err == nil {
		t.Fatal("Get treated 404 on a non-phone path as absence")
	}
}

func TestGetExhaustsRetriesOnServerError(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3, &staticTokens{tokens: []string{"tok-1"}})
	if _, err := c.Get(context.Background(), "/users", nil); err == nil {
		t.Fatal("Get succeeded despite persistent 500")
	}
	if requests != 3 {
		t.Errorf("requests = %d, want full retry budget of 3", requests)
	}
}

func TestListUsersPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("status"); got != "active" {
			t.Errorf("status = %q, want active", got)
		}
		page := UsersPage{Users: []User{{Email: "a@example.com"}}, NextPageToken: "next"}
		if r.URL.Query().Get("next_page_token") == "next" {
			page = UsersPage{Users: []User{{Email: "b@example.com"}}}
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3, &staticTokens{tokens: []string{"tok-1"}})
	emails, err := c.ListUsers(context.Background(), 300)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(emails) != 2 || emails[0] != "a@example.com" || emails[1] != "b@example.com" {
		t.Errorf("emails = %v", emails)
	}
}
