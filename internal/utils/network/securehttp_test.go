package network

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSecureHTTPClientSetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewSecureHTTPClient(5 * time.Second)
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	if got != UserAgent {
		t.Errorf("expected User-Agent %q, got %q", UserAgent, got)
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("expected timeout to be applied, got %s", client.Timeout)
	}
}

func TestNewSecureHTTPClientKeepsExplicitUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("User-Agent", "custom/2")

	resp, err := NewSecureHTTPClient(0).Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got != "custom/2" {
		t.Errorf("explicit User-Agent overwritten: %q", got)
	}
}
