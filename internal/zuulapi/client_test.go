package zuulapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zuulview/zuulview/internal/transport"
)

func TestClientURLsStripTrailingSlash(t *testing.T) {
	c := NewClient("https://zuul.example.org/api/", nil)
	want := "https://zuul.example.org/api/tenant/acme/build/abc"
	if got := c.BuildURL("acme", "abc"); got != want {
		t.Fatalf("BuildURL = %q, want %q", got, want)
	}
	want = "https://zuul.example.org/api/tenant/acme/buildset/def"
	if got := c.BuildsetURL("acme", "def"); got != want {
		t.Fatalf("BuildsetURL = %q, want %q", got, want)
	}
}

func TestClientBuild(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tenant/acme/build/abc" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"uuid": "abc", "job_name": "unit", "result": "SUCCESS",
			"log_url": "https://logs.example.org/1/",
		})
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, transport.NewClient(srv.Client()))
	b, err := c.Build(context.Background(), "acme", "abc")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if b.UUID != "abc" || b.JobName != "unit" {
		t.Fatalf("build = %+v", b)
	}

	if _, err := c.Build(context.Background(), "acme", "nope"); err == nil {
		t.Fatal("expected error for missing build")
	} else if transport.IsTransportFailure(err) {
		t.Fatalf("a 404 is an application failure, got transport: %v", err)
	}
}
