package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRestyClientDoPreservesRawQuery(t *testing.T) {
	var gotQuery, gotMethod, gotHeader string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		gotHeader = r.Header.Get("X-Request-ID")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	client := NewRestyClient(2 * time.Second)
	resp, err := client.Do(context.Background(), http.MethodPost, srv.URL+"/hellopost?name=a%20b%26c", map[string]string{"X-Request-ID": "abc"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Fatalf("method = %s", gotMethod)
	}
	if gotQuery != "name=a%20b%26c" {
		t.Fatalf("raw query = %q", gotQuery)
	}
	if gotHeader != "abc" {
		t.Fatalf("X-Request-ID = %q", gotHeader)
	}
	if len(gotBody) != 0 {
		t.Fatalf("expected empty body, got %q", gotBody)
	}
	if resp.StatusCode() != http.StatusTeapot || string(resp.Body()) != "short and stout" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode(), resp.Body())
	}
}

func TestRestyClientGetTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewRestyClient(time.Second).Get(context.Background(), url+"/hello", nil); err == nil {
		t.Fatalf("expected error against closed server")
	}
}
