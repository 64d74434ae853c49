package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taller-web/hello-client/internal/config"
	"github.com/taller-web/hello-client/internal/domain"
	"github.com/taller-web/hello-client/internal/requestclient"
	"github.com/taller-web/hello-client/pkg/display"
	"github.com/taller-web/hello-client/pkg/httpclient"
	"github.com/taller-web/hello-client/pkg/sinks"
)

// lockedBuffer lets response goroutines and the test share one writer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type failingHTTPClient struct{ err error }

func (f failingHTTPClient) Get(ctx context.Context, url string, headers map[string]string) (httpclient.Response, error) {
	return f.Do(ctx, http.MethodGet, url, headers)
}

func (f failingHTTPClient) Do(context.Context, string, string, map[string]string) (httpclient.Response, error) {
	return nil, f.err
}

func helloServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Hello, %s!", r.URL.Query().Get("name"))
	})
	mux.HandleFunc("/hellopost", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		fmt.Fprintf(w, "Hi %s", r.URL.Query().Get("name"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	return &config.Config{
		AppName:                "hello-client-test",
		LogLevel:               "debug",
		BaseURL:                baseURL,
		GetPath:                "/hello",
		PostPath:               "/hellopost",
		RenderGetErrors:        true,
		NameInputID:            "name",
		PostNameInputID:        "postname",
		GetOutputID:            "getrespmsg",
		PostOutputID:           "postrespmsg",
		HistoryType:            "bbolt",
		HistoryPath:            filepath.Join(t.TempDir(), "history.db"),
		HistoryTTL:             time.Hour,
		HistoryCleanupInterval: time.Hour,
	}
}

func waitCall(t *testing.T, call *requestclient.Call) (requestclient.Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := call.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("call %s did not complete", call.ID())
	}
	return res, err
}

func strPtr(s string) *string { return &s }

func TestSessionConsoleGetAndPost(t *testing.T) {
	srv := helloServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.Name = "World"
	cfg.PostName = "Fallback"

	out := &lockedBuffer{}
	s, err := NewSession(context.Background(), cfg, nil, out)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	res, err := waitCall(t, s.Get(context.Background(), nil))
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", res.Text)

	res, err = waitCall(t, s.Post(context.Background(), strPtr("Alice")))
	require.NoError(t, err)
	assert.Equal(t, "Hi Alice", res.Text)

	res, err = waitCall(t, s.Post(context.Background(), strPtr("")))
	require.NoError(t, err)
	assert.Equal(t, "Hi Fallback", res.Text)

	printed := out.String()
	assert.Contains(t, printed, "[getrespmsg] Hello, World!\n")
	assert.Contains(t, printed, "[postrespmsg] Hi Alice\n")
	assert.Contains(t, printed, "[postrespmsg] Hi Fallback\n")

	history, err := s.History(0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.OperationPost, history[0].Operation)
	assert.Equal(t, len("Hi Fallback"), history[0].Bytes)
	assert.Equal(t, domain.OperationGet, history[2].Operation)
	assert.Equal(t, srv.URL+"/hello?name=World", history[2].URL)
}

func TestSessionPostFailureRendersError(t *testing.T) {
	cfg := testConfig(t, "http://localhost:35000")
	cfg.HistoryType = "none"

	out := &lockedBuffer{}
	s, err := NewSession(context.Background(), cfg, nil, out,
		WithHTTPClient(failingHTTPClient{err: errors.New("network down")}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	res, err := waitCall(t, s.Post(context.Background(), strPtr("Bob")))
	require.Error(t, err)
	assert.Equal(t, "Error: network down", res.Text)
	assert.Contains(t, out.String(), "[postrespmsg] Error: network down\n")
}

func TestSessionSilentGetFailures(t *testing.T) {
	cfg := testConfig(t, "http://localhost:35000")
	cfg.RenderGetErrors = false

	out := &lockedBuffer{}
	s, err := NewSession(context.Background(), cfg, nil, out,
		WithHTTPClient(failingHTTPClient{err: errors.New("refused")}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	res, err := waitCall(t, s.Get(context.Background(), strPtr("x")))
	require.Error(t, err)
	assert.False(t, res.Rendered)
	assert.Empty(t, out.String())

	history, err := s.History(1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "refused", history[0].Error)
	assert.False(t, history[0].Rendered)
}

func TestSessionPageRoundTrip(t *testing.T) {
	srv := helloServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.PageOut = filepath.Join(t.TempDir(), "out", "index.html")
	cfg.Name = "Ada & Co"

	s, err := NewSession(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, s.Page())

	_, err = waitCall(t, s.Get(context.Background(), nil))
	require.NoError(t, err)
	// the page's post name input still holds its default value
	_, err = waitCall(t, s.Post(context.Background(), nil))
	require.NoError(t, err)

	require.NoError(t, s.Close())

	page, err := display.LoadPage(cfg.PageOut)
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada & Co!", page.OutputText("getrespmsg"))
	assert.Equal(t, "Hi John", page.OutputText("postrespmsg"))
	assert.Equal(t, "Ada & Co", page.InputValue("name"))
}

func TestSessionLoadsPageFile(t *testing.T) {
	srv := helloServer(t)
	dir := t.TempDir()
	pagePath := filepath.Join(dir, "form.html")
	html := `<html><body>
<input id="who" value="Grace">
<input id="postwho" value="Linus">
<p id="g"></p><p id="p"></p>
</body></html>`
	require.NoError(t, os.WriteFile(pagePath, []byte(html), 0o600))

	cfg := testConfig(t, srv.URL)
	cfg.PageFile = pagePath
	cfg.NameInputID = "who"
	cfg.PostNameInputID = "postwho"
	cfg.GetOutputID = "g"
	cfg.PostOutputID = "p"

	s, err := NewSession(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = waitCall(t, s.Get(context.Background(), nil))
	require.NoError(t, err)
	_, err = waitCall(t, s.Post(context.Background(), nil))
	require.NoError(t, err)

	assert.Equal(t, "Hello, Grace!", s.Page().OutputText("g"))
	assert.Equal(t, "Hi Linus", s.Page().OutputText("p"))
}

func TestNewSessionErrors(t *testing.T) {
	_, err := NewSession(context.Background(), nil, nil, nil)
	require.Error(t, err)

	cfg := testConfig(t, "http://localhost:35000")
	cfg.PageFile = filepath.Join(t.TempDir(), "missing.html")
	_, err = NewSession(context.Background(), cfg, nil, nil)
	require.Error(t, err)

	cfg = testConfig(t, "http://localhost:35000")
	cfg.HistoryType = "memcached"
	_, err = NewSession(context.Background(), cfg, nil, nil)
	require.Error(t, err)

	cfg = testConfig(t, "http://localhost:35000")
	cfg.SinksFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = NewSession(context.Background(), cfg, nil, nil)
	require.Error(t, err)
}

func TestSessionPublishesToSinks(t *testing.T) {
	srv := helloServer(t)

	events := make(chan sinks.Event, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt sinks.Event
		if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		events <- evt
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(hook.Close)

	sinksFile := filepath.Join(t.TempDir(), "sinks.yaml")
	yml := fmt.Sprintf(`sinks:
  - id: webhook
    type: http
    http:
      url: %s
  - id: parked
    type: http
    enabled: false
    http:
      url: http://127.0.0.1:1
`, hook.URL)
	require.NoError(t, os.WriteFile(sinksFile, []byte(yml), 0o600))

	cfg := testConfig(t, srv.URL)
	cfg.SinksFile = sinksFile

	s, err := NewSession(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = waitCall(t, s.Get(context.Background(), strPtr("Sink")))
	require.NoError(t, err)

	select {
	case evt := <-events:
		assert.Equal(t, "hello-client-test", evt.Client)
		assert.Equal(t, len("Hello, Sink!"), evt.Exchange.Bytes)
		assert.Equal(t, domain.OperationGet, evt.Exchange.Operation)
	case <-time.After(5 * time.Second):
		t.Fatal("sink did not receive the exchange")
	}
	assert.Len(t, events, 0)
}

func TestSessionRecordsMetrics(t *testing.T) {
	srv := helloServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.HistoryType = "none"

	s, err := NewSession(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = waitCall(t, s.Get(context.Background(), strPtr("m")))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Metrics().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `hello_client_requests_total{operation="get",outcome="rendered"} 1`)
	assert.Contains(t, body, `hello_client_responses_total{class="2xx",operation="get"} 1`)
}

func TestRunInteractive(t *testing.T) {
	srv := helloServer(t)
	cfg := testConfig(t, srv.URL)

	shown := &lockedBuffer{}
	s, err := NewSession(context.Background(), cfg, nil, shown)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	script := strings.Join([]string{
		"get Ann",
		"post Ben",
		"wait",
		"history 1",
		"history x",
		"dance",
		"",
		"quit",
		"get ignored",
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, s.RunInteractive(context.Background(), strings.NewReader(script), &out))
	s.client.Wait()

	printed := shown.String()
	assert.Contains(t, printed, "[getrespmsg] Hello, Ann!\n")
	assert.Contains(t, printed, "[postrespmsg] Hi Ben\n")
	assert.NotContains(t, printed, "ignored")

	console := out.String()
	assert.Contains(t, console, "invalid history limit \"x\"")
	assert.Contains(t, console, "unknown command \"dance\"")
	assert.Equal(t, 1, strings.Count(console, "/hello"))

	history, err := s.History(0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRunInteractiveStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, "http://localhost:35000")
	cfg.HistoryType = "none"

	s, err := NewSession(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	reader, writer := io.Pipe()
	defer writer.Close()

	done := make(chan error, 1)
	go func() { done <- s.RunInteractive(ctx, reader, nil) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("interactive loop did not stop")
	}
}

func TestResponseTextIsNeverPersistedOrPublished(t *testing.T) {
	const body = "SECRET-BODY"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	published := make(chan []byte, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		published <- raw
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(hook.Close)

	sinksFile := filepath.Join(t.TempDir(), "sinks.yaml")
	require.NoError(t, os.WriteFile(sinksFile, []byte("sinks:\n  - id: hook\n    type: http\n    http:\n      url: "+hook.URL+"\n"), 0o600))

	cfg := testConfig(t, srv.URL)
	cfg.SinksFile = sinksFile

	out := &lockedBuffer{}
	s, err := NewSession(context.Background(), cfg, nil, out)
	require.NoError(t, err)

	res, err := waitCall(t, s.Get(context.Background(), strPtr("x")))
	require.NoError(t, err)
	assert.Equal(t, body, res.Text)
	assert.Contains(t, out.String(), "[getrespmsg] "+body)

	history, err := s.History(1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, len(body), history[0].Bytes)
	stored, err := json.Marshal(history[0])
	require.NoError(t, err)
	assert.NotContains(t, string(stored), body)

	select {
	case raw := <-published:
		assert.NotContains(t, string(raw), body)
		assert.Contains(t, string(raw), fmt.Sprintf(`"bytes":%d`, len(body)))
	case <-time.After(5 * time.Second):
		t.Fatal("sink did not receive the exchange")
	}

	var listing bytes.Buffer
	require.NoError(t, s.PrintHistory(&listing, 1))
	assert.NotContains(t, listing.String(), body)

	require.NoError(t, s.Close())
	raw, err := os.ReadFile(cfg.HistoryPath)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, []byte(body)), "history file holds the response text")
}

func TestRunInteractiveSendsExplicitEmptyName(t *testing.T) {
	srv := helloServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.HistoryType = "none"
	cfg.Name = "World"

	shown := &lockedBuffer{}
	s, err := NewSession(context.Background(), cfg, nil, shown)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.RunInteractive(context.Background(), strings.NewReader("get \"\"\nwait\nget\nwait\n"), nil))

	printed := shown.String()
	assert.Contains(t, printed, "[getrespmsg] Hello, !\n")
	assert.Contains(t, printed, "[getrespmsg] Hello, World!\n")
}
