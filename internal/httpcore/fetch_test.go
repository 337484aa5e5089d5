package httpcore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cryguy/webruntime/internal/abort"
	"github.com/cryguy/webruntime/internal/ops"
	"github.com/cryguy/webruntime/internal/stream"
	"github.com/cryguy/webruntime/internal/urlshim"
)

func TestMain(m *testing.M) {
	ops.SSRFEnabled = false
	m.Run()
}

func TestFetchBasicGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/plain")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	req, err := NewRequest(srv.URL, RequestInit{})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	engine := NewFetchEngine(ops.NewClient(5 * time.Second))
	resp, err := engine.Fetch(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("Status = %d, want 200", resp.Status)
	}
	m := NewBodyMixin(resp.Body)
	text, err := m.Text(context.Background())
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if text != "ok" {
		t.Fatalf("Text = %q, want ok", text)
	}
}

func TestFetchAbortedBeforeStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("should not be reached"))
	}))
	defer srv.Close()

	req, err := NewRequest(srv.URL, RequestInit{})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	signal := abort.Abort(nil)
	engine := NewFetchEngine(ops.NewClient(5 * time.Second))
	_, err = engine.Fetch(context.Background(), req, signal)
	if err == nil {
		t.Fatalf("expected an abort error")
	}
	de, ok := err.(*abort.DOMException)
	if !ok || de.Name != "AbortError" {
		t.Fatalf("err = %v, want AbortError DOMException", err)
	}
}

func TestFetchAbortedMidFlight(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte("late"))
	}))
	defer func() {
		close(release)
		srv.Close()
	}()

	req, err := NewRequest(srv.URL, RequestInit{})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	ctrl := abort.NewController()
	go func() {
		time.Sleep(20 * time.Millisecond)
		ctrl.Abort(nil)
	}()
	engine := NewFetchEngine(ops.NewClient(5 * time.Second))
	_, err = engine.Fetch(context.Background(), req, ctrl.Signal())
	if err == nil {
		t.Fatalf("expected an abort error")
	}
}

func TestFetchNetworkErrorMapsToTypeError(t *testing.T) {
	req, err := NewRequest("http://127.0.0.1:1", RequestInit{})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	engine := NewFetchEngine(ops.NewClient(2 * time.Second))
	_, err = engine.Fetch(context.Background(), req, nil)
	if err == nil {
		t.Fatalf("expected a network error")
	}
	ke, ok := err.(*KindedError)
	if !ok || ke.Kind != KindTypeError {
		t.Fatalf("err = %v, want KindTypeError", err)
	}
}

func TestFetchDefaultHeaders(t *testing.T) {
	var gotAccept, gotUA, gotEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		gotEncoding = r.Header.Get("Accept-Encoding")
	}))
	defer srv.Close()

	req, err := NewRequest(srv.URL, RequestInit{})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	engine := NewFetchEngine(ops.NewClient(5 * time.Second))
	if _, err := engine.Fetch(context.Background(), req, nil); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotAccept != "*/*" {
		t.Fatalf("Accept = %q", gotAccept)
	}
	if gotUA != runtimeUserAgent {
		t.Fatalf("User-Agent = %q", gotUA)
	}
	if gotEncoding != defaultAcceptEncoding {
		t.Fatalf("Accept-Encoding = %q", gotEncoding)
	}
}

func TestFetchStringBodyRoundTrip(t *testing.T) {
	var gotBody string
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	req, err := NewRequest(srv.URL, RequestInit{Method: "POST", Body: "a=1"})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	engine := NewFetchEngine(ops.NewClient(5 * time.Second))
	if _, err := engine.Fetch(context.Background(), req, nil); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotBody != "a=1" {
		t.Fatalf("body = %q, want a=1", gotBody)
	}
	if gotContentType != "text/plain;charset=UTF-8" {
		t.Fatalf("content-type = %q", gotContentType)
	}
}

func TestFetchStreamedBodyGoesThroughBridge(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
	}))
	defer srv.Close()

	bodyCore, _ := stream.NewDefaultStream(stream.DefaultSource{
		Start: func(c *stream.DefaultController) error {
			if err := c.Enqueue([]byte("chunk1-")); err != nil {
				return err
			}
			if err := c.Enqueue([]byte("chunk2")); err != nil {
				return err
			}
			return c.Close()
		},
	})
	req, err := NewRequest(srv.URL, RequestInit{Method: "POST", Body: bodyCore, Mode: ModeCORS})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	engine := NewFetchEngine(ops.NewClient(5 * time.Second))
	if _, err := engine.Fetch(context.Background(), req, nil); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotBody != "chunk1-chunk2" {
		t.Fatalf("body = %q, want chunk1-chunk2", gotBody)
	}
}

func TestFetchURLSearchParamsBody(t *testing.T) {
	var gotBody, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	sp := urlshim.NewSearchParams("")
	sp.Append("a", "1")
	req, err := NewRequest(srv.URL, RequestInit{Method: "POST", Body: sp})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	engine := NewFetchEngine(ops.NewClient(5 * time.Second))
	if _, err := engine.Fetch(context.Background(), req, nil); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotBody != "a=1" {
		t.Fatalf("body = %q, want a=1", gotBody)
	}
	if gotContentType != "application/x-www-form-urlencoded;charset=UTF-8" {
		t.Fatalf("content-type = %q", gotContentType)
	}
}
