package httpcore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/cryguy/webruntime/internal/abort"
	"github.com/cryguy/webruntime/internal/headers"
	"github.com/cryguy/webruntime/internal/stream"
)

func TestServeRoundTrip(t *testing.T) {
	ctrl := abort.NewController()
	addrCh := make(chan string, 1)

	go func() {
		_ = Serve(context.Background(), ServeOptions{
			Hostname: "127.0.0.1",
			Port:     0,
			Signal:   ctrl.Signal(),
			OnListen: func(host string, port int) {
				addrCh <- fmt.Sprintf("%s:%d", host, port)
			},
		}, func(ctx context.Context, req *ServerRequest) (*InnerResponse, error) {
			h := headers.New(headers.GuardResponse)
			_ = h.Set("content-type", "text/plain")
			body := []byte("ok")
			return &InnerResponse{
				Status:  200,
				Headers: h,
				Body:    &ExtractedBody{Source: body, Length: len(body)},
			}, nil
		})
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("server never called onListen")
	}
	defer ctrl.Abort(nil)

	resp, err := http.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("content-type"); ct != "text/plain" {
		t.Fatalf("content-type = %q, want text/plain", ct)
	}
	got, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "ok" {
		t.Fatalf("body = %q, want ok", got)
	}
}

func TestServeStreamedResponseGoesThroughBridge(t *testing.T) {
	ctrl := abort.NewController()
	addrCh := make(chan string, 1)

	go func() {
		_ = Serve(context.Background(), ServeOptions{
			Hostname: "127.0.0.1",
			Port:     0,
			Signal:   ctrl.Signal(),
			OnListen: func(host string, port int) {
				addrCh <- fmt.Sprintf("%s:%d", host, port)
			},
		}, func(ctx context.Context, req *ServerRequest) (*InnerResponse, error) {
			bodyCore, _ := stream.NewDefaultStream(stream.DefaultSource{
				Start: func(c *stream.DefaultController) error {
					if err := c.Enqueue([]byte("part1-")); err != nil {
						return err
					}
					if err := c.Enqueue([]byte("part2")); err != nil {
						return err
					}
					return c.Close()
				},
			})
			h := headers.New(headers.GuardResponse)
			_ = h.Set("content-type", "text/plain")
			return &InnerResponse{
				Status:  200,
				Headers: h,
				Body:    &ExtractedBody{Stream: bodyCore},
			}, nil
		})
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("server never called onListen")
	}
	defer ctrl.Abort(nil)

	resp, err := http.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	got, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "part1-part2" {
		t.Fatalf("body = %q, want part1-part2", got)
	}
}

func TestServeErrorFallback(t *testing.T) {
	ctrl := abort.NewController()
	addrCh := make(chan string, 1)

	go func() {
		_ = Serve(context.Background(), ServeOptions{
			Hostname: "127.0.0.1",
			Port:     0,
			Signal:   ctrl.Signal(),
			OnListen: func(host string, port int) {
				addrCh <- fmt.Sprintf("%s:%d", host, port)
			},
		}, func(ctx context.Context, req *ServerRequest) (*InnerResponse, error) {
			return nil, io.ErrUnexpectedEOF
		})
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("server never started")
	}
	defer ctrl.Abort(nil)

	resp, err := http.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 500 {
		t.Fatalf("StatusCode = %d, want 500 (canned fallback)", resp.StatusCode)
	}
}

func TestRunHandlerErrorAndCanned500(t *testing.T) {
	resp, err := runHandler(context.Background(), func(ctx context.Context, req *ServerRequest) (*InnerResponse, error) {
		return nil, io.ErrClosedPipe
	}, nil)
	if err == nil {
		t.Fatalf("expected the handler's error to propagate")
	}
	if resp != nil {
		t.Fatalf("expected nil response alongside the error")
	}
	fallback := canned500()
	if fallback.Status != 500 {
		t.Fatalf("canned500 Status = %d, want 500", fallback.Status)
	}
}

func TestRunHandlerPanicRecovered(t *testing.T) {
	_, err := runHandler(context.Background(), func(ctx context.Context, req *ServerRequest) (*InnerResponse, error) {
		panic("boom")
	}, nil)
	if err == nil {
		t.Fatalf("expected panic to surface as an error")
	}
}
