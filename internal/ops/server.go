package ops

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// RequestResource is the lazy-field request handle returned inside a
// ServerEvent. Each accessor reads directly from the underlying
// *http.Request, which is cheap and side-effect-free except for Body,
// which is only ever drained once.
type RequestResource struct {
	raw *http.Request
	id  string
}

// ID is a per-request correlation id, stable for the lifetime of this
// request/sender pair, for a handler or logger to tie a response back to
// the request that produced it.
func (r *RequestResource) ID() string { return r.id }

// Method returns the request method.
func (r *RequestResource) Method() string { return r.raw.Method }

// URI returns the request's full URL as a string.
func (r *RequestResource) URI() string { return r.raw.URL.String() }

// Headers returns the request's header list.
func (r *RequestResource) Headers() http.Header { return r.raw.Header }

// KeepAlive reports whether the connection requested keep-alive.
func (r *RequestResource) KeepAlive() bool { return !r.raw.Close }

// Body returns the request body as a stream; callers read it to
// completion via io.Reader semantics. net/http never leaves it nil: a
// request without a body reads as empty.
func (r *RequestResource) Body() io.ReadCloser { return r.raw.Body }

// ResponseSender is a one-shot response channel: sending twice is
// undefined, so Send is guarded to a single use.
type ResponseSender struct {
	w    http.ResponseWriter
	done chan struct{}
	once sync.Once
	id   string
}

// ID is the correlation id shared with the RequestResource this sender
// answers.
func (s *ResponseSender) ID() string { return s.id }

// ServerHttpResponse is the wire shape a ServeEngine hands to Send.
type ServerHttpResponse struct {
	Status  int
	Headers http.Header
	Body    io.Reader
}

// Send writes resp to the underlying connection exactly once.
func (s *ResponseSender) Send(resp ServerHttpResponse) {
	s.once.Do(func() {
		for k, vals := range resp.Headers {
			for _, v := range vals {
				s.w.Header().Add(k, v)
			}
		}
		s.w.WriteHeader(resp.Status)
		if resp.Body != nil {
			_, _ = io.Copy(s.w, resp.Body)
		}
		close(s.done)
	})
}

// ServerEvent is what the event channel yields: a request/sender pair,
// or (on the sentinel cases) Empty/End via the zero value and the ok
// flag on the channel.
type ServerEvent struct {
	Request *RequestResource
	Sender  *ResponseSender
}

// Listener is start_server's result: a running HTTP listener whose
// incoming requests are surfaced one at a time over Events.
type Listener struct {
	Address string

	httpSrv *http.Server
	ln      net.Listener
	events  chan ServerEvent
	closeCh chan struct{}
	closed  sync.Once
}

// InternalServerOptions configures StartServer.
type InternalServerOptions struct {
	Hostname string
	Port     int
}

// StartServer begins listening and returns a Listener whose Events channel
// yields one ServerEvent per inbound request, in arrival order, until
// Close is called — mirroring the "reader yields events or end" contract
// without needing an Empty-retry sentinel, since a receive on the
// unbuffered events channel already blocks the consumer until a request
// exists.
func StartServer(opts InternalServerOptions) (*Listener, error) {
	addr := net.JoinHostPort(opts.Hostname, strconv.Itoa(opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		Address: ln.Addr().String(),
		ln:      ln,
		events:  make(chan ServerEvent),
		closeCh: make(chan struct{}),
	}
	l.httpSrv = &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			sender := &ResponseSender{w: w, done: make(chan struct{}), id: id}
			select {
			case l.events <- ServerEvent{Request: &RequestResource{raw: r, id: id}, Sender: sender}:
			case <-l.closeCh:
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			<-sender.done
		}),
	}
	go func() {
		_ = l.httpSrv.Serve(ln)
	}()
	return l, nil
}

// Events returns the channel of incoming request/sender pairs. The
// channel closes once Close has drained in-flight handlers.
func (l *Listener) Events() <-chan ServerEvent {
	return l.events
}

// Close stops accepting new connections and lets in-flight handlers
// finish, matching the "abort halts polling, in-flight completes" policy.
func (l *Listener) Close(ctx context.Context) error {
	var err error
	l.closed.Do(func() {
		close(l.closeCh)
		err = l.httpSrv.Shutdown(ctx)
		close(l.events)
	})
	return err
}
